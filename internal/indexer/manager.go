// Package indexer owns the in-memory search index over compliance records:
// incremental indexing, removal, full rebuilds from the record store, and
// JSON snapshot persistence.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	apperrors "github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/metrics"
)

// Manager is safe for concurrent use. Mutations take the write lock,
// searches and stats the read lock. Rebuilds build off-lock and swap;
// mutations made while a type is rebuilding are logged and replayed onto
// the new index before the swap.
type Manager struct {
	mu         sync.RWMutex
	indices    map[records.Type]*index.TypeIndex
	rebuilding map[records.Type]int
	pending    map[records.Type][]pendingOp

	store    records.Store
	tok      *tokenizer.Tokenizer
	path     string
	metrics  *metrics.Metrics
	tracker  analytics.Tracker
	now      func() time.Time
	logger   *slog.Logger

	callsMu sync.Mutex
	calls   map[string]*rebuildCall

	hooksMu  sync.Mutex
	onChange []func()
}

// Option configures a Manager.
type Option func(*Manager)

func WithTokenizer(t *tokenizer.Tokenizer) Option {
	return func(m *Manager) { m.tok = t }
}

// WithSnapshotPath sets the JSON snapshot file. Without it Save and Load
// are no-ops.
func WithSnapshotPath(path string) Option {
	return func(m *Manager) { m.path = path }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithTracker reports index mutations and rebuilds as analytics events.
func WithTracker(t analytics.Tracker) Option {
	return func(m *Manager) { m.tracker = t }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func New(store records.Store, opts ...Option) *Manager {
	m := &Manager{
		indices:    emptyIndices(),
		rebuilding: make(map[records.Type]int),
		pending:    make(map[records.Type][]pendingOp),
		calls:      make(map[string]*rebuildCall),
		store:      store,
		tok:     tokenizer.New(),
		now:     time.Now,
		logger:  slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func emptyIndices() map[records.Type]*index.TypeIndex {
	out := make(map[records.Type]*index.TypeIndex, len(records.AllTypes))
	for _, rt := range records.AllTypes {
		out[rt] = index.New()
	}
	return out
}

// Tokenizer returns the tokenizer used for records and queries.
func (m *Manager) Tokenizer() *tokenizer.Tokenizer { return m.tok }

// Store returns the record store results are hydrated from.
func (m *Manager) Store() records.Store { return m.store }

// OnChange registers fn to run after every index mutation.
func (m *Manager) OnChange(fn func()) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.onChange = append(m.onChange, fn)
}

func (m *Manager) changed() {
	m.hooksMu.Lock()
	hooks := append([]func(){}, m.onChange...)
	m.hooksMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (m *Manager) IndexTask(t records.Task) error {
	if err := t.Validate(); err != nil {
		return m.rejected(records.TypeTask, t.Key, err)
	}
	m.put(records.TypeTask, t.Key, m.taskFields(t))
	return nil
}

func (m *Manager) IndexTeamMember(tm records.TeamMember) error {
	if err := tm.Validate(); err != nil {
		return m.rejected(records.TypeTeam, tm.Email, err)
	}
	m.put(records.TypeTeam, tm.Email, m.teamFields(tm))
	return nil
}

func (m *Manager) IndexLegislation(l records.LegislationReference) error {
	if err := l.Validate(); err != nil {
		return m.rejected(records.TypeLegislation, l.Code, err)
	}
	m.put(records.TypeLegislation, l.Code, m.legislationFields(l))
	return nil
}

func (m *Manager) rejected(rt records.Type, key string, err error) error {
	m.logger.Warn("skipping malformed record", "record_type", rt, "key", key, "error", err)
	m.countOp(rt, "index", "malformed")
	return err
}

func (m *Manager) put(rt records.Type, key string, fields index.Fields) {
	m.mu.Lock()
	ti := m.indices[rt]
	ti.Put(key, fields)
	n := ti.Len()
	m.logOp(rt, pendingOp{key: key, fields: fields})
	m.mu.Unlock()

	m.countOp(rt, "index", "ok")
	m.setRecords(rt, n)
	m.logger.Debug("record indexed", "record_type", rt, "key", key, "tokens", len(fields[index.AllField]))
	m.track(analytics.EventIndex, "upsert", rt, key, n, 0)
	m.changed()
}

// Remove drops key from the index of rt. Unknown types and keys are a no-op.
func (m *Manager) Remove(rt records.Type, key string) {
	m.mu.Lock()
	ti, ok := m.indices[rt]
	removed := ok && ti.Remove(key)
	n := 0
	if ok {
		n = ti.Len()
		m.logOp(rt, pendingOp{key: key, remove: true})
	}
	m.mu.Unlock()

	if !removed {
		return
	}
	m.countOp(rt, "remove", "ok")
	m.setRecords(rt, n)
	m.logger.Debug("record removed", "record_type", rt, "key", key)
	m.track(analytics.EventIndex, "delete", rt, key, n, 0)
	m.changed()
}

// pendingOp is a mutation applied while its type was rebuilding.
type pendingOp struct {
	key    string
	fields index.Fields
	remove bool
}

// logOp records op for replay if rt is rebuilding. Callers hold mu.
func (m *Manager) logOp(rt records.Type, op pendingOp) {
	if m.rebuilding[rt] > 0 {
		m.pending[rt] = append(m.pending[rt], op)
	}
}

// rebuildCall is one in-flight rebuild shared by every caller asking for
// the same types. Its context is cancelled once every caller has gone.
type rebuildCall struct {
	done    chan struct{}
	err     error
	cancel  context.CancelFunc
	waiters int
}

// Rebuild reloads every record of the given types (all when none) from the
// store and replaces their indices. Types are built off-lock and swapped in
// together; a cancelled ctx leaves the previous indices in place. Store
// failures for one type keep that type's old index and are returned joined.
// Concurrent calls for the same types share one run, which is cancelled
// only when all of them are.
func (m *Manager) Rebuild(ctx context.Context, types ...records.Type) error {
	types = m.knownTypes(types)
	if len(types) == 0 {
		return nil
	}
	names := make([]string, len(types))
	for i, rt := range types {
		names[i] = string(rt)
	}
	sort.Strings(names)
	key := strings.Join(names, ",")
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rebuilding %s index: %w", key, err)
	}

	m.callsMu.Lock()
	c, shared := m.calls[key]
	if !shared {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &rebuildCall{done: make(chan struct{}), cancel: cancel}
		m.calls[key] = c
		go func() {
			c.err = m.rebuild(runCtx, types)
			m.forget(key, c)
			cancel()
			close(c.done)
		}()
	}
	c.waiters++
	m.callsMu.Unlock()
	if shared {
		m.logger.Debug("rebuild coalesced", "types", key)
	}

	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
	}
	m.callsMu.Lock()
	c.waiters--
	last := c.waiters == 0
	if last && m.calls[key] == c {
		delete(m.calls, key)
	}
	m.callsMu.Unlock()
	if !last {
		return fmt.Errorf("rebuilding %s index: %w", key, ctx.Err())
	}
	c.cancel()
	<-c.done
	return c.err
}

func (m *Manager) forget(key string, c *rebuildCall) {
	m.callsMu.Lock()
	if m.calls[key] == c {
		delete(m.calls, key)
	}
	m.callsMu.Unlock()
}

func (m *Manager) knownTypes(types []records.Type) []records.Type {
	if len(types) == 0 {
		return records.AllTypes
	}
	out := make([]records.Type, 0, len(types))
	seen := make(map[records.Type]bool)
	for _, rt := range types {
		if _, err := records.ParseType(string(rt)); err != nil {
			m.logger.Warn("skipping rebuild of unknown record type", "record_type", rt)
			continue
		}
		if !seen[rt] {
			seen[rt] = true
			out = append(out, rt)
		}
	}
	return out
}

func (m *Manager) rebuild(ctx context.Context, types []records.Type) error {
	start := time.Now()
	logStart := m.beginRebuild(types)
	defer m.endRebuild(types)

	built := make(map[records.Type]*index.TypeIndex, len(types))
	var errs []error
	for _, rt := range types {
		m.logger.Info("rebuilding index", "record_type", rt)
		ti, err := m.build(ctx, rt)
		if err != nil {
			if ctx.Err() != nil {
				m.logger.Warn("rebuild cancelled, keeping previous index", "record_type", rt, "error", err)
				m.countRebuild(rt, "cancelled")
				return fmt.Errorf("rebuilding %s index: %w", rt, err)
			}
			m.logger.Error("rebuild failed, keeping previous index", "record_type", rt, "error", err)
			m.countRebuild(rt, "error")
			errs = append(errs, fmt.Errorf("rebuilding %s index: %w", rt, err))
			continue
		}
		built[rt] = ti
	}

	if len(built) > 0 {
		m.mu.Lock()
		for rt, ti := range built {
			for _, op := range m.pending[rt][logStart[rt]:] {
				if op.remove {
					ti.Remove(op.key)
				} else {
					ti.Put(op.key, op.fields)
				}
			}
			m.indices[rt] = ti
		}
		m.mu.Unlock()
		for rt, ti := range built {
			m.countRebuild(rt, "ok")
			m.setRecords(rt, ti.Len())
			m.track(analytics.EventRebuild, "rebuild", rt, "", ti.Len(), time.Since(start))
		}
		if m.metrics != nil {
			m.metrics.IndexRebuildDuration.Observe(time.Since(start).Seconds())
		}
		m.changed()
		if err := m.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	m.logger.Info("index rebuild completed", "types", len(types), "rebuilt", len(built), "duration", time.Since(start))
	return errors.Join(errs...)
}

// beginRebuild starts logging mutations of types and returns where this
// rebuild's share of each log begins.
func (m *Manager) beginRebuild(types []records.Type) map[records.Type]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	at := make(map[records.Type]int, len(types))
	for _, rt := range types {
		m.rebuilding[rt]++
		at[rt] = len(m.pending[rt])
	}
	return at
}

func (m *Manager) endRebuild(types []records.Type) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rt := range types {
		if m.rebuilding[rt]--; m.rebuilding[rt] == 0 {
			delete(m.rebuilding, rt)
			delete(m.pending, rt)
		}
	}
}

// build indexes every record of rt into a fresh TypeIndex, checking ctx
// between records.
func (m *Manager) build(ctx context.Context, rt records.Type) (*index.TypeIndex, error) {
	ti := index.New()
	skipped := 0
	add := func(key string, validate func() error, fields func() index.Fields) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := validate(); err != nil {
			m.logger.Warn("skipping malformed record", "record_type", rt, "key", key, "error", err)
			skipped++
			return nil
		}
		ti.Put(key, fields())
		return nil
	}

	switch rt {
	case records.TypeTask:
		tasks, err := m.store.LoadTasks(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			if err := add(t.Key, t.Validate, func() index.Fields { return m.taskFields(t) }); err != nil {
				return nil, err
			}
		}
	case records.TypeTeam:
		members, err := m.store.LoadTeamMembers(ctx)
		if err != nil {
			return nil, err
		}
		for _, tm := range members {
			if err := add(tm.Email, tm.Validate, func() index.Fields { return m.teamFields(tm) }); err != nil {
				return nil, err
			}
		}
	case records.TypeLegislation:
		refs, err := m.store.LoadLegislation(ctx)
		if err != nil {
			return nil, err
		}
		for _, l := range refs {
			if err := add(l.Code, l.Validate, func() index.Fields { return m.legislationFields(l) }); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownRecordType, rt)
	}
	m.logger.Info("indexed records", "record_type", rt, "records", ti.Len(), "skipped", skipped)
	return ti, nil
}

// TypeStats describes one record type's index.
type TypeStats struct {
	Records      int `json:"records"`
	Fields       int `json:"fields"`
	Tokens       int `json:"tokens"`
	UniqueTokens int `json:"unique_tokens"`
}

// Stats describes the whole index.
type Stats struct {
	TotalRecords int                        `json:"total_records"`
	TotalFields  int                        `json:"total_fields"`
	TotalTokens  int                        `json:"total_tokens"`
	Types        map[records.Type]TypeStats `json:"types"`
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{Types: make(map[records.Type]TypeStats, len(m.indices))}
	for rt, ti := range m.indices {
		ts := TypeStats{
			Records:      ti.Len(),
			Fields:       ti.FieldCount(),
			UniqueTokens: ti.UniqueTokens(),
		}
		for _, fields := range ti.Forward {
			for _, toks := range fields {
				ts.Tokens += len(toks)
			}
		}
		s.Types[rt] = ts
		s.TotalRecords += ts.Records
		s.TotalFields += ts.Fields
		s.TotalTokens += ts.Tokens
	}
	return s
}

// NeedsRebuild reports an index with no fields, as after a first start or a
// discarded snapshot.
func (m *Manager) NeedsRebuild() bool {
	return m.Stats().TotalFields == 0
}

// Save writes the snapshot file.
func (m *Manager) Save() error {
	if m.path == "" {
		return nil
	}
	m.mu.RLock()
	named := make(map[string]*index.TypeIndex, len(m.indices))
	for rt, ti := range m.indices {
		named[string(rt)] = ti
	}
	err := index.WriteFile(m.path, index.NewDocument(named, m.now()))
	m.mu.RUnlock()

	if err != nil {
		m.logger.Error("saving index snapshot", "path", m.path, "error", err)
		m.countSnapshot("error")
		return err
	}
	m.countSnapshot("ok")
	m.logger.Debug("index snapshot saved", "path", m.path)
	return nil
}

// Load replaces the index with the snapshot file. On any failure the index
// is reset to empty for every type and the error is returned for logging;
// a missing file is not an error.
func (m *Manager) Load() error {
	if m.path == "" {
		return nil
	}
	doc, err := index.ReadFile(m.path)
	loaded := emptyIndices()
	if err == nil {
		for name, ti := range doc.TypeIndices() {
			rt, perr := records.ParseType(name)
			if perr != nil {
				m.logger.Warn("ignoring unknown record type in snapshot", "record_type", name)
				continue
			}
			loaded[rt] = ti
		}
	}

	m.mu.Lock()
	m.indices = loaded
	m.mu.Unlock()
	for rt, ti := range loaded {
		m.setRecords(rt, ti.Len())
	}
	m.changed()

	switch {
	case err == nil:
		m.logger.Info("index snapshot loaded", "path", m.path, "saved_at", doc.SavedAt)
		return nil
	case errors.Is(err, fs.ErrNotExist):
		m.logger.Info("no index snapshot, starting empty", "path", m.path)
		return nil
	default:
		m.logger.Error("discarding unreadable index snapshot", "path", m.path, "error", err)
		return err
	}
}

func (m *Manager) track(typ analytics.EventType, op string, rt records.Type, key string, n int, took time.Duration) {
	if m.tracker == nil {
		return
	}
	m.tracker.Track(analytics.IndexEvent{
		Type:       typ,
		Op:         op,
		RecordType: string(rt),
		Key:        key,
		Records:    n,
		LatencyMs:  took.Milliseconds(),
		Timestamp:  m.now().UTC(),
	})
}

func (m *Manager) countOp(rt records.Type, op, status string) {
	if m.metrics != nil {
		m.metrics.IndexOperationsTotal.WithLabelValues(string(rt), op, status).Inc()
	}
}

func (m *Manager) setRecords(rt records.Type, n int) {
	if m.metrics != nil {
		m.metrics.IndexRecords.WithLabelValues(string(rt)).Set(float64(n))
	}
}

func (m *Manager) countRebuild(rt records.Type, status string) {
	if m.metrics != nil {
		m.metrics.IndexRebuildsTotal.WithLabelValues(string(rt), status).Inc()
	}
}

func (m *Manager) countSnapshot(status string) {
	if m.metrics != nil {
		m.metrics.SnapshotWritesTotal.WithLabelValues(status).Inc()
	}
}
