// Package app assembles the record store, index and search service from
// configuration for the service and CLI binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records/filestore"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records/sqlstore"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/resilience"
)

// App holds the wired core components. Close releases the store.
type App struct {
	Store  records.Store
	Index  *indexer.Manager
	Search *search.Service

	// SQL is the writable record store; nil for the file driver.
	SQL *sqlstore.Store

	db        *sql.DB
	dataDir   string
	resilient *records.Resilient
	closers   []func() error
}

type options struct {
	metrics *metrics.Metrics
	tracker analytics.Tracker
	cache   search.ResultCache
}

type Option func(*options)

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithTracker(t analytics.Tracker) Option {
	return func(o *options) { o.tracker = t }
}

func WithCache(c search.ResultCache) Option {
	return func(o *options) { o.cache = c }
}

// Open builds the stack and loads the index snapshot, rebuilding from the
// store when the snapshot is missing or unreadable or the config asks for
// it. A failed startup rebuild is logged; the service still serves whatever
// the index holds.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{}
	base, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.resilient = records.NewResilient(base, records.ResilientConfig{
		Backoff: resilience.Backoff{
			Attempts: cfg.Store.Retry.MaxAttempts,
			Initial:  cfg.Store.Retry.InitialDelay,
			Max:      5 * time.Second,
		},
		Breaker: resilience.BreakerConfig{
			Threshold:     cfg.Store.Retry.FailureThreshold,
			Cooldown:      cfg.Store.Retry.ResetTimeout,
			OnStateChange: breakerGauge(o.metrics),
		},
		Timeout: 30 * time.Second,
	})
	a.Store = a.resilient

	tok := tokenizer.New(
		tokenizer.WithStopWords(cfg.Index.StopWords),
		tokenizer.WithStemming(cfg.Index.Stemming),
	)
	idxOpts := []indexer.Option{
		indexer.WithTokenizer(tok),
		indexer.WithSnapshotPath(cfg.Index.Path),
	}
	if o.metrics != nil {
		idxOpts = append(idxOpts, indexer.WithMetrics(o.metrics))
	}
	if o.tracker != nil {
		idxOpts = append(idxOpts, indexer.WithTracker(o.tracker))
	}
	a.Index = indexer.New(a.Store, idxOpts...)

	if err := a.Index.Load(); err != nil {
		slog.Warn("index snapshot unusable, rebuilding", "error", err)
	}
	if cfg.Index.RebuildOnStart || a.Index.NeedsRebuild() {
		start := time.Now()
		if err := a.Index.Rebuild(ctx); err != nil {
			slog.Error("startup rebuild incomplete", "error", err)
		} else {
			slog.Info("index rebuilt", "records", a.Index.Stats().TotalRecords, "duration", time.Since(start))
		}
	}

	searchOpts := []search.Option{}
	if o.metrics != nil {
		searchOpts = append(searchOpts, search.WithMetrics(o.metrics))
	}
	if o.tracker != nil {
		searchOpts = append(searchOpts, search.WithTracker(o.tracker))
	}
	if o.cache != nil {
		searchOpts = append(searchOpts, search.WithCache(o.cache))
	}
	a.Search = search.New(a.Index, SearchConfig(cfg), searchOpts...)
	return a, nil
}

// SearchConfig maps the search section of cfg onto the service config.
func SearchConfig(cfg *config.Config) search.Config {
	return search.Config{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		HistorySize:  cfg.Search.HistorySize,
		ExportDir:    cfg.Search.ExportDir,
		ExportLimit:  cfg.Search.ExportLimit,
		Synonyms:     cfg.Search.Synonyms,
		StopWords:    cfg.Search.StopWords,
	}
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (records.Store, error) {
	switch cfg.Store.Driver {
	case "file":
		slog.Info("using file record store", "dir", cfg.Store.DataDir)
		a.dataDir = cfg.Store.DataDir
		return filestore.New(cfg.Store.DataDir), nil
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.db = db
		return a.migrate(ctx, sqlstore.New(db, sqlstore.DialectPostgres))
	case "sqlite":
		db, err := sqlstore.OpenSQLite(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.db = db
		return a.migrate(ctx, sqlstore.New(db, sqlstore.DialectSQLite))
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}

func (a *App) migrate(ctx context.Context, s *sqlstore.Store) (records.Store, error) {
	if err := s.Migrate(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.SQL = s
	return s, nil
}

func breakerGauge(m *metrics.Metrics) func(string, resilience.State, resilience.State) {
	if m == nil {
		return nil
	}
	return func(_ string, _, to resilience.State) { m.StoreBreakerState.Set(float64(to)) }
}

// ProbeStore checks the record store for readiness reporting. An open
// breaker fails the probe without touching the backend.
func (a *App) ProbeStore(ctx context.Context) (string, error) {
	if st := a.resilient.BreakerState(); st == resilience.StateOpen {
		return "", fmt.Errorf("record store breaker %s", st)
	}
	if a.db == nil {
		if _, err := os.Stat(a.dataDir); err != nil {
			return "", err
		}
		return "data dir " + a.dataDir, nil
	}
	if err := a.db.PingContext(ctx); err != nil {
		return "", err
	}
	return postgres.PoolDetail(a.db), nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
