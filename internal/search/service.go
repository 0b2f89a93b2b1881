package search

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/tracing"
)

// Index is the part of the index manager the service queries.
type Index interface {
	Search(ctx context.Context, query string, types []records.Type, fieldNames []string, limit int) []indexer.SearchResult
	SearchPhrase(ctx context.Context, phrase string, types []records.Type, limit int) []indexer.SearchResult
	Contains(rt records.Type, key, text string) bool
	Tokenizer() *tokenizer.Tokenizer
	Store() records.Store
}

// ResultCache memoises responses by query. hit reports whether the
// response came from the cache.
type ResultCache interface {
	GetOrCompute(ctx context.Context, q Query, compute func() (Response, error)) (resp Response, hit bool, err error)
}

type Config struct {
	DefaultLimit int
	MaxResults   int
	HistorySize  int
	ExportDir    string
	ExportLimit  int
	Synonyms     map[string][]string
	StopWords    []string
}

func (c Config) withDefaults() Config {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 50
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 500
	}
	if c.ExportDir == "" {
		c.ExportDir = "Exports"
	}
	if c.ExportLimit <= 0 {
		c.ExportLimit = 10000
	}
	return c
}

// Response is one page of results.
type Response struct {
	Query          string                 `json:"query"`
	ProcessedQuery string                 `json:"processed_query"`
	Total          int                    `json:"total"`
	Results        []indexer.SearchResult `json:"results"`
}

// Service is safe for concurrent use.
type Service struct {
	idx     Index
	store   records.Store
	cfg     Config
	pre     *Preprocessor
	history *History
	tracker analytics.Tracker
	cache   ResultCache
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

type Option func(*Service)

func WithTracker(t analytics.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

func WithCache(c ResultCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock sets the clock used for boosts, history and export names.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(idx Index, cfg Config, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		idx:     idx,
		store:   idx.Store(),
		cfg:     cfg,
		pre:     NewPreprocessor(cfg.Synonyms, cfg.StopWords, idx.Tokenizer()),
		history: NewHistory(cfg.HistorySize),
		now:     time.Now,
		logger:  slog.Default().With("component", "search"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns one page of results and the number of matches before
// pagination.
func (s *Service) Search(ctx context.Context, q Query) ([]indexer.SearchResult, int) {
	resp := s.Execute(ctx, q)
	return resp.Results, resp.Total
}

// Execute runs q through the cache when one is configured and records it
// in history.
func (s *Service) Execute(ctx context.Context, q Query) Response {
	return s.execute(ctx, q.withDefaults(s.cfg.DefaultLimit, s.cfg.MaxResults))
}

func (s *Service) execute(ctx context.Context, q Query) Response {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "search.execute")
	defer span.End()
	span.Set("scope", q.Scope)
	span.Set("operator", q.Operator)

	compute := func() (Response, error) { return s.compute(ctx, q), nil }
	var (
		resp Response
		hit  bool
	)
	if s.cache != nil {
		var err error
		resp, hit, err = s.cache.GetOrCompute(ctx, q, compute)
		if err != nil {
			logger.FromContext(ctx).Warn("query cache unavailable", "error", err)
			resp, _ = compute()
			hit = false
		}
	} else {
		resp, _ = compute()
	}
	span.Set("total", resp.Total)
	span.Set("cache_hit", hit)

	s.record(ctx, q, resp, time.Since(start), hit)
	return resp
}

// compute runs the pipeline: preprocess, retrieve per scope, filter, sort,
// paginate.
func (s *Service) compute(ctx context.Context, q Query) Response {
	plan := s.pre.Preprocess(q.Text, q.Operator)
	resp := Response{Query: q.Text, ProcessedQuery: plan.Processed}

	results := s.retrieve(ctx, q, plan)
	results = applyFilters(results, q.Filters)
	sortResults(results, q.SortBy, q.SortOrder)
	resp.Total = len(results)
	resp.Results = paginate(results, q.Offset, q.Limit)
	return resp
}

func (s *Service) retrieve(ctx context.Context, q Query, plan Plan) []indexer.SearchResult {
	types := q.Scope.RecordTypes()
	if len(types) == 0 || plan.Empty() {
		return []indexer.SearchResult{}
	}
	candidates := 2 * (q.Offset + q.Limit)
	if len(types) == 1 {
		return s.searchType(ctx, types[0], q.Text, plan, candidates)
	}

	perType := make([][]indexer.SearchResult, len(types))
	g, gctx := errgroup.WithContext(ctx)
	for i, rt := range types {
		g.Go(func() error {
			perType[i] = s.searchType(gctx, rt, q.Text, plan, candidates)
			return nil
		})
	}
	_ = g.Wait()

	var merged []indexer.SearchResult
	for _, rs := range perType {
		merged = append(merged, rs...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if a.RecordType != b.RecordType {
			return a.RecordType < b.RecordType
		}
		return a.RecordKey < b.RecordKey
	})
	return merged
}

// searchType retrieves one record type. AND groups and exclusions are
// checked against the full candidate set before the candidate limit.
func (s *Service) searchType(ctx context.Context, rt records.Type, text string, plan Plan, candidates int) []indexer.SearchResult {
	_, span := tracing.Start(ctx, "search."+string(rt))
	defer span.End()

	restrict := plan.Phrase == "" && (plan.Operator == OpAND || len(plan.Excluded) > 0)
	limit := candidates
	if restrict {
		limit = 0
	}
	var found []indexer.SearchResult
	if plan.Phrase != "" {
		found = s.idx.SearchPhrase(ctx, plan.Phrase, []records.Type{rt}, limit)
	} else {
		found = s.idx.Search(ctx, plan.SearchText(), []records.Type{rt}, nil, limit)
	}

	out := make([]indexer.SearchResult, 0, len(found))
	for _, r := range found {
		if r.RecordType != rt {
			continue
		}
		if restrict && !s.admits(rt, r.RecordKey, plan) {
			continue
		}
		if rt == records.TypeTask {
			boostTask(&r, text, s.now())
		}
		out = append(out, r)
		if restrict && candidates > 0 && len(out) >= candidates {
			break
		}
	}
	span.Set("results", len(out))
	return out
}

func (s *Service) admits(rt records.Type, key string, plan Plan) bool {
	for _, word := range plan.Excluded {
		if s.idx.Contains(rt, key, word) {
			return false
		}
	}
	if plan.Operator != OpAND {
		return true
	}
	for _, group := range plan.Groups {
		satisfied := false
		for _, alt := range group {
			if s.idx.Contains(rt, key, alt) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}

func (s *Service) record(ctx context.Context, q Query, resp Response, elapsed time.Duration, cacheHit bool) {
	s.history.Add(q, resp.Total, s.now())

	if s.metrics != nil {
		outcome := "hit"
		if resp.Total == 0 {
			outcome = "zero_result"
		}
		s.metrics.SearchQueriesTotal.WithLabelValues(string(q.Scope), outcome).Inc()
		s.metrics.SearchLatency.WithLabelValues(string(q.Scope)).Observe(elapsed.Seconds())
		s.metrics.SearchResultsCount.Observe(float64(resp.Total))
	}

	if s.tracker != nil {
		typ := analytics.EventSearch
		switch {
		case resp.Total == 0:
			typ = analytics.EventZeroResult
		case cacheHit:
			typ = analytics.EventCacheHit
		}
		s.tracker.Track(analytics.SearchEvent{
			Type:           typ,
			Query:          q.Text,
			ProcessedQuery: resp.ProcessedQuery,
			Scope:          string(q.Scope),
			Operator:       string(q.Operator),
			TotalHits:      resp.Total,
			Returned:       len(resp.Results),
			LatencyMs:      elapsed.Milliseconds(),
			CacheHit:       cacheHit,
			Timestamp:      s.now().UTC(),
			RequestID:      logger.RequestID(ctx),
		})
	}

	logger.FromContext(ctx).Debug("search executed",
		"query", q.Text,
		"processed", resp.ProcessedQuery,
		"scope", q.Scope,
		"total", resp.Total,
		"returned", len(resp.Results),
		"cache_hit", cacheHit,
		"latency_ms", elapsed.Milliseconds(),
	)
}

// History returns up to n of the newest history entries, oldest first.
func (s *Service) History(n int) []HistoryEntry {
	return s.history.Recent(n)
}

func (s *Service) Statistics() Statistics {
	return s.history.Statistics()
}

func (s *Service) ClearHistory() {
	s.history.Clear()
	s.logger.Info("search history cleared")
}

// Preprocess exposes query normalisation, e.g. for display.
func (s *Service) Preprocess(text string, op Operator) Plan {
	return s.pre.Preprocess(text, op)
}
