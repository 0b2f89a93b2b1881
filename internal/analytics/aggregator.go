package analytics

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/kafka"
)

// latencyWindow is how many recent search latencies feed the percentiles.
const latencyWindow = 10000

type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	CacheHits         int64            `json:"cache_hits"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	RecordsIndexed    int64            `json:"records_indexed"`
	Rebuilds          int64            `json:"rebuilds"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	SearchesByScope   map[string]int64 `json:"searches_by_scope"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// ring keeps the last cap(buf) samples.
type ring struct {
	buf  []int64
	next int
}

func (r *ring) add(v int64) {
	if len(r.buf) < cap(r.buf) {
		r.buf = append(r.buf, v)
		return
	}
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
}

// Aggregator folds search and index events into running totals. Queries
// are counted case- and whitespace-insensitively. It is a Tracker, and
// HandleEvent feeds it from Kafka.
type Aggregator struct {
	mu          sync.RWMutex
	searches    int64
	cacheHits   int64
	zeroResults int64
	indexed     int64
	rebuilds    int64
	latencies   ring
	queries     map[string]int64
	zeroQueries map[string]int64
	scopes      map[string]int64

	started time.Time
	now     func() time.Time
	logger  *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:   ring{buf: make([]int64, 0, latencyWindow)},
		queries:     make(map[string]int64),
		zeroQueries: make(map[string]int64),
		scopes:      make(map[string]int64),
		started:     time.Now(),
		now:         time.Now,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

func (a *Aggregator) Track(event any) {
	switch e := event.(type) {
	case SearchEvent:
		a.recordSearchEvent(e)
	case *SearchEvent:
		a.recordSearchEvent(*e)
	case IndexEvent:
		a.recordIndexEvent(e)
	case *IndexEvent:
		a.recordIndexEvent(*e)
	}
}

// HandleEvent feeds analytics messages from Kafka into agg. The type comes
// from the event-type header, or from the body for messages produced
// without one. Undecodable messages are logged and acknowledged.
func HandleEvent(agg *Aggregator) kafka.Handler {
	return func(_ context.Context, msg kafka.Message) error {
		typ := EventType(msg.Type)
		if typ == "" {
			head, err := kafka.Decode[struct {
				Type EventType `json:"type"`
			}](msg.Value)
			if err != nil {
				agg.logger.Warn("skipping analytics message", "offset", msg.Offset, "error", err)
				return nil
			}
			typ = head.Type
		}
		var err error
		switch typ {
		case EventIndex, EventRebuild:
			var ev IndexEvent
			if ev, err = kafka.Decode[IndexEvent](msg.Value); err == nil {
				agg.recordIndexEvent(ev)
			}
		default:
			var ev SearchEvent
			if ev, err = kafka.Decode[SearchEvent](msg.Value); err == nil {
				agg.recordSearchEvent(ev)
			}
		}
		if err != nil {
			agg.logger.Warn("skipping analytics message", "type", typ, "offset", msg.Offset, "error", err)
		}
		return nil
	}
}

func (a *Aggregator) recordSearchEvent(ev SearchEvent) {
	q := strings.ToLower(strings.Join(strings.Fields(ev.Query), " "))
	a.mu.Lock()
	defer a.mu.Unlock()
	a.searches++
	a.latencies.add(ev.LatencyMs)
	a.queries[q]++
	a.scopes[ev.Scope]++
	if ev.CacheHit {
		a.cacheHits++
	}
	if ev.TotalHits == 0 {
		a.zeroResults++
		a.zeroQueries[q]++
	}
}

func (a *Aggregator) recordIndexEvent(ev IndexEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case ev.Type == EventRebuild:
		a.rebuilds++
		a.indexed += int64(ev.Records)
	case ev.Type == EventIndex && ev.Op != "delete":
		a.indexed++
	}
}

// Stats is Snapshot with the default top-10 query lists.
func (a *Aggregator) Stats() AggregatedStats { return a.Snapshot(10) }

// Snapshot returns the current totals with at most top entries in each
// query list.
func (a *Aggregator) Snapshot(top int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st := AggregatedStats{
		TotalSearches:     a.searches,
		CacheHits:         a.cacheHits,
		ZeroResultCount:   a.zeroResults,
		RecordsIndexed:    a.indexed,
		Rebuilds:          a.rebuilds,
		TopQueries:        topN(a.queries, top),
		ZeroResultQueries: topN(a.zeroQueries, top),
		SearchesByScope:   make(map[string]int64, len(a.scopes)),
	}
	for k, v := range a.scopes {
		st.SearchesByScope[k] = v
	}
	if n := len(a.latencies.buf); n > 0 {
		sorted := slices.Clone(a.latencies.buf)
		slices.Sort(sorted)
		var sum int64
		for _, v := range sorted {
			sum += v
		}
		st.AvgLatencyMs = float64(sum) / float64(n)
		st.P50LatencyMs = percentile(sorted, 50)
		st.P95LatencyMs = percentile(sorted, 95)
		st.P99LatencyMs = percentile(sorted, 99)
	}
	if mins := a.now().Sub(a.started).Minutes(); mins > 0 {
		st.QueriesPerMinute = float64(a.searches) / mins
	}
	return st
}

// percentile uses the nearest-rank method on sorted samples.
func percentile(sorted []int64, pct int) int64 {
	i := pct * len(sorted) / 100
	return sorted[min(i, len(sorted)-1)]
}

// topN returns the n highest counts, ties broken alphabetically.
func topN(counts map[string]int64, n int) []QueryCount {
	out := make([]QueryCount, 0, len(counts))
	for q, c := range counts {
		out = append(out, QueryCount{Query: q, Count: c})
	}
	slices.SortFunc(out, func(x, y QueryCount) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return strings.Compare(x.Query, y.Query)
	})
	return out[:min(n, len(out))]
}
