// Package metrics defines the Prometheus collectors of the search service.
// All names share the compliance_search namespace.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "compliance_search"

var (
	latencyBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
	hitBuckets     = []float64{0, 1, 5, 10, 25, 50, 100, 500}
)

type Metrics struct {
	// http
	HTTPRequestsTotal    *prometheus.CounterVec   // method, path, status
	HTTPRequestDuration  *prometheus.HistogramVec // method, path
	HTTPRequestsInFlight prometheus.Gauge

	// search
	SearchQueriesTotal *prometheus.CounterVec   // scope, outcome
	SearchLatency      *prometheus.HistogramVec // scope
	SearchResultsCount prometheus.Histogram
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter

	// index
	IndexOperationsTotal *prometheus.CounterVec // record_type, op, status
	IndexRecords         *prometheus.GaugeVec   // record_type
	IndexRebuildsTotal   *prometheus.CounterVec // record_type, status
	IndexRebuildDuration prometheus.Histogram
	SnapshotWritesTotal  *prometheus.CounterVec // status

	// StoreBreakerState is the record store breaker: 0 closed, 1 open,
	// 2 half-open.
	StoreBreakerState prometheus.Gauge
}

// New registers every collector with reg, or with the default registerer
// when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	counter := func(sub, name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Subsystem: sub, Name: name, Help: help}, labels)
	}
	return &Metrics{
		HTTPRequestsTotal: counter("http", "requests_total", "HTTP requests by method, route and status.", "method", "path", "status"),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency by method and route.", Buckets: latencyBuckets,
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),

		SearchQueriesTotal: counter("search", "queries_total", "Searches by scope and outcome (hit, zero_result).", "scope", "outcome"),
		SearchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "latency_seconds",
			Help: "Search execution time by scope, cache hits included.", Buckets: latencyBuckets,
		}, []string{"scope"}),
		SearchResultsCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "results_count",
			Help: "Matching records per search before pagination.", Buckets: hitBuckets,
		}),
		CacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "cache_hits_total",
			Help: "Searches answered from the result cache.",
		}),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "cache_misses_total",
			Help: "Searches the result cache could not answer.",
		}),

		IndexOperationsTotal: counter("index", "operations_total", "Index mutations by record type, operation and status.", "record_type", "op", "status"),
		IndexRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "index", Name: "records",
			Help: "Indexed records per record type.",
		}, []string{"record_type"}),
		IndexRebuildsTotal: counter("index", "rebuilds_total", "Rebuilds by record type and status.", "record_type", "status"),
		IndexRebuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "index", Name: "rebuild_duration_seconds",
			Help: "Wall time of full index rebuilds.", Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		SnapshotWritesTotal: counter("index", "snapshot_writes_total", "Snapshot saves by status.", "status"),

		StoreBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "store", Name: "breaker_state",
			Help: "Record store circuit breaker: 0 closed, 1 open, 2 half-open.",
		}),
	}
}

// Handler serves g in the Prometheus exposition format; nil means the
// default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})
}
