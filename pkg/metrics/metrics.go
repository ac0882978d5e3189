// Package metrics defines the Prometheus collectors used by the indexing
// workers and the search service, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	ClaimsTotal       *prometheus.CounterVec
	DocsIndexedTotal  prometheus.Counter
	DocsFailedTotal   *prometheus.CounterVec
	PostingsWritten   *prometheus.CounterVec
	IndexLatency      prometheus.Histogram
	EventsDropped     *prometheus.CounterVec
	EventsPublished   *prometheus.CounterVec
	ReindexRunsTotal  *prometheus.CounterVec
	ReindexBatchSize  prometheus.Histogram
	LockRecoveries    prometheus.Counter
	LockWaitDuration  prometheus.Histogram
	ClearDuration     prometheus.Histogram
	SearchQueries     *prometheus.CounterVec
	SearchLatency     *prometheus.HistogramVec
	SearchResults     prometheus.Histogram
	CacheHitsTotal    prometheus.Counter
	CacheMissesTotal  prometheus.Counter
	CircuitBreakState *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Production code
// passes prometheus.DefaultRegisterer; tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ClaimsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "document_claims_total",
				Help: "Document claim attempts by outcome (claimed, rejected, error) and path (event, batch).",
			},
			[]string{"outcome", "path"},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "documents_indexed_total",
				Help: "Documents whose postings were committed and status set to DONE.",
			},
		),
		DocsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_failed_total",
				Help: "Documents moved to ERROR by reason (content_missing, storage).",
			},
			[]string{"reason"},
		),
		PostingsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postings_written_total",
				Help: "Term postings added per shard.",
			},
			[]string{"shard"},
		),
		IndexLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "document_index_duration_seconds",
				Help:    "Time from claim to DONE/ERROR for one document.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
		),
		EventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_dropped_total",
				Help: "Events dropped at the bus boundary because the payload was invalid.",
			},
			[]string{"kind"},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_published_total",
				Help: "Events published by kind and status (ok, error).",
			},
			[]string{"kind", "status"},
		),
		ReindexRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reindex_runs_total",
				Help: "Reindex runs handled by this instance, by role and outcome.",
			},
			[]string{"role", "outcome"},
		),
		ReindexBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reindex_batch_claimed_documents",
				Help:    "Documents claimed per non-empty batch.",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
			},
		),
		LockRecoveries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reindex_lock_recoveries_total",
				Help: "Abandoned clear-locks (expired or ERROR) deleted for re-acquisition.",
			},
		),
		LockWaitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reindex_lock_wait_seconds",
				Help:    "Time spent in the clear-lock phase.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
			},
		),
		ClearDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reindex_clear_seconds",
				Help:    "Time the leader spent clearing the index and resetting statuses.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
			},
		),
		SearchQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		CircuitBreakState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ClaimsTotal,
		m.DocsIndexedTotal,
		m.DocsFailedTotal,
		m.PostingsWritten,
		m.IndexLatency,
		m.EventsDropped,
		m.EventsPublished,
		m.ReindexRunsTotal,
		m.ReindexBatchSize,
		m.LockRecoveries,
		m.LockWaitDuration,
		m.ClearDuration,
		m.SearchQueries,
		m.SearchLatency,
		m.SearchResults,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakState,
	)

	return m
}

// NewUnregistered builds collectors on a throwaway registry, for tools and
// tests that do not expose /metrics.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
