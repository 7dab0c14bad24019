// Package metrics registers the Prometheus instruments for the rating
// and recommendation subsystem.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the subsystem's Prometheus collectors around a private
// registry so tests can construct independent instances.
type Metrics struct {
	registry *prometheus.Registry

	RatingSubmissions       *prometheus.CounterVec
	RatingDeletions         prometheus.Counter
	ReconcileRuns           prometheus.Counter
	ReconcileMismatches     prometheus.Counter
	RecommendDuration       prometheus.Histogram
	CacheHits               prometheus.Counter
	CacheMisses             prometheus.Counter
	CacheInvalidations      *prometheus.CounterVec
	CacheInvalidationErrors prometheus.Counter
}

// New builds a Metrics with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		RatingSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "filmpulse_rating_submissions_total",
			Help: "Rating submissions by outcome (created, updated, rejected).",
		}, []string{"outcome"}),
		RatingDeletions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filmpulse_rating_deletions_total",
			Help: "Rating deletions that reversed a movie aggregate.",
		}),
		ReconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filmpulse_reconcile_runs_total",
			Help: "Aggregate reconciliation passes.",
		}),
		ReconcileMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filmpulse_reconcile_mismatches_total",
			Help: "Maintained aggregates found divergent from a full recomputation.",
		}),
		RecommendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "filmpulse_recommend_duration_seconds",
			Help:    "Recommendation computation latency, cache misses only.",
			Buckets: prometheus.DefBuckets,
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filmpulse_recommend_cache_hits_total",
			Help: "Recommendation cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filmpulse_recommend_cache_misses_total",
			Help: "Recommendation cache misses.",
		}),
		CacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "filmpulse_recommend_cache_invalidations_total",
			Help: "Recommendation cache invalidations by key kind (user, movie).",
		}, []string{"kind"}),
		CacheInvalidationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filmpulse_recommend_cache_invalidation_errors_total",
			Help: "Cache invalidations that failed and may force recomputation.",
		}),
	}

	reg.MustRegister(
		m.RatingSubmissions,
		m.RatingDeletions,
		m.ReconcileRuns,
		m.ReconcileMismatches,
		m.RecommendDuration,
		m.CacheHits,
		m.CacheMisses,
		m.CacheInvalidations,
		m.CacheInvalidationErrors,
	)
	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
