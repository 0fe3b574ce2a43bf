package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the query cache. The kind label is the
// first segment of the cache key ("courses", "learningPath", ...).
type Metrics struct {
	HitsTotal          *prometheus.CounterVec
	StaleHitsTotal     *prometheus.CounterVec
	MissesTotal        *prometheus.CounterVec
	FetchErrorsTotal   *prometheus.CounterVec
	InvalidationsTotal *prometheus.CounterVec
	Entries            prometheus.Gauge
}

// NewMetrics registers the cache metrics once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			HitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "query_cache_hits_total",
				Help: "Reads served from a fresh cache entry",
			}, []string{"kind"}),
			StaleHitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "query_cache_stale_hits_total",
				Help: "Reads served from a stale entry while it is refreshed",
			}, []string{"kind"}),
			MissesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "query_cache_misses_total",
				Help: "Reads that had to wait for a fetch",
			}, []string{"kind"}),
			FetchErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "query_cache_fetch_errors_total",
				Help: "Failed fetches, foreground and background",
			}, []string{"kind"}),
			InvalidationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "query_cache_invalidations_total",
				Help: "Explicit invalidations",
			}, []string{"kind"}),
			Entries: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "query_cache_entries",
				Help: "Current number of cache entries",
			}),
		}
	})
	return globalMetrics
}
