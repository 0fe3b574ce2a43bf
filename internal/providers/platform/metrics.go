package platform

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for gateway calls.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the gateway metrics once per process.
//
// Metrics:
//   - platform_requests_total{op,outcome} - outcome is ok, not_found, api_error, invalid or network
//   - platform_request_duration_seconds{op}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "platform_requests_total",
					Help: "Total number of learning platform API calls",
				},
				[]string{"op", "outcome"},
			),
			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "platform_request_duration_seconds",
					Help:    "Duration of learning platform API calls in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"op"},
			),
		}
	})
	return globalMetrics
}

func outcomeOf(err error) string {
	switch e := err.(type) {
	case nil:
		return "ok"
	case *APIError:
		if e.StatusCode == 404 {
			return "not_found"
		}
		return "api_error"
	case *ValidationError:
		return "invalid"
	case *NetworkError:
		return "network"
	default:
		return "canceled"
	}
}
