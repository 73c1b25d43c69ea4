package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// Search facade and backend Prometheus metrics.
var (
	SearchOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchdex",
			Name:      "search_operations_total",
			Help:      "Total number of search facade operations",
		},
		[]string{"operation", "outcome"},
	)

	SearchOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "searchdex",
			Name:      "search_operation_duration_seconds",
			Help:      "Search facade operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	SearchEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchdex",
			Name:      "search_entries_total",
			Help:      "Entries written to or returned from the backend",
		},
		[]string{"direction"}, // "written" / "returned"
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "searchdex",
			Name:      "backend_breaker_state",
			Help:      "Backend circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

func init() {
	prometheus.MustRegister(SearchOperationsTotal)
	prometheus.MustRegister(SearchOperationDuration)
	prometheus.MustRegister(SearchEntriesTotal)
	prometheus.MustRegister(BreakerState)
}

// ObserveOperation records one facade operation with its outcome label.
func ObserveOperation(operation, outcome string, elapsed time.Duration) {
	SearchOperationsTotal.WithLabelValues(operation, outcome).Inc()
	SearchOperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// SetBreakerState publishes the breaker state for name.
func SetBreakerState(name string, state gobreaker.State) {
	BreakerState.WithLabelValues(name).Set(breakerStateValue(state))
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
