// Package metrics exposes Prometheus instrumentation for auth operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_operations_total",
			Help: "Total number of auth operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	blacklistPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_blacklist_entries_purged_total",
			Help: "Total number of blacklist entries removed by the garbage collector",
		},
	)

	blacklistSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auth_blacklist_sweep_duration_seconds",
			Help:    "Duration of blacklist garbage collection sweeps",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)
)

// Operation records the outcome of a single auth operation.
func Operation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	operationsTotal.WithLabelValues(op, outcome).Inc()
}

// BlacklistSwept records the result of one garbage collection sweep.
func BlacklistSwept(purged int64, seconds float64) {
	blacklistPurgedTotal.Add(float64(purged))
	blacklistSweepDuration.Observe(seconds)
}
