package checks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "healthboard"

var (
	checkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "duration_seconds",
			Help:      "Health check duration",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"check"},
	)

	checkFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "failures_total",
			Help:      "Total failed health checks by kind",
		},
		[]string{"check", "kind"},
	)
)

func recordCheckDuration(check string, d time.Duration) {
	checkDuration.WithLabelValues(check).Observe(d.Seconds())
}

func recordCheckFailure(check string, kind Kind) {
	checkFailures.WithLabelValues(check, kind.String()).Inc()
}
