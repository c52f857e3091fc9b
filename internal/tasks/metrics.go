package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "healthboard"

var (
	tasksQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "queued_total",
			Help:      "Total tasks submitted to the pool",
		},
	)

	tasksDone = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "done_total",
			Help:      "Total tasks finished by outcome",
		},
		[]string{"outcome"},
	)
)

func recordQueued() {
	tasksQueued.Inc()
}

func recordDone(outcome string) {
	tasksDone.WithLabelValues(outcome).Inc()
}
