package health

import (
	"github.com/bissquit/healthboard/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "healthboard"

var (
	serviceStatusGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "services",
			Name:      "status",
			Help:      "Current service status level (0=green, 3=red)",
		},
		[]string{"service"},
	)

	serviceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "services",
			Name:      "status_transitions_total",
			Help:      "Total service status changes produced by rollups",
		},
		[]string{"service", "direction"},
	)

	eventUpdatesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "updates_total",
			Help:      "Total event updates recorded by resulting status",
		},
		[]string{"status"},
	)
)

func recordServiceStatus(slug string, status domain.StatusLevel) {
	serviceStatusGauge.WithLabelValues(slug).Set(float64(status))
}

func recordServiceTransition(change domain.ServiceStatusChange) {
	direction := "down"
	if change.IsUpgrade() {
		direction = "up"
	}
	serviceTransitions.WithLabelValues(change.Slug, direction).Inc()
	recordServiceStatus(change.Slug, change.NewStatus)
}

func recordEventUpdate(status domain.StatusLevel) {
	eventUpdatesRecorded.WithLabelValues(status.String()).Inc()
}
