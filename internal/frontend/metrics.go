package frontend

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/mori/internal/lifecycle"
)

var (
	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mori_frontend_state_transitions_total",
			Help: "Total number of frontend lifecycle transitions, by target state.",
		},
		[]string{"state"},
	)

	scheduleEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mori_frontend_schedule_events",
			Help: "Number of schedule events in the most recently published schedule.",
		},
	)
)

func init() {
	prometheus.MustRegister(transitions)
	prometheus.MustRegister(scheduleEvents)

	for _, s := range []lifecycle.State{
		lifecycle.Constructed, lifecycle.ManagerAttached, lifecycle.Initialized, lifecycle.Terminated,
	} {
		transitions.WithLabelValues(s.String())
	}
}
