package executor

import "github.com/prometheus/client_golang/prometheus"

var eventsApplied = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mori_executor_events_applied_total",
		Help: "Total number of schedule events applied, by type.",
	},
	[]string{"type"},
)

func init() {
	prometheus.MustRegister(eventsApplied)
}
