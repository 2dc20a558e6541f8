package basic

import "github.com/prometheus/client_golang/prometheus"

var (
	operatorsRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mori_basic_operators_registered",
			Help: "Number of operators registered with basic engines.",
		},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mori_basic_events_total",
			Help: "Total number of memory events recorded by basic engines.",
		},
		[]string{"type"},
	)

	lastIterationEvents = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mori_basic_last_iteration_events",
			Help: "Memory events recorded during the last completed iteration, by type.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(operatorsRegistered)
	prometheus.MustRegister(eventsTotal)
	prometheus.MustRegister(lastIterationEvents)
}
