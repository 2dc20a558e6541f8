package backend

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/mori/internal/model"
)

// Metric label values for handle construction.
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

var (
	handlesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mori_backend_handles_active",
			Help: "Number of backend handles whose engine has not been released.",
		},
	)

	eventsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mori_backend_events_submitted_total",
			Help: "Total number of memory events forwarded to an engine.",
		},
		[]string{"type"},
	)

	pluginLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mori_backend_plugin_loads_total",
			Help: "Total number of engine constructions by handle kind and result.",
		},
		[]string{"kind", "result"},
	)
)

func init() {
	prometheus.MustRegister(handlesActive)
	prometheus.MustRegister(eventsSubmitted)
	prometheus.MustRegister(pluginLoads)

	for _, t := range []model.MemoryEventType{
		model.EventAllocate, model.EventWrite, model.EventRead, model.EventAccess, model.EventFree,
	} {
		eventsSubmitted.WithLabelValues(t.String())
	}
	for _, k := range []Kind{KindIntegrated, KindDylib} {
		pluginLoads.WithLabelValues(k.String(), resultSuccess)
		pluginLoads.WithLabelValues(k.String(), resultFailure)
	}
}
