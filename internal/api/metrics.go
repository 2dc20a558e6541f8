package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatched = "unmatched"

var (
	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mori_http_requests_total",
			Help: "Total number of debug API requests.",
		},
		[]string{"method", "route", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mori_http_request_duration_seconds",
			Help:    "Debug API request duration in seconds, event streams excluded.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"route"},
	)

	eventStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mori_http_event_streams",
			Help: "Number of open operator event streams.",
		},
	)
)

func init() {
	prometheus.MustRegister(requests, requestDuration, eventStreams)
}

// metricsMiddleware counts requests by chi route pattern so that operator
// names never become label values. Event streams are counted but not timed.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		route := routePattern(r)
		requests.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
		if !strings.HasSuffix(route, "/events") {
			requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatched
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
