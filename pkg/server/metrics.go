package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "powercast",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		},
		[]string{"route", "method", "code"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "powercast",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method", "code"},
	)
)

// handle registers h on mux under pattern and instruments it with the
// pattern as its route label.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	labels := prometheus.Labels{"route": pattern}
	mux.Handle(pattern, promhttp.InstrumentHandlerDuration(
		requestDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(requestsTotal.MustCurryWith(labels), h),
	))
}
