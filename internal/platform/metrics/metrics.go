// Package metrics holds the process-wide HTTP collectors and the exposition handler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP-level Prometheus collectors.
type Metrics struct {
	RequestLatency *prometheus.HistogramVec
	RequestsTotal  *prometheus.CounterVec
}

// New creates and registers the HTTP metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg; tests pass a fresh prometheus.NewRegistry().
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskboard_http_request_duration_seconds",
			Help:    "Latency of HTTP requests by route pattern",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		}, []string{"method", "route", "status"}),
	}
}

// ObserveRequest records one completed request.
func (m *Metrics) ObserveRequest(method, route, status string, start time.Time) {
	m.RequestLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
