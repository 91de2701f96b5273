package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP level Prometheus metrics for the application.
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
	RateLimited     *prometheus.CounterVec
}

// New creates and registers HTTP metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hearth_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hearth_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter by route pattern",
		}, []string{"route"}),
	}
}

func (m *Metrics) ObserveEndpointLatency(route, method, status string, seconds float64) {
	if m != nil {
		m.EndpointLatency.WithLabelValues(route, method, status).Observe(seconds)
	}
}

func (m *Metrics) IncrementRateLimited(route string) {
	if m != nil {
		m.RateLimited.WithLabelValues(route).Inc()
	}
}
