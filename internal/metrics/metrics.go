// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	Postings     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "latteh",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "latteh",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Postings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "latteh",
			Name:      "ledger_postings_total",
			Help:      "Ledger credit/debit attempts by transaction type and outcome.",
		}, []string{"type", "outcome"}),
	}
	reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.Postings)
	return m
}

// ObservePosting records one ledger posting attempt.
func (m *Metrics) ObservePosting(txType, outcome string) {
	if m == nil {
		return
	}
	m.Postings.WithLabelValues(txType, outcome).Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(seconds)
}
