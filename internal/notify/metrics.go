package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts delivery outcomes for the /metrics endpoint.
type Metrics struct {
	attempts *prometheus.CounterVec
}

// NewMetrics registers the delivery counters on reg. Pass a fresh registry
// in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		attempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_delivery_attempts_total",
			Help: "Delivery attempts by terminal method and success.",
		}, []string{"method", "success"}),
	}
}

func (m *Metrics) observe(attempt DeliveryAttempt) {
	if m == nil {
		return
	}
	success := "false"
	if attempt.Success {
		success = "true"
	}
	m.attempts.WithLabelValues(string(attempt.Method), success).Inc()
}
