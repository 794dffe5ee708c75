package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics counts order lifecycle transitions.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
}

// NewOrderMetrics registers the transition counter on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order operations by name and outcome (ok, rejected, error).",
	}, []string{"operation", "outcome"})
	reg.MustRegister(transitions)
	return &OrderMetrics{transitions: transitions}
}

// Observe records one operation attempt.
func (m *OrderMetrics) Observe(operation, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(operation), outcome).Inc()
}
