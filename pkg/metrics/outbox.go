package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outbox dispatch outcomes.
const (
	OutboxPublished = "published"
	OutboxRetried   = "retried"
	OutboxDead      = "dead"
)

// OutboxMetrics counts dispatch outcomes per event type.
type OutboxMetrics struct {
	dispatched *prometheus.CounterVec
	claimed    prometheus.Counter
	backlog    *prometheus.GaugeVec
}

// NewOutboxMetrics registers the outbox counters on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_dispatched_total",
		Help: "Outbox events handled by the dispatcher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	claimed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_claimed_total",
		Help: "Outbox rows claimed for delivery.",
	})
	backlog := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "outbox_events_backlog",
		Help: "Outbox rows by status as of the last retention sweep.",
	}, []string{"status"})
	reg.MustRegister(dispatched, claimed, backlog)
	return &OutboxMetrics{dispatched: dispatched, claimed: claimed, backlog: backlog}
}

// SetBacklog records how many rows currently sit in status.
func (m *OutboxMetrics) SetBacklog(status string, n int64) {
	if m == nil || m.backlog == nil {
		return
	}
	m.backlog.WithLabelValues(status).Set(float64(n))
}

func (m *OutboxMetrics) AddClaimed(n int) {
	if m == nil || m.claimed == nil || n <= 0 {
		return
	}
	m.claimed.Add(float64(n))
}

func (m *OutboxMetrics) Inc(eventType, outcome string) {
	if m == nil || m.dispatched == nil {
		return
	}
	m.dispatched.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}
