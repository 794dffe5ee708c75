package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestOutboxMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.AddClaimed(3)
	m.Inc("gift_created", OutboxPublished)
	m.Inc("gift_created", OutboxPublished)
	m.Inc("gift_expired", OutboxDead)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_events_dispatched_total", "event_type", "gift_created"); err != nil {
		t.Fatalf("fetch dispatched: %v", err)
	} else if got != 2 {
		t.Fatalf("expected 2 published gift_created, got %f", got)
	}
	claimed := findMetricFamily(mfs, "outbox_events_claimed_total")
	if claimed == nil || claimed.GetMetric()[0].GetCounter().GetValue() != 3 {
		t.Fatalf("expected claimed=3, got %v", claimed)
	}
}

func TestOrderMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg)
	m.Observe("accept", "ok")
	m.Observe("accept", "rejected")
	m.Observe("", "ok")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	mf := findMetricFamily(mfs, "order_transitions_total")
	if mf == nil {
		t.Fatal("order_transitions_total not registered")
	}
	var total float64
	for _, metric := range mf.GetMetric() {
		total += metric.GetCounter().GetValue()
	}
	if total != 3 {
		t.Fatalf("expected 3 observations, got %f", total)
	}
	if !hasLabel(mf.GetMetric(), "operation", "unknown") {
		t.Fatal("expected empty operation to be labelled unknown")
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var o *OutboxMetrics
	o.Inc("x", OutboxRetried)
	o.AddClaimed(1)
	var m *OrderMetrics
	m.Observe("x", "ok")
	NewOrderMetrics(nil).Observe("x", "ok")
}

func hasLabel(metrics []*dto.Metric, name, value string) bool {
	for _, metric := range metrics {
		if matchesLabel(metric.GetLabel(), name, value) {
			return true
		}
	}
	return false
}
