package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsRunsAndLastSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "order-timeouts"
	finished := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	metrics.ObserveRun(job, 250*time.Millisecond, finished, nil)
	metrics.ObserveRun(job, time.Second, finished.Add(time.Minute), errors.New("boom"))
	metrics.IncLockSkipped()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	runs := findMetricFamily(mfs, "cron_job_runs_total")
	if runs == nil {
		t.Fatal("runs counter not exported")
	}
	outcomes := map[string]float64{}
	for _, m := range runs.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "outcome" {
				outcomes[l.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if outcomes[CronSucceeded] != 1 || outcomes[CronFailed] != 1 {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}

	last := findMetricFamily(mfs, "cron_job_last_success_timestamp_seconds")
	if last == nil || len(last.GetMetric()) != 1 {
		t.Fatal("last success gauge not exported")
	}
	if got := last.GetMetric()[0].GetGauge().GetValue(); got != float64(finished.Unix()) {
		t.Fatalf("failed run must not move the success stamp, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got != 1.25 {
		t.Fatalf("expected duration sum 1.25, got %f", got)
	}

	skipped := findMetricFamily(mfs, "cron_cycles_lock_skipped_total")
	if skipped == nil || skipped.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatal("expected one lock-skipped cycle")
	}
}

func TestCronJobMetricsNilRegistererIsNoop(t *testing.T) {
	metrics := NewCronJobMetrics(nil)
	metrics.ObserveRun("", time.Second, time.Now(), nil)
	metrics.IncLockSkipped()
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
