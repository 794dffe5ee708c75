package cron

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/homecook-backend/pkg/logger"
	"github.com/angelmondragon/homecook-backend/pkg/metrics"
)

type fakeLock struct {
	acquired   bool
	releases   int
	refreshes  int
	refreshErr error
}

func (f *fakeLock) Refresh(context.Context) error {
	f.refreshes++
	return f.refreshErr
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.releases++
	return nil
}

type testJob struct {
	name     string
	err      error
	runs     int
	deadline time.Duration
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	if dl, ok := ctx.Deadline(); ok {
		t.deadline = time.Until(dl)
	}
	return t.err
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: &bytes.Buffer{}})
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	reg := prometheus.NewRegistry()
	registry, err := NewRegistry(success, failure)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	service, err := NewService(ServiceParams{
		Logger:   quietLogger(),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	err = service.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "fail: boom") {
		t.Fatalf("expected combined job error, got %v", err)
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d and %d", success.runs, failure.runs)
	}
	if lock.releases != 1 || lock.acquired {
		t.Fatalf("expected lock released after the cycle")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	outcomes := map[string]bool{}
	for _, mf := range families {
		if mf.GetName() != "cron_job_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" {
					outcomes[l.GetValue()] = true
				}
			}
		}
	}
	if !outcomes[metrics.CronSucceeded] || !outcomes[metrics.CronFailed] {
		t.Fatalf("expected succeeded and failed runs, got %v", outcomes)
	}
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	job := &testJob{name: "order-timeouts"}
	lock := &fakeLock{acquired: true}
	registry, err := NewRegistry(job)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	service, err := NewService(ServiceParams{
		Logger:   quietLogger(),
		Registry: registry,
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job must not run without the lock")
	}
	if lock.releases != 0 {
		t.Fatalf("a lock we never acquired must not be released")
	}
}

func TestNewServiceRequiresLock(t *testing.T) {
	registry, _ := NewRegistry()
	if _, err := NewService(ServiceParams{Logger: quietLogger(), Registry: registry}); err == nil {
		t.Fatal("expected error without lock")
	}
	if _, err := NewService(ServiceParams{Logger: quietLogger(), Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected error without registry")
	}
}

func TestServiceBoundsEachJobWithTimeout(t *testing.T) {
	job := &testJob{name: "order-timeouts"}
	registry, err := NewRegistry(job)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	service, err := NewService(ServiceParams{
		Logger:     quietLogger(),
		Registry:   registry,
		Lock:       &fakeLock{},
		JobTimeout: time.Minute,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.deadline <= 0 || job.deadline > time.Minute {
		t.Fatalf("expected job deadline within a minute, got %s", job.deadline)
	}
}

func TestServiceStopsCycleOnCancelledContext(t *testing.T) {
	first := &testJob{name: "order-timeouts"}
	lock := &fakeLock{}
	registry, err := NewRegistry(first)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	service, err := NewService(ServiceParams{Logger: quietLogger(), Registry: registry, Lock: lock})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := service.RunOnce(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if first.runs != 0 {
		t.Fatalf("no job should start after cancellation")
	}
	if lock.releases != 1 {
		t.Fatalf("lock must still be released")
	}
}

func TestServiceAbandonsCycleWhenLeaseLost(t *testing.T) {
	first := &testJob{name: "order-timeouts"}
	second := &testJob{name: "outbox-retention"}
	lock := &fakeLock{refreshErr: errors.New("lease no longer held")}
	registry, err := NewRegistry(first, second)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	service, err := NewService(ServiceParams{Logger: quietLogger(), Registry: registry, Lock: lock})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected lease loss to surface")
	}
	if first.runs != 1 || second.runs != 0 {
		t.Fatalf("jobs after lease loss must not run, got %d/%d", first.runs, second.runs)
	}
}
