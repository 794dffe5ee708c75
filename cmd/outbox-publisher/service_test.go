package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homecook-backend/pkg/logger"
	"github.com/angelmondragon/homecook-backend/pkg/outbox/dispatcher"
)

type fakePinger struct {
	err   error
	calls int
}

func (f *fakePinger) Ping(context.Context) error {
	f.calls++
	return f.err
}

type scriptedDispatcher struct {
	results []dispatcher.Result
	errs    []error
	calls   int
}

func (s *scriptedDispatcher) ProcessOutboxEvents(ctx context.Context) (dispatcher.Result, error) {
	i := s.calls
	s.calls++
	var res dispatcher.Result
	var err error
	if i < len(s.results) {
		res = s.results[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return res, err
}

func newTestService(t *testing.T, db, bus *fakePinger, d batchProcessor) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:       logger.New(logger.Options{ServiceName: "outbox-test", Output: &bytes.Buffer{}}),
		DB:           db,
		Bus:          bus,
		Dispatcher:   d,
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)
	return svc
}

func TestRunOnceDrainsUntilNothingClaimed(t *testing.T) {
	d := &scriptedDispatcher{results: []dispatcher.Result{
		{Claimed: 2, Published: 2},
		{Claimed: 1, Retried: 1},
		{},
	}}
	svc := newTestService(t, &fakePinger{}, &fakePinger{}, d)

	total, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, d.calls)
	assert.Equal(t, 3, total.Claimed)
	assert.Equal(t, 2, total.Published)
	assert.Equal(t, 1, total.Retried)
}

func TestRunOnceStopsOnStorageError(t *testing.T) {
	d := &scriptedDispatcher{
		results: []dispatcher.Result{{Claimed: 1, Published: 1}},
		errs:    []error{nil, errors.New("claim outbox events: connection reset")},
	}
	svc := newTestService(t, &fakePinger{}, &fakePinger{}, d)

	_, err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, d.calls)
}

func TestRunOnceSumsFailures(t *testing.T) {
	d := &scriptedDispatcher{results: []dispatcher.Result{
		{Claimed: 1, Retried: 1, Failures: errors.New("publish timeout")},
		{Claimed: 1, Dead: 1, Failures: errors.New("topic missing")},
		{},
	}}
	svc := newTestService(t, &fakePinger{}, &fakePinger{}, d)

	total, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, total.Dead)
	require.Error(t, total.Failures)
	assert.Contains(t, total.Failures.Error(), "publish timeout")
	assert.Contains(t, total.Failures.Error(), "topic missing")
}

func TestRunGivesUpWhenDependenciesStayDown(t *testing.T) {
	bus := &fakePinger{err: errors.New("unavailable")}
	d := &scriptedDispatcher{}
	svc := newTestService(t, &fakePinger{}, bus, d)
	svc.readyAttempts = 3
	var waits []time.Duration
	svc.sleepFn = func(_ context.Context, dur time.Duration) error {
		waits = append(waits, dur)
		return nil
	}

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pubsub ping failed")
	assert.Equal(t, 3, bus.calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
	assert.Zero(t, d.calls)
}

func TestRunWaitsForLateDependency(t *testing.T) {
	db := &fakePinger{err: errors.New("starting up")}
	d := &scriptedDispatcher{}
	svc := newTestService(t, db, &fakePinger{}, d)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.sleepFn = func(ctx context.Context, _ time.Duration) error {
		if db.err != nil {
			db.err = nil
			return nil
		}
		cancel()
		return ctx.Err()
	}

	require.ErrorIs(t, svc.Run(ctx), context.Canceled)
	assert.Equal(t, 2, db.calls)
	assert.Equal(t, 1, d.calls)
}

func TestRunBacksOffAfterErrorsAndStopsOnCancel(t *testing.T) {
	d := &scriptedDispatcher{
		results: []dispatcher.Result{{}, {}, {Claimed: 1, Published: 1}},
		errs:    []error{errors.New("claim failed"), errors.New("claim failed")},
	}
	svc := newTestService(t, &fakePinger{}, &fakePinger{}, d)
	svc.jitterFn = func(d time.Duration) time.Duration { return d }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var sleeps []time.Duration
	svc.sleepFn = func(ctx context.Context, dur time.Duration) error {
		sleeps = append(sleeps, dur)
		if d.calls >= 4 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	require.ErrorIs(t, svc.Run(ctx), context.Canceled)
	// two failing passes back off and grow, the claimed pass loops without
	// sleeping, and the idle pass waits one poll interval
	assert.Equal(t, []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, time.Millisecond}, sleeps)
	assert.Equal(t, 4, d.calls)
}

func TestNewServiceValidatesParams(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)

	svc := newTestService(t, &fakePinger{}, &fakePinger{}, &scriptedDispatcher{})
	assert.Equal(t, defaultReadyAttempts, svc.readyAttempts)
	assert.Zero(t, withJitter(0))
	assert.GreaterOrEqual(t, withJitter(time.Second), time.Second)
}
