package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/angelmondragon/homecook-backend/pkg/logger"
	"github.com/angelmondragon/homecook-backend/pkg/outbox/dispatcher"
)

const (
	defaultPollInterval  = 500 * time.Millisecond
	defaultReadyAttempts = 5
	maxBackoff           = 10 * time.Second
	jitterWindow         = 250 * time.Millisecond
	// upper bound on passes for --once so a busy producer cannot pin the process
	maxOncePasses = 100
)

type pinger interface {
	Ping(context.Context) error
}

type batchProcessor interface {
	ProcessOutboxEvents(ctx context.Context) (dispatcher.Result, error)
}

type dependency struct {
	name string
	p    pinger
}

type ServiceParams struct {
	Logger        *logger.Logger
	DB            pinger
	Bus           pinger
	Dispatcher    batchProcessor
	PollInterval  time.Duration
	ReadyAttempts int
}

// Service drives the dispatcher: it drains while rows keep coming, idles at
// the poll interval, and backs off exponentially while claiming fails.
type Service struct {
	logg          *logger.Logger
	deps          []dependency
	dispatcher    batchProcessor
	pollInterval  time.Duration
	readyAttempts int
	sleepFn       func(context.Context, time.Duration) error
	jitterFn      func(time.Duration) time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Bus == nil:
		return nil, errors.New("pubsub client is required")
	case params.Dispatcher == nil:
		return nil, errors.New("dispatcher is required")
	}
	svc := &Service{
		logg:          params.Logger,
		deps:          []dependency{{"database", params.DB}, {"pubsub", params.Bus}},
		dispatcher:    params.Dispatcher,
		pollInterval:  params.PollInterval,
		readyAttempts: params.ReadyAttempts,
		sleepFn:       sleep,
		jitterFn:      withJitter,
	}
	if svc.pollInterval <= 0 {
		svc.pollInterval = defaultPollInterval
	}
	if svc.readyAttempts <= 0 {
		svc.readyAttempts = defaultReadyAttempts
	}
	return svc, nil
}

// waitReady pings every dependency, retrying with backoff so a publisher that
// boots alongside its database does not crash-loop.
func (s *Service) waitReady(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= s.readyAttempts; attempt++ {
		if lastErr = s.pingAll(ctx); lastErr == nil {
			return nil
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"attempt": attempt,
			"error":   lastErr.Error(),
		}), "outbox publisher dependencies not ready")
		if attempt == s.readyAttempts {
			break
		}
		if err := s.sleepFn(ctx, dispatcher.Backoff(attempt, s.pollInterval, maxBackoff)); err != nil {
			return err
		}
	}
	return fmt.Errorf("dependencies not ready after %d attempts: %w", s.readyAttempts, lastErr)
}

func (s *Service) pingAll(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.p.Ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	return nil
}

// Run polls until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.waitReady(ctx); err != nil {
		return err
	}

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		res, err := s.pass(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			failures++
			wait = dispatcher.Backoff(failures+1, s.pollInterval, maxBackoff)
			s.logg.Error(s.logg.WithField(ctx, "consecutive_failures", failures), "outbox publisher batch error", err)
		case res.Claimed > 0:
			failures = 0
			continue
		default:
			failures = 0
			wait = s.pollInterval
		}
		if err := s.sleepFn(ctx, s.jitterFn(wait)); err != nil {
			return err
		}
	}
}

// RunOnce drains due rows and returns. Storage errors abort; publish failures
// were already rescheduled by the dispatcher and only show up in the counts.
func (s *Service) RunOnce(ctx context.Context) (dispatcher.Result, error) {
	var total dispatcher.Result
	if err := s.waitReady(ctx); err != nil {
		return total, err
	}
	for i := 0; i < maxOncePasses; i++ {
		res, err := s.pass(ctx)
		if err != nil {
			return total, err
		}
		total.Add(res)
		if res.Claimed == 0 {
			break
		}
	}
	return total, nil
}

func (s *Service) pass(ctx context.Context) (dispatcher.Result, error) {
	res, err := s.dispatcher.ProcessOutboxEvents(ctx)
	if err != nil || res.Claimed == 0 {
		return res, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"claimed":   res.Claimed,
		"published": res.Published,
		"retried":   res.Retried,
		"dead":      res.Dead,
	}), "outbox batch dispatched")
	return res, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
