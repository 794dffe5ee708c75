// Package dispatcher delivers committed outbox rows to the message bus.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
	"github.com/angelmondragon/homecook-backend/pkg/metrics"
	"github.com/angelmondragon/homecook-backend/pkg/outbox"
	"github.com/angelmondragon/homecook-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultMaxAttempts    = 10
	defaultRetryBase      = 30 * time.Second
	defaultRetryMax       = time.Hour
	defaultPublishTimeout = 15 * time.Second
)

// Publisher sends one message to a topic and returns the broker message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type Params struct {
	DB             txRunner
	Repository     *outbox.Repository
	Registry       resolver
	Publisher      Publisher
	Logger         *logger.Logger
	Metrics        *metrics.OutboxMetrics
	BatchSize      int
	MaxAttempts    int
	RetryBase      time.Duration
	RetryMax       time.Duration
	PublishTimeout time.Duration
}

// Result summarises one dispatch pass. Failures holds the publish errors of
// rows that were rescheduled or dead-lettered; their state is already committed.
type Result struct {
	Claimed   int
	Published int
	Retried   int
	Dead      int
	Failures  error
}

// Add folds other into r, keeping every per-row failure.
func (r *Result) Add(other Result) {
	r.Claimed += other.Claimed
	r.Published += other.Published
	r.Retried += other.Retried
	r.Dead += other.Dead
	r.Failures = multierr.Append(r.Failures, other.Failures)
}

type Dispatcher struct {
	db             txRunner
	repo           *outbox.Repository
	registry       resolver
	publisher      Publisher
	logg           *logger.Logger
	metrics        *metrics.OutboxMetrics
	batchSize      int
	maxAttempts    int
	retryBase      time.Duration
	retryMax       time.Duration
	publishTimeout time.Duration
	now            func() time.Time
}

func New(params Params) (*Dispatcher, error) {
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	d := &Dispatcher{
		db:             params.DB,
		repo:           params.Repository,
		registry:       params.Registry,
		publisher:      params.Publisher,
		logg:           params.Logger,
		metrics:        params.Metrics,
		batchSize:      params.BatchSize,
		maxAttempts:    params.MaxAttempts,
		retryBase:      params.RetryBase,
		retryMax:       params.RetryMax,
		publishTimeout: params.PublishTimeout,
		now:            time.Now,
	}
	if d.batchSize <= 0 {
		d.batchSize = defaultBatchSize
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = defaultMaxAttempts
	}
	if d.retryBase <= 0 {
		d.retryBase = defaultRetryBase
	}
	if d.retryMax <= 0 {
		d.retryMax = defaultRetryMax
	}
	if d.publishTimeout <= 0 {
		d.publishTimeout = defaultPublishTimeout
	}
	return d, nil
}

// ProcessOutboxEvents claims one batch of due rows and publishes them in order.
// Only storage errors abort the pass; publish errors reschedule or bury the row.
func (d *Dispatcher) ProcessOutboxEvents(ctx context.Context) (Result, error) {
	var res Result
	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		res = Result{}
		now := d.now().UTC()
		events, err := d.repo.ClaimDue(tx, now, d.batchSize)
		if err != nil {
			return fmt.Errorf("claim outbox events: %w", err)
		}
		res.Claimed = len(events)
		d.metrics.AddClaimed(len(events))

		for _, event := range events {
			if err := d.dispatch(ctx, tx, event, now, &res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, now time.Time, res *Result) error {
	fields := eventFields(event)
	var messageID string
	resolved, err := d.registry.Resolve(event)
	if err == nil {
		fields["topic"] = resolved.Descriptor.Topic
		fields["event_id"] = resolved.Envelope.EventID
		messageID, err = d.publish(ctx, resolved, event.Payload)
	}
	if err == nil {
		if markErr := d.repo.MarkProcessed(tx, event.ID, now); markErr != nil {
			return fmt.Errorf("mark processed %s: %w", event.ID, markErr)
		}
		if insErr := d.repo.InsertPublished(tx, models.PublishedEvent{
			OutboxEventID: event.ID,
			Topic:         resolved.Descriptor.Topic,
			MessageID:     messageID,
			PublishedAt:   now,
		}); insErr != nil {
			return fmt.Errorf("record publish %s: %w", event.ID, insErr)
		}
		res.Published++
		d.metrics.Inc(string(event.EventType), metrics.OutboxPublished)
		d.logg.Info(d.logg.WithFields(ctx, fields), "outbox event published")
		return nil
	}

	res.Failures = multierr.Append(res.Failures, fmt.Errorf("outbox event %s: %w", event.ID, err))
	attempts := event.AttemptCount + 1
	fields["attempt_count"] = attempts
	logCtx := d.logg.WithField(d.logg.WithFields(ctx, fields), "error", err.Error())

	if registry.IsNonRetryable(err) || attempts >= d.maxAttempts {
		if markErr := d.repo.MarkDead(tx, event.ID, attempts, err); markErr != nil {
			return fmt.Errorf("mark dead %s: %w", event.ID, markErr)
		}
		res.Dead++
		d.metrics.Inc(string(event.EventType), metrics.OutboxDead)
		d.logg.Warn(logCtx, "outbox event will not be retried")
		return nil
	}

	next := now.Add(Backoff(attempts, d.retryBase, d.retryMax))
	if markErr := d.repo.MarkRetry(tx, event.ID, attempts, next, err); markErr != nil {
		return fmt.Errorf("mark retry %s: %w", event.ID, markErr)
	}
	res.Retried++
	d.metrics.Inc(string(event.EventType), metrics.OutboxRetried)
	d.logg.Warn(logCtx, "outbox publish failed")
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, resolved *registry.ResolvedEvent, payload []byte) (string, error) {
	publishCtx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	defer cancel()
	return d.publisher.Publish(publishCtx, resolved.Descriptor.Topic, payload, resolved.Attributes())
}

// Backoff returns base*2^(attempt-1) capped at max. attempt counts from 1.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max || delay <= 0 {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func eventFields(event models.OutboxEvent) map[string]any {
	return map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
}
