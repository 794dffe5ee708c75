// Package outbox stores domain events in the same transaction as the state
// change that caused them; a separate dispatcher publishes them later.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
)

var errTxRequired = errors.New("transaction required")

type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	switch {
	case !e.EventType.IsValid():
		return fmt.Errorf("unknown outbox event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return fmt.Errorf("unknown aggregate type %q", e.AggregateType)
	case e.AggregateID == uuid.Nil:
		return fmt.Errorf("%s: aggregate id required", e.EventType)
	}
	return nil
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit queues event as a PENDING row on tx. Nothing is visible to the
// dispatcher until tx commits. Event types that occur once per aggregate are
// skipped when a row already exists, so a replayed command stays a no-op.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errTxRequired
	}
	if err := event.validate(); err != nil {
		return err
	}
	if event.EventType.OncePerAggregate() {
		exists, err := s.repo.Exists(tx, event.EventType, event.AggregateID)
		if err != nil {
			return fmt.Errorf("check existing %s: %w", event.EventType, err)
		}
		if exists {
			s.log(ctx, event, "", "outbox event already queued; skipped")
			return nil
		}
	}

	now := s.now().UTC()
	envelope, err := newEnvelope(event, now)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
		Status:        enums.OutboxStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}); err != nil {
		return fmt.Errorf("insert %s: %w", event.EventType, err)
	}
	s.log(ctx, event, envelope.EventID, "outbox event queued")
	return nil
}

func (s *Service) log(ctx context.Context, event DomainEvent, eventID, msg string) {
	if s.logg == nil {
		return
	}
	fields := map[string]any{
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
	}
	if eventID != "" {
		fields["event_id"] = eventID
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), msg)
}
