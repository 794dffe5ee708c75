// Package registry is the catalog of events the outbox may publish: which
// topic each type goes to and how its payload decodes.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	"github.com/angelmondragon/homecook-backend/pkg/outbox"
	"github.com/angelmondragon/homecook-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/homecook-backend/pkg/validate"
)

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
	row        models.OutboxEvent
}

// Attributes are the Pub/Sub message attributes subscribers filter on.
func (r *ResolvedEvent) Attributes() map[string]string {
	attrs := map[string]string{
		"event_id":       r.Envelope.EventID,
		"event_type":     string(r.row.EventType),
		"event_version":  fmt.Sprint(r.Envelope.Version),
		"aggregate_type": string(r.row.AggregateType),
		"aggregate_id":   r.row.AggregateID.String(),
		"occurred_at":    r.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if r.Envelope.Actor != nil && r.Envelope.Actor.Role != "" {
		attrs["actor_role"] = r.Envelope.Actor.Role
	}
	return attrs
}

// NonRetryableError marks a failure that retrying cannot fix; the dispatcher
// dead-letters the row immediately.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err carries a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// typed builds a descriptor whose payload decodes into a fresh T and must
// pass struct validation.
func typed[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			if err := validate.Struct(payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	giftTopic := strings.TrimSpace(cfg.GiftTopic)
	if giftTopic == "" {
		return nil, errors.New("gift topic is required")
	}
	return newEventRegistry(
		typed[payloads.GiftCreatedEvent](enums.EventGiftCreated, enums.AggregateOrder, giftTopic),
		typed[payloads.GiftActivatedEvent](enums.EventGiftActivated, enums.AggregateOrder, giftTopic),
		typed[payloads.GiftPhotoReadyEvent](enums.EventGiftPhotoReady, enums.AggregateOrder, giftTopic),
		typed[payloads.GiftExpiredEvent](enums.EventGiftExpired, enums.AggregateOrder, giftTopic),
	)
}

func newEventRegistry(descs ...EventDescriptor) (*EventRegistry, error) {
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descs))}
	for _, desc := range descs {
		if !desc.EventType.IsValid() {
			return nil, fmt.Errorf("descriptor for unknown event type %q", desc.EventType)
		}
		if _, dup := reg.entries[desc.EventType]; dup {
			return nil, fmt.Errorf("event type %s registered twice", desc.EventType)
		}
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Topics lists the distinct topics, sorted.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	for _, desc := range r.entries {
		seen[desc.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(seen))
	for topic := range seen {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure here is permanent for that row.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, permanent("unsupported event type %s", event.EventType)
	}
	if desc.AggregateType != event.AggregateType {
		return nil, permanent("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return nil, permanent("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	if envelope.EventID == "" {
		return nil, permanent("envelope missing event_id")
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanent("payload missing for %s", event.EventType)
	}
	payload, err := desc.decode(data)
	if err != nil {
		return nil, permanent("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload, row: event}, nil
}

func permanent(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}
