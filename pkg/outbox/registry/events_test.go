package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	"github.com/angelmondragon/homecook-backend/pkg/outbox"
	"github.com/angelmondragon/homecook-backend/pkg/outbox/payloads"
)

var occurred = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{GiftTopic: "gift-topic"})
	require.NoError(t, err)
	return reg
}

func envelopeFor(t *testing.T, data any, actor *outbox.ActorRef) json.RawMessage {
	t.Helper()
	raw, ok := data.([]byte)
	if !ok {
		var err error
		raw, err = json.Marshal(data)
		require.NoError(t, err)
	}
	out, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    "evt-1",
		OccurredAt: occurred,
		Actor:      actor,
		Data:       raw,
	})
	require.NoError(t, err)
	return out
}

func giftRow(eventType enums.OutboxEventType, payload json.RawMessage) models.OutboxEvent {
	return models.OutboxEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func TestResolveDecodesGiftCreated(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID := uuid.New()
	expires := occurred.Add(48 * time.Hour)
	row := giftRow(enums.EventGiftCreated, envelopeFor(t, payloads.GiftCreatedEvent{
		OrderID:   orderID,
		Token:     "tok-1",
		ExpiresAt: expires,
	}, &outbox.ActorRef{UserID: uuid.New(), Role: "buyer"}))

	resolved, err := reg.Resolve(row)
	require.NoError(t, err)
	assert.Equal(t, "gift-topic", resolved.Descriptor.Topic)

	payload, ok := resolved.Payload.(*payloads.GiftCreatedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	assert.Equal(t, orderID, payload.OrderID)
	assert.True(t, payload.ExpiresAt.Equal(expires))

	attrs := resolved.Attributes()
	assert.Equal(t, "evt-1", attrs["event_id"])
	assert.Equal(t, "gift_created", attrs["event_type"])
	assert.Equal(t, "1", attrs["event_version"])
	assert.Equal(t, row.AggregateID.String(), attrs["aggregate_id"])
	assert.Equal(t, "buyer", attrs["actor_role"])
	assert.Equal(t, "2026-03-01T12:00:00Z", attrs["occurred_at"])
}

func TestResolveRejectsPermanently(t *testing.T) {
	reg := newTestEventRegistry(t)
	validExpired := envelopeFor(t, payloads.GiftExpiredEvent{OrderID: uuid.New(), RefundAmount: "12.50"}, nil)

	cases := map[string]models.OutboxEvent{
		"unknown type": giftRow("order_teleported", validExpired),
		"aggregate mismatch": func() models.OutboxEvent {
			row := giftRow(enums.EventGiftExpired, validExpired)
			row.AggregateType = enums.AggregateDispute
			return row
		}(),
		"missing aggregate": func() models.OutboxEvent {
			row := giftRow(enums.EventGiftExpired, validExpired)
			row.AggregateID = uuid.Nil
			return row
		}(),
		"broken envelope": giftRow(enums.EventGiftCreated, json.RawMessage(`{"version":`)),
		"null payload":    giftRow(enums.EventGiftPhotoReady, envelopeFor(t, []byte("null"), nil)),
		"missing token": giftRow(enums.EventGiftCreated, envelopeFor(t, payloads.GiftCreatedEvent{
			OrderID:   uuid.New(),
			ExpiresAt: occurred,
		}, nil)),
		"bad refund amount": giftRow(enums.EventGiftExpired, envelopeFor(t, payloads.GiftExpiredEvent{
			OrderID:      uuid.New(),
			RefundAmount: "twelve",
		}, nil)),
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(row)
			require.Error(t, err)
			assert.True(t, IsNonRetryable(err), "got %v", err)
		})
	}
}

func TestResolveAcceptsValidExpiry(t *testing.T) {
	reg := newTestEventRegistry(t)
	_, err := reg.Resolve(giftRow(enums.EventGiftExpired,
		envelopeFor(t, payloads.GiftExpiredEvent{OrderID: uuid.New(), RefundAmount: "12.50"}, nil)))
	assert.NoError(t, err)
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{GiftTopic: "  "})
	assert.Error(t, err)
}

func TestNewEventRegistryRejectsDuplicates(t *testing.T) {
	desc := typed[payloads.GiftCreatedEvent](enums.EventGiftCreated, enums.AggregateOrder, "t")
	_, err := newEventRegistry(desc, desc)
	assert.Error(t, err)

	_, err = newEventRegistry(typed[payloads.GiftCreatedEvent]("nope", enums.AggregateOrder, "t"))
	assert.Error(t, err)
}

func TestTopicsAreDistinct(t *testing.T) {
	assert.Equal(t, []string{"gift-topic"}, newTestEventRegistry(t).Topics())
}
