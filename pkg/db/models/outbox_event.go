package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

// OutboxEvent is written in the same transaction as the business change and
// delivered asynchronously by the dispatcher.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	Status        enums.OutboxStatus        `gorm:"column:status;type:outbox_status;not null"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	NextAttemptAt time.Time                 `gorm:"column:next_attempt_at;not null"`
	DeadLetter    bool                      `gorm:"column:dead_letter;not null;default:false"`
	ErrorMessage  *string                   `gorm:"column:error_message"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	ProcessedAt   *time.Time                `gorm:"column:processed_at"`
}

// PublishedEvent is the bookkeeping row written once per successfully published outbox event.
type PublishedEvent struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OutboxEventID uuid.UUID `gorm:"column:outbox_event_id;type:uuid;not null;uniqueIndex"`
	Topic         string    `gorm:"column:topic;not null"`
	MessageID     string    `gorm:"column:message_id;not null"`
	PublishedAt   time.Time `gorm:"column:published_at;not null"`
}
