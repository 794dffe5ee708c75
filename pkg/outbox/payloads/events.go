package payloads

import (
	"time"

	"github.com/google/uuid"
)

// GiftCreatedEvent is emitted once a paid gift order waits for its recipient.
// The token is what the recipient link carries.
type GiftCreatedEvent struct {
	OrderID        uuid.UUID `json:"order_id" validate:"required"`
	BuyerID        uuid.UUID `json:"buyer_id"`
	ProducerID     uuid.UUID `json:"producer_id"`
	RecipientName  string    `json:"recipient_name,omitempty"`
	RecipientPhone string    `json:"recipient_phone,omitempty"`
	Token          string    `json:"token" validate:"required"`
	ExpiresAt      time.Time `json:"expires_at" validate:"required"`
}

// GiftActivatedEvent reports that the recipient confirmed address and time.
type GiftActivatedEvent struct {
	OrderID       uuid.UUID `json:"order_id" validate:"required"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	ProducerID    uuid.UUID `json:"producer_id"`
	RecipientTime time.Time `json:"recipient_time" validate:"required"`
	ActivatedAt   time.Time `json:"activated_at"`
}

// GiftPhotoReadyEvent carries the finished photo the buyer reviews.
type GiftPhotoReadyEvent struct {
	OrderID  uuid.UUID `json:"order_id" validate:"required"`
	BuyerID  uuid.UUID `json:"buyer_id"`
	PhotoURL string    `json:"photo_url"`
	ReadyAt  time.Time `json:"ready_at"`
}

// GiftExpiredEvent is emitted when an unactivated gift is refunded.
type GiftExpiredEvent struct {
	OrderID      uuid.UUID `json:"order_id" validate:"required"`
	BuyerID      uuid.UUID `json:"buyer_id"`
	RefundAmount string    `json:"refund_amount" validate:"omitempty,money"`
	ExpiredAt    time.Time `json:"expired_at"`
}
