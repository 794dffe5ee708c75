package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

// CreateOrderInput is the checkout request. Money fields are decimal text.
type CreateOrderInput struct {
	DishID         uuid.UUID    `json:"dish_id"`
	Quantity       int          `json:"quantity" validate:"required,min=1,max=50"`
	IsUrgent       bool         `json:"is_urgent"`
	DeliveryPrice  string       `json:"delivery_price,omitempty" validate:"omitempty,money"`
	DiscountAmount string       `json:"discount_amount,omitempty" validate:"omitempty,money"`
	TipsAmount     string       `json:"tips_amount,omitempty" validate:"omitempty,money"`
	Gift           *GiftDetails `json:"gift,omitempty"`
}

type GiftDetails struct {
	RecipientName  string `json:"recipient_name" validate:"required,max=200"`
	RecipientPhone string `json:"recipient_phone" validate:"required,phone"`
}

// ActivateGiftInput is submitted by the gift recipient through the token link.
type ActivateGiftInput struct {
	Token   string    `json:"token" validate:"required"`
	Address string    `json:"address" validate:"required,max=500"`
	Time    time.Time `json:"time" validate:"required"`
}

type MarkReadyInput struct {
	PhotoURL string `json:"photo_url,omitempty" validate:"omitempty,url,max=2048"`
}

type StartDeliveryInput struct {
	// ExpectedAt defaults to now plus the delivery window.
	ExpectedAt *time.Time `json:"expected_at,omitempty"`
}

type CancelInput struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type RaiseDisputeInput struct {
	Reason   string     `json:"reason" validate:"required,max=2000"`
	ReviewID *uuid.UUID `json:"review_id,omitempty"`
}

// SystemCancelInput drives a scheduler-initiated cancellation. From and Due
// are re-checked under the order lock so a stale scan fails with STATE_CONFLICT.
type SystemCancelInput struct {
	Code              enums.CancelReasonCode
	Reason            string
	From              []enums.OrderStatus
	Due               func(order *models.Order, now time.Time) bool
	Penalize          bool
	CountsAsRejection bool
}
