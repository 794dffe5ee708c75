package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

// Order is the aggregate root for a single-dish purchase. It is only mutated
// through the order state machine and never deleted.
type Order struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID    uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	ProducerID uuid.UUID         `gorm:"column:producer_id;type:uuid;not null;index"`
	DishID     uuid.UUID         `gorm:"column:dish_id;type:uuid;not null"`
	Quantity   int               `gorm:"column:quantity;not null"`
	Status     enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	IsUrgent   bool              `gorm:"column:is_urgent;not null;default:false"`

	TotalPrice               decimal.Decimal    `gorm:"column:total_price;type:numeric(12,2);not null"`
	DeliveryPrice            decimal.Decimal    `gorm:"column:delivery_price;type:numeric(12,2);not null"`
	DiscountAmount           decimal.Decimal    `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TipsAmount               decimal.Decimal    `gorm:"column:tips_amount;type:numeric(12,2);not null"`
	CommissionRateSnapshot   decimal.Decimal    `gorm:"column:commission_rate_snapshot;type:numeric(6,4);not null"`
	CommissionAmount         decimal.Decimal    `gorm:"column:commission_amount;type:numeric(12,2);not null"`
	ProducerGrossAmount      decimal.Decimal    `gorm:"column:producer_gross_amount;type:numeric(12,2);not null"`
	ProducerNetAmount        decimal.Decimal    `gorm:"column:producer_net_amount;type:numeric(12,2);not null"`
	RefundedTotalAmount      decimal.Decimal    `gorm:"column:refunded_total_amount;type:numeric(12,2);not null"`
	RefundedTipsAmount       decimal.Decimal    `gorm:"column:refunded_tips_amount;type:numeric(12,2);not null"`
	RefundedCommissionAmount decimal.Decimal    `gorm:"column:refunded_commission_amount;type:numeric(12,2);not null"`
	PayableAmount            decimal.Decimal    `gorm:"column:payable_amount;type:numeric(12,2);not null"`
	PenaltyAmount            decimal.Decimal    `gorm:"column:penalty_amount;type:numeric(12,2);not null"`
	PenaltyReason            *string            `gorm:"column:penalty_reason"`
	RefundAmount             decimal.Decimal    `gorm:"column:refund_amount;type:numeric(12,2);not null"`
	PayoutStatus             enums.PayoutStatus `gorm:"column:payout_status;type:payout_status;not null"`

	EstimatedCookingMinutes int `gorm:"column:estimated_cooking_minutes;not null"`

	AcceptanceDeadline      *time.Time `gorm:"column:acceptance_deadline"`
	AcceptedAt              *time.Time `gorm:"column:accepted_at"`
	ReadyAt                 *time.Time `gorm:"column:ready_at"`
	DeliveryStartedAt       *time.Time `gorm:"column:delivery_started_at"`
	DeliveryExpectedAt      *time.Time `gorm:"column:delivery_expected_at"`
	ActualArrivalAt         *time.Time `gorm:"column:actual_arrival_at"`
	DeliveredAt             *time.Time `gorm:"column:delivered_at"`
	CompletedAt             *time.Time `gorm:"column:completed_at"`
	CancelledAt             *time.Time `gorm:"column:cancelled_at"`
	PayoutAccruedAt         *time.Time `gorm:"column:payout_accrued_at"`
	PayoutPaidAt            *time.Time `gorm:"column:payout_paid_at"`
	FinishedPhotoURL        *string    `gorm:"column:finished_photo_url"`
	FinishedPhotoUploadedAt *time.Time `gorm:"column:finished_photo_uploaded_at"`

	CancelledBy         *enums.ActorRole        `gorm:"column:cancelled_by;type:actor_role"`
	CancelReason        *string                 `gorm:"column:cancel_reason"`
	CancelReasonCode    *enums.CancelReasonCode `gorm:"column:cancel_reason_code;type:cancel_reason_code"`
	StatusBeforeDispute *enums.OrderStatus      `gorm:"column:status_before_dispute;type:order_status"`
	CurrentPaymentID    *uuid.UUID              `gorm:"column:current_payment_id;type:uuid"`

	IsGift                  bool       `gorm:"column:is_gift;not null;default:false"`
	RecipientName           *string    `gorm:"column:recipient_name"`
	RecipientPhone          *string    `gorm:"column:recipient_phone"`
	RecipientAddress        *string    `gorm:"column:recipient_address"`
	RecipientTime           *time.Time `gorm:"column:recipient_time"`
	RecipientToken          *string    `gorm:"column:recipient_token;uniqueIndex"`
	RecipientTokenExpiresAt *time.Time `gorm:"column:recipient_token_expires_at"`
	RecipientActivatedAt    *time.Time `gorm:"column:recipient_activated_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// CookingDuration is the snapshot of the estimated cooking time.
func (o Order) CookingDuration() time.Duration {
	return time.Duration(o.EstimatedCookingMinutes) * time.Minute
}
