package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

// Payment is one attempt to charge the buyer for an order.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Provider          string              `gorm:"column:provider;not null"`
	ProviderPaymentID *string             `gorm:"column:provider_payment_id;uniqueIndex"`
	PaymentURL        *string             `gorm:"column:payment_url"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	RefundedAmount    decimal.Decimal     `gorm:"column:refunded_amount;type:numeric(12,2);not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:payment_status;not null"`
	FailureReason     *string             `gorm:"column:failure_reason"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Refundable is the captured amount not yet returned.
func (p Payment) Refundable() decimal.Decimal {
	if !p.Status.Refundable() {
		return decimal.Zero
	}
	remaining := p.Amount.Sub(p.RefundedAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}
