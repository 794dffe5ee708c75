package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InitRequest asks the provider to open a checkout for a payment record.
type InitRequest struct {
	PaymentID   uuid.UUID
	Amount      decimal.Decimal
	Description string
	ReturnURL   string
}

type InitResult struct {
	ProviderPaymentID string
	PaymentURL        string
}

type RefundResult struct {
	RefundedAmount decimal.Decimal
}

// Gateway is the provider-agnostic payment capability. Provider wire formats
// live behind implementations of this interface.
type Gateway interface {
	Name() string
	InitPayment(ctx context.Context, req InitRequest) (InitResult, error)
	Refund(ctx context.Context, providerPaymentID string, amount decimal.Decimal) (RefundResult, error)
}

// Callback is the normalized provider notification about a payment outcome.
// Amount is carried as text and parsed exactly.
type Callback struct {
	ProviderPaymentID string `json:"provider_payment_id" validate:"required"`
	Succeeded         bool   `json:"succeeded"`
	Amount            string `json:"amount" validate:"required,money"`
	FailureReason     string `json:"failure_reason,omitempty"`
}
