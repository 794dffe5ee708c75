package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/money"
)

// Service owns payment records and calls the gateway. Every method runs on the
// caller's transaction so a provider failure rolls back the domain change too.
type Service interface {
	Initiate(ctx context.Context, tx *gorm.DB, order *models.Order, returnURL string) (*models.Payment, error)
	LockByProviderPaymentID(ctx context.Context, tx *gorm.DB, providerPaymentID string) (*models.Payment, error)
	FindByProviderPaymentID(ctx context.Context, tx *gorm.DB, providerPaymentID string) (*models.Payment, error)
	RecordResult(ctx context.Context, tx *gorm.DB, payment *models.Payment, cb Callback) error
	Refund(ctx context.Context, tx *gorm.DB, order *models.Order, amount decimal.Decimal) (decimal.Decimal, error)
	RefundStray(ctx context.Context, tx *gorm.DB, payment *models.Payment) (decimal.Decimal, error)
	Refundable(ctx context.Context, tx *gorm.DB, order *models.Order) (decimal.Decimal, error)
}

type service struct {
	repo    Repository
	gateway Gateway
}

func NewService(repo Repository, gateway Gateway) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{repo: repo, gateway: gateway}, nil
}

// Initiate charges total + tips through a new payment attempt and points the
// order at it. The caller persists the order.
func (s *service) Initiate(ctx context.Context, tx *gorm.DB, order *models.Order, returnURL string) (*models.Payment, error) {
	repo := s.repo.WithTx(tx)
	amount := money.Round(order.TotalPrice.Add(order.TipsAmount))
	payment := &models.Payment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		Provider:       s.gateway.Name(),
		Amount:         amount,
		RefundedAmount: decimal.Zero,
		Status:         enums.PaymentStatusInitiated,
	}
	if err := repo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	result, err := s.gateway.InitPayment(ctx, InitRequest{
		PaymentID:   payment.ID,
		Amount:      amount,
		Description: fmt.Sprintf("Order %s", order.ID),
		ReturnURL:   returnURL,
	})
	if err != nil {
		return nil, pkgerrors.External(err, "payment provider init failed")
	}

	payment.ProviderPaymentID = &result.ProviderPaymentID
	payment.PaymentURL = &result.PaymentURL
	payment.Status = enums.PaymentStatusPending
	if err := repo.Save(ctx, payment); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}
	order.CurrentPaymentID = &payment.ID
	return payment, nil
}

func (s *service) LockByProviderPaymentID(ctx context.Context, tx *gorm.DB, providerPaymentID string) (*models.Payment, error) {
	payment, err := s.repo.WithTx(tx).LockByProviderPaymentID(ctx, providerPaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, err
	}
	return payment, nil
}

// FindByProviderPaymentID reads without locking; callers use it to find the
// order to lock before locking the payment itself.
func (s *service) FindByProviderPaymentID(ctx context.Context, tx *gorm.DB, providerPaymentID string) (*models.Payment, error) {
	payment, err := s.repo.WithTx(tx).FindByProviderPaymentID(ctx, providerPaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, err
	}
	return payment, nil
}

// RecordResult applies a provider callback to a pending payment.
func (s *service) RecordResult(ctx context.Context, tx *gorm.DB, payment *models.Payment, cb Callback) error {
	if payment.Status != enums.PaymentStatusPending && payment.Status != enums.PaymentStatusInitiated {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "payment is already %s", payment.Status)
	}
	if cb.Succeeded {
		amount, err := money.ParseAmount(cb.Amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid callback amount")
		}
		if !amount.Equal(payment.Amount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "callback amount does not match payment").
				WithDetails(map[string]any{"expected": money.Format(payment.Amount), "got": money.Format(amount)})
		}
		payment.Status = enums.PaymentStatusSucceeded
	} else {
		payment.Status = enums.PaymentStatusFailed
		if cb.FailureReason != "" {
			reason := cb.FailureReason
			payment.FailureReason = &reason
		}
	}
	return s.repo.WithTx(tx).Save(ctx, payment)
}

// Refund returns up to amount of the order's captured payment and reports what
// the provider actually refunded. Orders without a captured payment refund nothing.
func (s *service) Refund(ctx context.Context, tx *gorm.DB, order *models.Order, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() || order.CurrentPaymentID == nil {
		return decimal.Zero, nil
	}
	repo := s.repo.WithTx(tx)
	payment, err := repo.LockByID(ctx, *order.CurrentPaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("load payment: %w", err)
	}

	refunded, err := s.refund(ctx, repo, payment, amount)
	if err != nil {
		return decimal.Zero, err
	}
	order.RefundAmount = money.Round(order.RefundAmount.Add(refunded))
	return refunded, nil
}

// RefundStray returns the whole of a captured attempt that is not the
// order's current payment. The order's own refund totals are untouched.
func (s *service) RefundStray(ctx context.Context, tx *gorm.DB, payment *models.Payment) (decimal.Decimal, error) {
	if payment == nil {
		return decimal.Zero, nil
	}
	return s.refund(ctx, s.repo.WithTx(tx), payment, payment.Refundable())
}

func (s *service) refund(ctx context.Context, repo Repository, payment *models.Payment, amount decimal.Decimal) (decimal.Decimal, error) {
	requested := money.Min(money.Round(amount), payment.Refundable())
	if !requested.IsPositive() || payment.ProviderPaymentID == nil {
		return decimal.Zero, nil
	}

	result, err := s.gateway.Refund(ctx, *payment.ProviderPaymentID, requested)
	if err != nil {
		return decimal.Zero, pkgerrors.External(err, "payment provider refund failed")
	}
	refunded := money.Min(money.Round(result.RefundedAmount), requested)

	payment.RefundedAmount = payment.RefundedAmount.Add(refunded)
	if payment.RefundedAmount.GreaterThanOrEqual(payment.Amount) {
		payment.Status = enums.PaymentStatusRefunded
	} else {
		payment.Status = enums.PaymentStatusPartiallyRefunded
	}
	if err := repo.Save(ctx, payment); err != nil {
		return decimal.Zero, fmt.Errorf("save payment: %w", err)
	}
	return refunded, nil
}

func (s *service) Refundable(ctx context.Context, tx *gorm.DB, order *models.Order) (decimal.Decimal, error) {
	if order.CurrentPaymentID == nil {
		return decimal.Zero, nil
	}
	payment, err := s.repo.WithTx(tx).LockByID(ctx, *order.CurrentPaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return payment.Refundable(), nil
}
