package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/money"
)

// Service is the single writer of producer.balance. Callers must hold the
// producer row lock inside tx before calling Apply.
type Service interface {
	Apply(ctx context.Context, tx *gorm.DB, producer *models.Producer, input EntryInput) (*models.BalanceEntry, error)
	OrderPayoutTotal(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (decimal.Decimal, error)
}

// EntryInput describes one signed balance movement.
type EntryInput struct {
	OrderID *uuid.UUID
	Type    enums.BalanceEntryType
	Amount  decimal.Decimal
	Note    string
	// RequireFunds rejects debits that would take the balance below zero.
	RequireFunds bool
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// Apply adds input.Amount to the producer balance and records the entry.
// Zero amounts are a no-op and return a nil entry.
func (s *service) Apply(ctx context.Context, tx *gorm.DB, producer *models.Producer, input EntryInput) (*models.BalanceEntry, error) {
	if producer == nil || producer.ID == uuid.Nil {
		return nil, fmt.Errorf("producer is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid balance entry type %q", input.Type)
	}

	amount := money.Round(input.Amount)
	if amount.IsZero() {
		return nil, nil
	}

	next := money.Round(producer.Balance.Add(amount))
	if input.RequireFunds && next.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient balance").
			WithDetails(map[string]any{
				"balance":  money.Format(producer.Balance),
				"required": money.Format(amount.Neg()),
			})
	}

	repo := s.repo.WithTx(tx)
	if err := repo.SetProducerBalance(ctx, producer.ID, next); err != nil {
		return nil, fmt.Errorf("update producer balance: %w", err)
	}

	entry := &models.BalanceEntry{
		ID:           uuid.New(),
		ProducerID:   producer.ID,
		OrderID:      input.OrderID,
		Type:         input.Type,
		Amount:       amount,
		BalanceAfter: next,
	}
	if input.Note != "" {
		note := input.Note
		entry.Note = &note
	}
	if err := repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("record balance entry: %w", err)
	}

	producer.Balance = next
	return entry, nil
}

// OrderPayoutTotal sums accrual, refund adjustment and reversal entries for the order.
// For a settled order it equals payable_amount; after cancellation it is zero.
func (s *service) OrderPayoutTotal(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (decimal.Decimal, error) {
	entries, err := s.repo.WithTx(tx).ListByOrderID(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, entry := range entries {
		for _, t := range enums.PayoutEntryTypes {
			if entry.Type == t {
				total = total.Add(entry.Amount)
				break
			}
		}
	}
	return total, nil
}
