package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/internal/ledger"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	"github.com/angelmondragon/homecook-backend/pkg/money"
)

type balanceLedger interface {
	Apply(ctx context.Context, tx *gorm.DB, producer *models.Producer, input ledger.EntryInput) (*models.BalanceEntry, error)
}

// Calculator moves an order's payout in and out of the producer balance.
// Callers hold the order and producer row locks in tx and persist the order
// afterwards; the producer balance is written through the ledger.
type Calculator struct {
	ledger balanceLedger
	now    func() time.Time
}

func NewCalculator(ledger balanceLedger) (*Calculator, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &Calculator{ledger: ledger, now: time.Now}, nil
}

// OnCompleted refreshes the snapshot and accrues payable to the producer once.
// It returns the amount credited, zero when the order was already accrued.
func (c *Calculator) OnCompleted(ctx context.Context, tx *gorm.DB, order *models.Order, producer *models.Producer) (decimal.Decimal, error) {
	CalculateSnapshot(order).Apply(order)
	if order.PayoutStatus != enums.PayoutNotAccrued {
		return decimal.Zero, nil
	}
	if err := c.requireProducer(order, producer); err != nil {
		return decimal.Zero, err
	}

	if _, err := c.ledger.Apply(ctx, tx, producer, ledger.EntryInput{
		OrderID: &order.ID,
		Type:    enums.BalanceEntryPayoutAccrual,
		Amount:  order.PayableAmount,
		Note:    "order completed",
	}); err != nil {
		return decimal.Zero, err
	}

	now := c.now().UTC()
	order.PayoutStatus = enums.PayoutAccrued
	order.PayoutAccruedAt = &now
	return order.PayableAmount, nil
}

// ApplyRefund records refunded items and tips, recomputes the snapshot and,
// when the payout was accrued, moves the producer balance by the payable delta.
// It returns that delta (zero or negative).
func (c *Calculator) ApplyRefund(ctx context.Context, tx *gorm.DB, order *models.Order, producer *models.Producer, refundItems, refundTips decimal.Decimal) (decimal.Decimal, error) {
	refundItems = money.NonNegative(money.Round(refundItems))
	refundTips = money.NonNegative(money.Round(refundTips))
	if refundItems.IsZero() && refundTips.IsZero() {
		return decimal.Zero, nil
	}

	before := CalculateSnapshot(order)
	previousPayable := order.PayableAmount
	if order.PayoutStatus != enums.PayoutAccrued {
		previousPayable = before.Payable
	}

	order.RefundedTotalAmount = money.Min(order.RefundedTotalAmount.Add(refundItems), before.ItemTotalFull)
	order.RefundedTipsAmount = money.Min(order.RefundedTipsAmount.Add(refundTips), order.TipsAmount)

	after := CalculateSnapshot(order)
	after.Apply(order)
	order.RefundedCommissionAmount = money.NonNegative(
		order.RefundedCommissionAmount.Add(before.CommissionAmount.Sub(after.CommissionAmount)),
	)

	if order.PayoutStatus != enums.PayoutAccrued {
		return decimal.Zero, nil
	}
	delta := after.Payable.Sub(previousPayable)
	if delta.IsZero() {
		return decimal.Zero, nil
	}
	if err := c.requireProducer(order, producer); err != nil {
		return decimal.Zero, err
	}
	if _, err := c.ledger.Apply(ctx, tx, producer, ledger.EntryInput{
		OrderID: &order.ID,
		Type:    enums.BalanceEntryRefundAdjustment,
		Amount:  delta,
		Note:    fmt.Sprintf("refund items %s tips %s", money.Format(refundItems), money.Format(refundTips)),
	}); err != nil {
		return decimal.Zero, err
	}
	return delta, nil
}

// OnCancelled reverses a previous accrual and zeroes the payable amount.
// It returns the amount taken back from the producer.
func (c *Calculator) OnCancelled(ctx context.Context, tx *gorm.DB, order *models.Order, producer *models.Producer) (decimal.Decimal, error) {
	reversed := decimal.Zero
	if order.PayoutStatus == enums.PayoutAccrued && order.PayableAmount.IsPositive() {
		if err := c.requireProducer(order, producer); err != nil {
			return decimal.Zero, err
		}
		if _, err := c.ledger.Apply(ctx, tx, producer, ledger.EntryInput{
			OrderID: &order.ID,
			Type:    enums.BalanceEntryAccrualReversal,
			Amount:  order.PayableAmount.Neg(),
			Note:    "order cancelled",
		}); err != nil {
			return decimal.Zero, err
		}
		reversed = order.PayableAmount
	}

	order.PayoutStatus = enums.PayoutNotAccrued
	order.PayoutAccruedAt = nil
	order.PayableAmount = decimal.Zero
	return reversed, nil
}

func (c *Calculator) requireProducer(order *models.Order, producer *models.Producer) error {
	if producer == nil {
		return fmt.Errorf("producer required to settle order %s", order.ID)
	}
	if producer.ID != order.ProducerID {
		return fmt.Errorf("producer %s does not own order %s", producer.ID, order.ID)
	}
	return nil
}
