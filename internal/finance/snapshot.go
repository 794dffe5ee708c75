package finance

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/money"
)

// Snapshot is the derived money view of an order at its current refund level.
type Snapshot struct {
	ItemTotalFull      decimal.Decimal
	EffectiveItemTotal decimal.Decimal
	EffectiveTips      decimal.Decimal
	CommissionAmount   decimal.Decimal
	ProducerGross      decimal.Decimal
	ProducerNet        decimal.Decimal
	Payable            decimal.Decimal
}

// CalculateSnapshot derives commission and producer amounts from the order's
// totals, refunds and frozen commission rate. It does not mutate the order.
func CalculateSnapshot(order *models.Order) Snapshot {
	itemTotalFull := ItemTotalFull(order)
	effectiveItems := money.NonNegative(itemTotalFull.Sub(order.RefundedTotalAmount))
	effectiveTips := money.NonNegative(order.TipsAmount.Sub(order.RefundedTipsAmount))
	commission := money.Share(effectiveItems, order.CommissionRateSnapshot)
	net := money.NonNegative(effectiveItems.Sub(commission).Add(effectiveTips))

	return Snapshot{
		ItemTotalFull:      itemTotalFull,
		EffectiveItemTotal: effectiveItems,
		EffectiveTips:      effectiveTips,
		CommissionAmount:   commission,
		ProducerGross:      effectiveItems,
		ProducerNet:        net,
		Payable:            net,
	}
}

// ItemTotalFull is the order total without delivery, floored at zero.
func ItemTotalFull(order *models.Order) decimal.Decimal {
	return money.NonNegative(order.TotalPrice.Sub(order.DeliveryPrice))
}

// Apply writes the derived amounts onto order.
func (s Snapshot) Apply(order *models.Order) {
	order.CommissionAmount = s.CommissionAmount
	order.ProducerGrossAmount = s.ProducerGross
	order.ProducerNetAmount = s.ProducerNet
	order.PayableAmount = s.Payable
}

// SplitRefund assigns a lump refund to the remaining item total first and
// the remaining tips second. Anything beyond both is dropped.
func SplitRefund(order *models.Order, amount decimal.Decimal) (items, tips decimal.Decimal) {
	amount = money.NonNegative(money.Round(amount))
	remainingItems := money.NonNegative(ItemTotalFull(order).Sub(order.RefundedTotalAmount))
	remainingTips := money.NonNegative(order.TipsAmount.Sub(order.RefundedTipsAmount))

	items = money.Min(amount, remainingItems)
	tips = money.Min(amount.Sub(items), remainingTips)
	return items, tips
}

// RefundableTotal is what the buyer could still get back: items, delivery and tips.
func RefundableTotal(order *models.Order) decimal.Decimal {
	paid := order.TotalPrice.Add(order.TipsAmount)
	return money.NonNegative(paid.Sub(order.RefundAmount))
}
