package finance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func order(total, delivery, tips, rate string) *models.Order {
	return &models.Order{
		TotalPrice:             d(total),
		DeliveryPrice:          d(delivery),
		TipsAmount:             d(tips),
		CommissionRateSnapshot: d(rate),
	}
}

func TestCalculateSnapshotBasic(t *testing.T) {
	snap := CalculateSnapshot(order("200", "0", "0", "0.05"))
	assert.Equal(t, "10.00", snap.CommissionAmount.StringFixed(2))
	assert.Equal(t, "190.00", snap.ProducerNet.StringFixed(2))
	assert.True(t, snap.Payable.Equal(snap.ProducerNet))
}

func TestCalculateSnapshotExcludesDeliveryAndAddsTips(t *testing.T) {
	snap := CalculateSnapshot(order("250", "50", "15", "0.10"))
	assert.Equal(t, "200.00", snap.ItemTotalFull.StringFixed(2))
	assert.Equal(t, "20.00", snap.CommissionAmount.StringFixed(2))
	assert.Equal(t, "195.00", snap.ProducerNet.StringFixed(2))
}

func TestCalculateSnapshotRoundsHalfUp(t *testing.T) {
	// 33.30 * 0.075 = 2.4975
	snap := CalculateSnapshot(order("33.30", "0", "0", "0.075"))
	assert.Equal(t, "2.50", snap.CommissionAmount.StringFixed(2))
	assert.Equal(t, "30.80", snap.ProducerNet.StringFixed(2))
}

func TestCalculateSnapshotFloorsAtZero(t *testing.T) {
	o := order("20", "30", "5", "0.05")
	o.RefundedTipsAmount = d("10")
	snap := CalculateSnapshot(o)
	assert.True(t, snap.ItemTotalFull.IsZero())
	assert.True(t, snap.EffectiveTips.IsZero())
	assert.True(t, snap.ProducerNet.IsZero())
	assert.False(t, snap.Payable.IsNegative())
}

func TestSnapshotAfterRefundMatchesDirectComputation(t *testing.T) {
	refunded := order("180", "20", "12", "0.0725")
	refunded.RefundedTotalAmount = d("37.35")
	refunded.RefundedTipsAmount = d("2")

	direct := order("180", "20", "12", "0.0725")
	direct.RefundedTotalAmount = d("37.35")
	direct.RefundedTipsAmount = d("2")
	direct.CommissionAmount = d("99")

	a := CalculateSnapshot(refunded)
	a.Apply(refunded)
	b := CalculateSnapshot(refunded)
	c := CalculateSnapshot(direct)

	assert.True(t, a.CommissionAmount.Equal(b.CommissionAmount))
	assert.True(t, a.ProducerNet.Equal(c.ProducerNet))
	assert.True(t, a.CommissionAmount.Equal(c.CommissionAmount))
}

func TestSplitRefundItemsFirst(t *testing.T) {
	o := order("100", "10", "20", "0.05")

	items, tips := SplitRefund(o, d("50"))
	assert.Equal(t, "50.00", items.StringFixed(2))
	assert.True(t, tips.IsZero())

	items, tips = SplitRefund(o, d("100"))
	assert.Equal(t, "90.00", items.StringFixed(2))
	assert.Equal(t, "10.00", tips.StringFixed(2))

	o.RefundedTotalAmount = d("90")
	items, tips = SplitRefund(o, d("500"))
	assert.True(t, items.IsZero())
	assert.Equal(t, "20.00", tips.StringFixed(2))
}

func TestRefundableTotalIncludesTipsAndDelivery(t *testing.T) {
	o := order("100", "10", "20", "0.05")
	assert.Equal(t, "120.00", RefundableTotal(o).StringFixed(2))
	o.RefundAmount = d("130")
	assert.True(t, RefundableTotal(o).IsZero())
}
