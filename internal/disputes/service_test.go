package disputes

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/internal/finance"
	"github.com/angelmondragon/homecook-backend/internal/ledger"
	"github.com/angelmondragon/homecook-backend/internal/notifications"
	"github.com/angelmondragon/homecook-backend/internal/payments"
	"github.com/angelmondragon/homecook-backend/internal/penalties"
	"github.com/angelmondragon/homecook-backend/internal/ratings"
	"github.com/angelmondragon/homecook-backend/internal/testdb"
	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/db"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
)

var fixedNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type harness struct {
	conn     *gorm.DB
	svc      Service
	gateway  *payments.SimulatedGateway
	recorder *notifications.Recorder
}

func newHarness(t *testing.T) harness {
	t.Helper()
	conn := testdb.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
	runner := db.Wrap(conn)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	calc, err := finance.NewCalculator(ledgerSvc)
	require.NoError(t, err)
	ratingSvc, err := ratings.NewService(ratings.NewRepository(conn), ratings.DefaultConfig())
	require.NoError(t, err)
	recorder := &notifications.Recorder{}
	delivery, err := notifications.NewBestEffort(recorder, logg)
	require.NoError(t, err)
	penaltySvc, err := penalties.NewService(penalties.ServiceParams{
		Repo:     penalties.NewRepository(conn),
		DB:       runner,
		Ledger:   ledgerSvc,
		Ratings:  ratingSvc,
		Delivery: delivery,
		Policy:   penalties.DefaultPolicy(),
		Logger:   logg,
	})
	require.NoError(t, err)
	gateway := payments.NewSimulatedGateway("https://pay.test")
	paymentSvc, err := payments.NewService(payments.NewRepository(conn), gateway)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		DB:        runner,
		Finance:   calc,
		Payments:  paymentSvc,
		Penalties: penaltySvc,
		Ledger:    ledgerSvc,
		Delivery:  delivery,
		Config:    DefaultConfig(),
		Logger:    logg,
	})
	require.NoError(t, err)
	svc.(*service).now = func() time.Time { return fixedNow }

	return harness{conn: conn, svc: svc, gateway: gateway, recorder: recorder}
}

// disputedOrder seeds a paid order that was completed and accrued before the
// buyer opened a dispute on it.
func (h harness) disputedOrder(t *testing.T, producer *models.Producer, dish *models.Dish, buyerID uuid.UUID, completed bool) (*models.Order, *models.Dispute) {
	t.Helper()
	before := enums.OrderStatusArrived
	if completed {
		before = enums.OrderStatusCompleted
	}
	order := testdb.SeedOrder(t, h.conn, producer, dish, enums.OrderStatusDispute, func(o *models.Order) {
		o.BuyerID = buyerID
		o.StatusBeforeDispute = &before
		o.DeliveredAt = testdb.At(fixedNow.Add(-2 * time.Hour))
		if completed {
			snap := finance.CalculateSnapshot(o)
			snap.Apply(o)
			o.PayoutStatus = enums.PayoutAccrued
			o.PayoutAccruedAt = testdb.At(fixedNow.Add(-time.Hour))
			o.CompletedAt = testdb.At(fixedNow.Add(-time.Hour))
		}
	})
	payment := testdb.SeedPaidPayment(t, h.conn, order)
	h.gateway.Register(*payment.ProviderPaymentID, payment.Amount)

	var dispute *models.Dispute
	require.NoError(t, h.conn.Transaction(func(tx *gorm.DB) error {
		var err error
		dispute, err = h.svc.Open(context.Background(), tx, order, OpenInput{
			OpenedBy:     buyerID,
			OpenedByRole: enums.ActorBuyer,
			Reason:       "cold food",
		})
		return err
	}))
	return order, dispute
}

func (h harness) reloadProducer(t *testing.T, id uuid.UUID) models.Producer {
	t.Helper()
	var p models.Producer
	require.NoError(t, h.conn.First(&p, "id = ?", id).Error)
	return p
}

func (h harness) reloadOrder(t *testing.T, id uuid.UUID) models.Order {
	t.Helper()
	var o models.Order
	require.NoError(t, h.conn.First(&o, "id = ?", id).Error)
	return o
}

func withBalance(amount string) testdb.ProducerOption {
	return func(p *models.Producer) { p.Balance = decimal.RequireFromString(amount) }
}

func TestResolveSellerWonCompensatesProducer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	producer := testdb.SeedProducer(t, h.conn, withBalance("95.00"))
	dish := testdb.SeedDish(t, h.conn, producer.ID, "100.00", 40)
	buyer := uuid.New()
	order, dispute := h.disputedOrder(t, producer, dish, buyer, true)

	res, err := h.svc.Resolve(ctx, ResolveInput{
		DisputeID: dispute.ID,
		Outcome:   enums.DisputeOutcomeSellerWon,
		AdminID:   uuid.New(),
		Comment:   "photos confirm delivery",
	})
	require.NoError(t, err)
	assert.Equal(t, "10.00", res.Compensation.StringFixed(2))
	assert.False(t, res.ProblemBuyer)
	assert.Equal(t, enums.DisputeStatusResolvedSellerWon, res.Dispute.Status)

	stored := h.reloadProducer(t, producer.ID)
	assert.Equal(t, "105.00", stored.Balance.StringFixed(2))
	assert.Equal(t, 0, stored.TotalSales, "already completed orders are not counted twice")

	reloaded := h.reloadOrder(t, order.ID)
	assert.Equal(t, enums.OrderStatusCompleted, reloaded.Status)
	assert.Equal(t, enums.PayoutAccrued, reloaded.PayoutStatus)

	var profile models.BuyerProfile
	require.NoError(t, h.conn.First(&profile, "user_id = ?", buyer).Error)
	assert.Equal(t, 1, profile.DisputesLost)
	assert.False(t, profile.IsProblemBuyer)

	entries, err := ledger.NewRepository(h.conn).ListByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.BalanceEntryDisputeCompensation, entries[0].Type)
}

func TestThirdLostDisputeFlagsProblemBuyer(t *testing.T) {
	h := newHarness(t)
	producer := testdb.SeedProducer(t, h.conn)
	dish := testdb.SeedDish(t, h.conn, producer.ID, "100.00", 40)
	buyer := uuid.New()

	var last *Resolution
	for i := 0; i < 3; i++ {
		_, dispute := h.disputedOrder(t, producer, dish, buyer, true)
		res, err := h.svc.Resolve(context.Background(), ResolveInput{
			DisputeID: dispute.ID,
			Outcome:   enums.DisputeOutcomeSellerWon,
			AdminID:   uuid.New(),
		})
		require.NoError(t, err)
		assert.Equal(t, i == 2, res.ProblemBuyer)
		last = res
	}
	require.NotNil(t, last)

	var profile models.BuyerProfile
	require.NoError(t, h.conn.First(&profile, "user_id = ?", buyer).Error)
	assert.Equal(t, 3, profile.DisputesLost)
	assert.True(t, profile.IsProblemBuyer)
}

func TestSellerWonOnUncompletedOrderAccruesPayout(t *testing.T) {
	h := newHarness(t)
	producer := testdb.SeedProducer(t, h.conn)
	dish := testdb.SeedDish(t, h.conn, producer.ID, "200.00", 40)
	order, dispute := h.disputedOrder(t, producer, dish, uuid.New(), false)

	res, err := h.svc.Resolve(context.Background(), ResolveInput{
		DisputeID:          dispute.ID,
		Outcome:            enums.DisputeOutcomeSellerWon,
		CompensationAmount: "5.00",
		AdminID:            uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, "5.00", res.Compensation.StringFixed(2))

	stored := h.reloadProducer(t, producer.ID)
	assert.Equal(t, "195.00", stored.Balance.StringFixed(2), "190 payout plus 5 compensation")
	assert.Equal(t, 1, stored.TotalSales)

	reloaded := h.reloadOrder(t, order.ID)
	assert.Equal(t, enums.OrderStatusCompleted, reloaded.Status)
	require.NotNil(t, reloaded.CompletedAt)
	assert.Equal(t, "190.00", reloaded.PayableAmount.StringFixed(2))
}

func TestResolveBuyerWonRefundsAndReversesPayout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	producer := testdb.SeedProducer(t, h.conn, withBalance("95.00"))
	dish := testdb.SeedDish(t, h.conn, producer.ID, "100.00", 40)
	order, dispute := h.disputedOrder(t, producer, dish, uuid.New(), true)

	res, err := h.svc.Resolve(ctx, ResolveInput{
		DisputeID: dispute.ID,
		Outcome:   enums.DisputeOutcomeBuyerWon,
		AdminID:   uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, "100.00", res.Refunded.StringFixed(2))

	reloaded := h.reloadOrder(t, order.ID)
	assert.Equal(t, enums.OrderStatusCancelled, reloaded.Status)
	require.NotNil(t, reloaded.CancelReasonCode)
	assert.Equal(t, enums.CancelReasonDisputeBuyerWon, *reloaded.CancelReasonCode)
	assert.Equal(t, enums.PayoutNotAccrued, reloaded.PayoutStatus)
	assert.True(t, reloaded.PayableAmount.IsZero())
	assert.Equal(t, "100.00", reloaded.RefundAmount.StringFixed(2))

	stored := h.reloadProducer(t, producer.ID)
	assert.True(t, stored.Balance.IsZero(), "balance %s", stored.Balance)
	assert.Equal(t, 1, stored.PenaltyPoints)

	var payment models.Payment
	require.NoError(t, h.conn.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusRefunded, payment.Status)
}

func TestResolvePartialRefundCompletesOrder(t *testing.T) {
	h := newHarness(t)
	producer := testdb.SeedProducer(t, h.conn)
	dish := testdb.SeedDish(t, h.conn, producer.ID, "100.00", 40)
	order, dispute := h.disputedOrder(t, producer, dish, uuid.New(), false)

	res, err := h.svc.Resolve(context.Background(), ResolveInput{
		DisputeID:    dispute.ID,
		Outcome:      enums.DisputeOutcomePartialRefund,
		RefundAmount: "30.00",
		AdminID:      uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, "30.00", res.Refunded.StringFixed(2))
	assert.Equal(t, enums.DisputeStatusResolvedPartial, res.Dispute.Status)

	reloaded := h.reloadOrder(t, order.ID)
	assert.Equal(t, enums.OrderStatusCompleted, reloaded.Status)
	assert.Equal(t, "3.50", reloaded.CommissionAmount.StringFixed(2))
	assert.Equal(t, "66.50", reloaded.PayableAmount.StringFixed(2))

	stored := h.reloadProducer(t, producer.ID)
	assert.Equal(t, "66.50", stored.Balance.StringFixed(2))
	assert.Equal(t, 1, stored.PenaltyPoints)

	var payment models.Payment
	require.NoError(t, h.conn.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusPartiallyRefunded, payment.Status)
}

func TestResolveTwiceIsStateConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	producer := testdb.SeedProducer(t, h.conn, withBalance("95.00"))
	dish := testdb.SeedDish(t, h.conn, producer.ID, "100.00", 40)
	order, dispute := h.disputedOrder(t, producer, dish, uuid.New(), true)

	input := ResolveInput{DisputeID: dispute.ID, Outcome: enums.DisputeOutcomeSellerWon, AdminID: uuid.New()}
	_, err := h.svc.Resolve(ctx, input)
	require.NoError(t, err)
	afterFirst := h.reloadOrder(t, order.ID)
	balanceFirst := h.reloadProducer(t, producer.ID).Balance

	_, err = h.svc.Resolve(ctx, input)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	afterSecond := h.reloadOrder(t, order.ID)
	assert.True(t, afterFirst.PayableAmount.Equal(afterSecond.PayableAmount))
	assert.Equal(t, afterFirst.Status, afterSecond.Status)
	assert.True(t, balanceFirst.Equal(h.reloadProducer(t, producer.ID).Balance))
}

func TestResolveRollsBackOnGatewayFailure(t *testing.T) {
	h := newHarness(t)
	producer := testdb.SeedProducer(t, h.conn, withBalance("95.00"))
	dish := testdb.SeedDish(t, h.conn, producer.ID, "100.00", 40)
	order, dispute := h.disputedOrder(t, producer, dish, uuid.New(), true)
	h.gateway.FailRefunds(errors.New("provider down"))

	_, err := h.svc.Resolve(context.Background(), ResolveInput{
		DisputeID: dispute.ID,
		Outcome:   enums.DisputeOutcomeBuyerWon,
		AdminID:   uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	assert.Equal(t, enums.OrderStatusDispute, h.reloadOrder(t, order.ID).Status)
	assert.Equal(t, "95.00", h.reloadProducer(t, producer.ID).Balance.StringFixed(2))
	var stored models.Dispute
	require.NoError(t, h.conn.First(&stored, "id = ?", dispute.ID).Error)
	assert.Equal(t, enums.DisputeStatusOpen, stored.Status)
	assert.Empty(t, h.recorder.Messages())
}

func TestResolveValidatesInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Resolve(ctx, ResolveInput{DisputeID: uuid.New(), Outcome: "coin_flip", AdminID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.Resolve(ctx, ResolveInput{DisputeID: uuid.New(), Outcome: enums.DisputeOutcomePartialRefund, AdminID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.Resolve(ctx, ResolveInput{DisputeID: uuid.New(), Outcome: enums.DisputeOutcomeBuyerWon, RefundAmount: "1e3", AdminID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.Resolve(ctx, ResolveInput{DisputeID: uuid.New(), Outcome: enums.DisputeOutcomeBuyerWon})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = h.svc.Resolve(ctx, ResolveInput{DisputeID: uuid.New(), Outcome: enums.DisputeOutcomeBuyerWon, AdminID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestOpenRejectsSecondActiveDispute(t *testing.T) {
	h := newHarness(t)
	producer := testdb.SeedProducer(t, h.conn)
	dish := testdb.SeedDish(t, h.conn, producer.ID, "100.00", 40)
	buyer := uuid.New()
	order, _ := h.disputedOrder(t, producer, dish, buyer, true)

	_, err := h.svc.Open(context.Background(), nil, order, OpenInput{
		OpenedBy:     buyer,
		OpenedByRole: enums.ActorBuyer,
		Reason:       "still cold",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = h.svc.Open(context.Background(), nil, order, OpenInput{OpenedBy: buyer, OpenedByRole: enums.ActorSeller, Reason: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCancelActiveAndMarkWaiting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	producer := testdb.SeedProducer(t, h.conn)
	dish := testdb.SeedDish(t, h.conn, producer.ID, "100.00", 40)
	order, dispute := h.disputedOrder(t, producer, dish, uuid.New(), true)

	waiting, err := h.svc.MarkWaiting(ctx, dispute.ID, enums.DisputeStatusWaitingSeller)
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusWaitingSeller, waiting.Status)

	_, err = h.svc.MarkWaiting(ctx, dispute.ID, enums.DisputeStatusResolvedBuyerWon)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	cancelled, err := h.svc.CancelActive(ctx, nil, order.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	cancelled, err = h.svc.CancelActive(ctx, nil, order.ID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	_, err = h.svc.MarkWaiting(ctx, dispute.ID, enums.DisputeStatusWaitingSupport)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestConfigFromOrders(t *testing.T) {
	cfg, err := ConfigFromOrders(config.OrdersConfig{ProblemBuyerThreshold: 5, SellerWinCompensation: "0.15"})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ProblemBuyerThreshold)
	assert.Equal(t, "0.15", cfg.SellerWinCompensationRate.String())

	_, err = ConfigFromOrders(config.OrdersConfig{SellerWinCompensation: "1.5"})
	assert.Error(t, err)
}
