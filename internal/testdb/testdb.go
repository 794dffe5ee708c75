// Package testdb opens isolated in-memory sqlite databases carrying the
// production table layout for repository and service tests.
package testdb

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

var schema = []string{`
CREATE TABLE producers (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL,
  legal_type TEXT NOT NULL DEFAULT 'self_employed',
  extra_commission_rate TEXT NOT NULL DEFAULT '0',
  balance TEXT NOT NULL DEFAULT '0',
  penalty_points INTEGER NOT NULL DEFAULT 0,
  consecutive_rejections INTEGER NOT NULL DEFAULT 0,
  is_banned INTEGER NOT NULL DEFAULT 0,
  ban_reason TEXT,
  banned_at DATETIME,
  last_penalty_payment_date DATETIME,
  rating TEXT NOT NULL DEFAULT '0',
  rating_count INTEGER NOT NULL DEFAULT 0,
  total_sales INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE dishes (
  id TEXT PRIMARY KEY,
  producer_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price TEXT NOT NULL,
  estimated_cooking_minutes INTEGER NOT NULL,
  is_hidden INTEGER NOT NULL DEFAULT 0,
  rating TEXT NOT NULL DEFAULT '0',
  sort_score TEXT NOT NULL DEFAULT '0',
  sales_count INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE buyer_profiles (
  user_id TEXT PRIMARY KEY,
  disputes_lost INTEGER NOT NULL DEFAULT 0,
  is_problem_buyer INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`, `
CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  producer_id TEXT NOT NULL,
  dish_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'waiting_for_payment',
  is_urgent INTEGER NOT NULL DEFAULT 0,
  total_price TEXT NOT NULL,
  delivery_price TEXT NOT NULL DEFAULT '0',
  discount_amount TEXT NOT NULL DEFAULT '0',
  tips_amount TEXT NOT NULL DEFAULT '0',
  commission_rate_snapshot TEXT NOT NULL,
  commission_amount TEXT NOT NULL DEFAULT '0',
  producer_gross_amount TEXT NOT NULL DEFAULT '0',
  producer_net_amount TEXT NOT NULL DEFAULT '0',
  refunded_total_amount TEXT NOT NULL DEFAULT '0',
  refunded_tips_amount TEXT NOT NULL DEFAULT '0',
  refunded_commission_amount TEXT NOT NULL DEFAULT '0',
  payable_amount TEXT NOT NULL DEFAULT '0',
  penalty_amount TEXT NOT NULL DEFAULT '0',
  penalty_reason TEXT,
  refund_amount TEXT NOT NULL DEFAULT '0',
  payout_status TEXT NOT NULL DEFAULT 'not_accrued',
  estimated_cooking_minutes INTEGER NOT NULL,
  acceptance_deadline DATETIME,
  accepted_at DATETIME,
  ready_at DATETIME,
  delivery_started_at DATETIME,
  delivery_expected_at DATETIME,
  actual_arrival_at DATETIME,
  delivered_at DATETIME,
  completed_at DATETIME,
  cancelled_at DATETIME,
  payout_accrued_at DATETIME,
  payout_paid_at DATETIME,
  finished_photo_url TEXT,
  finished_photo_uploaded_at DATETIME,
  cancelled_by TEXT,
  cancel_reason TEXT,
  cancel_reason_code TEXT,
  status_before_dispute TEXT,
  current_payment_id TEXT,
  is_gift INTEGER NOT NULL DEFAULT 0,
  recipient_name TEXT,
  recipient_phone TEXT,
  recipient_address TEXT,
  recipient_time DATETIME,
  recipient_token TEXT UNIQUE,
  recipient_token_expires_at DATETIME,
  recipient_activated_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  provider_payment_id TEXT UNIQUE,
  payment_url TEXT,
  amount TEXT NOT NULL,
  refunded_amount TEXT NOT NULL DEFAULT '0',
  status TEXT NOT NULL DEFAULT 'initiated',
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE reviews (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  producer_id TEXT NOT NULL,
  dish_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  taste INTEGER NOT NULL,
  appearance INTEGER NOT NULL,
  service INTEGER NOT NULL,
  comment TEXT,
  is_auto_generated INTEGER NOT NULL DEFAULT 0,
  refund_accepted INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`, `
CREATE TABLE disputes (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  review_id TEXT,
  opened_by TEXT NOT NULL,
  opened_by_role TEXT NOT NULL,
  reason TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  outcome TEXT,
  resolution_comment TEXT,
  refund_amount TEXT NOT NULL DEFAULT '0',
  compensation_amount TEXT NOT NULL DEFAULT '0',
  resolved_by TEXT,
  resolved_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE UNIQUE INDEX disputes_one_active_per_order ON disputes (order_id)
  WHERE status IN ('open', 'waiting_seller', 'waiting_support');`, `
CREATE TABLE balance_entries (
  id TEXT PRIMARY KEY,
  producer_id TEXT NOT NULL,
  order_id TEXT,
  entry_type TEXT NOT NULL,
  amount TEXT NOT NULL,
  balance_after TEXT NOT NULL,
  note TEXT,
  created_at DATETIME
);`, `
CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  attempt_count INTEGER NOT NULL DEFAULT 0,
  next_attempt_at DATETIME NOT NULL,
  dead_letter INTEGER NOT NULL DEFAULT 0,
  error_message TEXT,
  created_at DATETIME,
  processed_at DATETIME
);`, `
CREATE TABLE published_events (
  id TEXT PRIMARY KEY,
  outbox_event_id TEXT NOT NULL UNIQUE,
  topic TEXT NOT NULL,
  message_id TEXT NOT NULL,
  published_at DATETIME NOT NULL
);`, `
CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  category TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns a fresh database. A single connection is used so the
// transaction under test and follow-up reads see the same data.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// ProducerOption customises a seeded producer.
type ProducerOption func(*models.Producer)

// SeedProducer inserts a self-employed producer with a zero balance.
func SeedProducer(t testing.TB, conn *gorm.DB, opts ...ProducerOption) *models.Producer {
	t.Helper()
	p := &models.Producer{
		ID:                  uuid.New(),
		UserID:              uuid.New(),
		DisplayName:         "Grandma Kitchen",
		LegalType:           enums.LegalTypeSelfEmployed,
		ExtraCommissionRate: decimal.Zero,
		Balance:             decimal.Zero,
		Rating:              decimal.Zero,
	}
	for _, opt := range opts {
		opt(p)
	}
	require.NoError(t, conn.Create(p).Error)
	return p
}

// SeedDish inserts a visible dish priced at price.
func SeedDish(t testing.TB, conn *gorm.DB, producerID uuid.UUID, price string, cookingMinutes int) *models.Dish {
	t.Helper()
	d := &models.Dish{
		ID:                      uuid.New(),
		ProducerID:              producerID,
		Name:                    "Pelmeni",
		Price:                   decimal.RequireFromString(price),
		EstimatedCookingMinutes: cookingMinutes,
		Rating:                  decimal.Zero,
		SortScore:               decimal.Zero,
	}
	require.NoError(t, conn.Create(d).Error)
	return d
}

// OrderOption customises a seeded order.
type OrderOption func(*models.Order)

// SeedOrder inserts an order for one unit of dish with total = dish price.
func SeedOrder(t testing.TB, conn *gorm.DB, producer *models.Producer, dish *models.Dish, status enums.OrderStatus, opts ...OrderOption) *models.Order {
	t.Helper()
	o := &models.Order{
		ID:                       uuid.New(),
		BuyerID:                  uuid.New(),
		ProducerID:               producer.ID,
		DishID:                   dish.ID,
		Quantity:                 1,
		Status:                   status,
		TotalPrice:               dish.Price,
		DeliveryPrice:            decimal.Zero,
		DiscountAmount:           decimal.Zero,
		TipsAmount:               decimal.Zero,
		CommissionRateSnapshot:   producer.TotalCommissionRate(),
		CommissionAmount:         decimal.Zero,
		ProducerGrossAmount:      decimal.Zero,
		ProducerNetAmount:        decimal.Zero,
		RefundedTotalAmount:      decimal.Zero,
		RefundedTipsAmount:       decimal.Zero,
		RefundedCommissionAmount: decimal.Zero,
		PayableAmount:            decimal.Zero,
		PenaltyAmount:            decimal.Zero,
		RefundAmount:             decimal.Zero,
		PayoutStatus:             enums.PayoutNotAccrued,
		EstimatedCookingMinutes:  dish.EstimatedCookingMinutes,
	}
	for _, opt := range opts {
		opt(o)
	}
	require.NoError(t, conn.Create(o).Error)
	return o
}

// SeedPaidPayment attaches a succeeded payment covering total + tips.
func SeedPaidPayment(t testing.TB, conn *gorm.DB, order *models.Order) *models.Payment {
	t.Helper()
	providerID := "sim_" + uuid.NewString()
	p := &models.Payment{
		ID:                uuid.New(),
		OrderID:           order.ID,
		Provider:          "simulated",
		ProviderPaymentID: &providerID,
		Amount:            order.TotalPrice.Add(order.TipsAmount),
		RefundedAmount:    decimal.Zero,
		Status:            enums.PaymentStatusSucceeded,
	}
	require.NoError(t, conn.Create(p).Error)
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("current_payment_id", p.ID).Error)
	order.CurrentPaymentID = &p.ID
	return p
}

// At returns a pointer to t, for optional timestamp fields.
func At(t time.Time) *time.Time {
	return &t
}

// OutboxRow builds an order-aggregate outbox row in status, ready for Create.
func OutboxRow(status enums.OutboxStatus, createdAt time.Time, processedAt *time.Time) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventGiftExpired,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		Status:        status,
		NextAttemptAt: createdAt,
		CreatedAt:     createdAt,
		ProcessedAt:   processedAt,
	}
}
