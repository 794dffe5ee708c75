package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/internal/disputes"
	"github.com/angelmondragon/homecook-backend/internal/finance"
	"github.com/angelmondragon/homecook-backend/internal/ledger"
	"github.com/angelmondragon/homecook-backend/internal/notifications"
	"github.com/angelmondragon/homecook-backend/internal/payments"
	"github.com/angelmondragon/homecook-backend/internal/penalties"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
	"github.com/angelmondragon/homecook-backend/pkg/metrics"
	"github.com/angelmondragon/homecook-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type settlement interface {
	OnCompleted(ctx context.Context, tx *gorm.DB, order *models.Order, producer *models.Producer) (decimal.Decimal, error)
	ApplyRefund(ctx context.Context, tx *gorm.DB, order *models.Order, producer *models.Producer, refundItems, refundTips decimal.Decimal) (decimal.Decimal, error)
	OnCancelled(ctx context.Context, tx *gorm.DB, order *models.Order, producer *models.Producer) (decimal.Decimal, error)
}

type paymentService interface {
	Initiate(ctx context.Context, tx *gorm.DB, order *models.Order, returnURL string) (*models.Payment, error)
	FindByProviderPaymentID(ctx context.Context, tx *gorm.DB, providerPaymentID string) (*models.Payment, error)
	LockByProviderPaymentID(ctx context.Context, tx *gorm.DB, providerPaymentID string) (*models.Payment, error)
	RecordResult(ctx context.Context, tx *gorm.DB, payment *models.Payment, cb payments.Callback) error
	Refund(ctx context.Context, tx *gorm.DB, order *models.Order, amount decimal.Decimal) (decimal.Decimal, error)
	RefundStray(ctx context.Context, tx *gorm.DB, payment *models.Payment) (decimal.Decimal, error)
}

type penaltyRecorder interface {
	ApplyOrderRejectionPenalty(ctx context.Context, tx *gorm.DB, producer *models.Producer, order *models.Order, notes *notifications.Queue) (penalties.RejectionResult, error)
	AddPenaltyPoint(ctx context.Context, tx *gorm.DB, producer *models.Producer, input penalties.PointInput, notes *notifications.Queue) (bool, error)
}

type balanceLedger interface {
	Apply(ctx context.Context, tx *gorm.DB, producer *models.Producer, input ledger.EntryInput) (*models.BalanceEntry, error)
}

type disputeEngine interface {
	Open(ctx context.Context, tx *gorm.DB, order *models.Order, input disputes.OpenInput) (*models.Dispute, error)
	CancelActive(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
	Resolve(ctx context.Context, input disputes.ResolveInput) (*disputes.Resolution, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type deliverer interface {
	Deliver(ctx context.Context, msgs ...notifications.Message) int
}

// Service is the order state machine. Every transition locks the order row,
// validates actor and status, and persists the order with its side effects in
// one transaction. Notifications go out after commit.
type Service interface {
	CreateOrder(ctx context.Context, actor Actor, input CreateOrderInput) (*models.Order, error)
	InitPayment(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Payment, error)
	HandlePaymentResult(ctx context.Context, cb payments.Callback) (*models.Order, error)
	Pay(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	ActivateGift(ctx context.Context, input ActivateGiftInput) (*models.Order, error)

	Accept(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	Reject(ctx context.Context, actor Actor, orderID uuid.UUID, input CancelInput) (*models.Order, error)
	MarkReady(ctx context.Context, actor Actor, orderID uuid.UUID, input MarkReadyInput) (*models.Order, error)
	ApprovePhoto(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	StartDelivery(ctx context.Context, actor Actor, orderID uuid.UUID, input StartDeliveryInput) (*models.Order, error)
	MarkArrived(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	Complete(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)

	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, input CancelInput) (*models.Order, error)
	CancelLateDelivery(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	AutoCancelNotAccepted(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	SystemCancel(ctx context.Context, orderID uuid.UUID, input SystemCancelInput) (*models.Order, error)

	RaiseDispute(ctx context.Context, actor Actor, orderID uuid.UUID, input RaiseDisputeInput) (*models.Order, error)
	ResolveDispute(ctx context.Context, actor Actor, input disputes.ResolveInput) (*disputes.Resolution, error)
}

type ServiceParams struct {
	Repo      Repository
	DB        txRunner
	Finance   settlement
	Payments  paymentService
	Penalties penaltyRecorder
	Ledger    balanceLedger
	Disputes  disputeEngine
	Outbox    outboxPublisher
	Delivery  deliverer
	Metrics   *metrics.OrderMetrics
	Policy    Policy
	Logger    *logger.Logger
	// Clock overrides time.Now; scheduler dry runs and tests pin it.
	Clock func() time.Time
}

type service struct {
	repo      Repository
	db        txRunner
	finance   settlement
	payments  paymentService
	penalties penaltyRecorder
	ledger    balanceLedger
	disputes  disputeEngine
	outbox    outboxPublisher
	delivery  deliverer
	metrics   *metrics.OrderMetrics
	policy    Policy
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Finance == nil {
		return nil, fmt.Errorf("finance calculator required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if params.Penalties == nil {
		return nil, fmt.Errorf("penalties service required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Disputes == nil {
		return nil, fmt.Errorf("disputes service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Delivery == nil {
		return nil, fmt.Errorf("notification delivery required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Policy.AcceptanceWindowNormal <= 0 || params.Policy.AcceptanceWindowUrgent <= 0 {
		return nil, fmt.Errorf("acceptance windows must be positive")
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		db:        params.DB,
		finance:   params.Finance,
		payments:  params.Payments,
		penalties: params.Penalties,
		ledger:    params.Ledger,
		disputes:  params.Disputes,
		outbox:    params.Outbox,
		delivery:  params.Delivery,
		metrics:   params.Metrics,
		policy:    params.Policy,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// txn is the state one locked transition works on.
type txn struct {
	tx       *gorm.DB
	repo     Repository
	order    *models.Order
	producer *models.Producer
	notes    notifications.Queue
	now      time.Time
}

// lockProducer takes the producer row lock once per transition, after the
// order lock.
func (c *txn) lockProducer(ctx context.Context) (*models.Producer, error) {
	if c.producer != nil {
		return c.producer, nil
	}
	producer, err := c.repo.LockProducer(ctx, c.order.ProducerID)
	if err != nil {
		return nil, notFound(err, "producer")
	}
	c.producer = producer
	return producer, nil
}

func (c *txn) notify(userID uuid.UUID, category enums.NotificationCategory, title, body string) {
	c.notes.Add(notifications.Message{
		UserID:   userID,
		Category: category,
		Title:    title,
		Body:     body,
		Link:     fmt.Sprintf("/orders/%s", c.order.ID),
	})
}

// notifySeller needs the producer row for its user id.
func (c *txn) notifySeller(ctx context.Context, title, body string) error {
	producer, err := c.lockProducer(ctx)
	if err != nil {
		return err
	}
	c.notify(producer.UserID, enums.NotificationCategoryOrder, title, body)
	return nil
}

// mutate runs fn against the locked order and saves it. The transition is
// counted by outcome whether or not it commits.
func (s *service) mutate(ctx context.Context, op string, orderID uuid.UUID, fn func(ctx context.Context, c *txn) error) (*models.Order, error) {
	var state *txn
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order")
		}
		state = &txn{tx: tx, repo: repo, order: order, now: s.now().UTC()}
		if err := fn(ctx, state); err != nil {
			return err
		}
		if err := repo.SaveOrder(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		return nil
	})
	s.metrics.Observe(op, outcomeOf(err))

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	logCtx = s.logg.WithField(logCtx, "operation", op)
	if err != nil {
		if outcomeOf(err) == "error" {
			s.logg.Error(logCtx, "order transition failed", err)
		}
		return nil, err
	}

	s.delivery.Deliver(ctx, state.notes.Messages()...)
	s.logg.Info(s.logg.WithField(logCtx, "status", string(state.order.Status)), "order transition applied")
	return state.order, nil
}

// refund returns amount (capped by what is still refundable) to the buyer and
// books it against items first, then tips.
func (s *service) refund(ctx context.Context, c *txn, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, nil
	}
	refunded, err := s.payments.Refund(ctx, c.tx, c.order, amount)
	if err != nil {
		return decimal.Zero, err
	}
	if !refunded.IsPositive() {
		return decimal.Zero, nil
	}
	producer, err := c.lockProducer(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	items, tips := finance.SplitRefund(c.order, refunded)
	if _, err := s.finance.ApplyRefund(ctx, c.tx, c.order, producer, items, tips); err != nil {
		return decimal.Zero, fmt.Errorf("apply refund: %w", err)
	}
	return refunded, nil
}

func (s *service) emit(ctx context.Context, c *txn, eventType enums.OutboxEventType, actor *outbox.ActorRef, data any) error {
	if err := s.outbox.Emit(ctx, c.tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   c.order.ID,
		Actor:         actor,
		Data:          data,
		Version:       1,
		OccurredAt:    c.now,
	}); err != nil {
		return fmt.Errorf("emit %s: %w", eventType, err)
	}
	return nil
}

func actorRef(actor Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return &outbox.ActorRef{Role: string(actor.Role)}
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}

func invalidTransition(order *models.Order, op string) error {
	return pkgerrors.InvalidTransition(op, string(order.Status)).
		WithDetails(map[string]any{"order_id": order.ID.String(), "status": string(order.Status)})
}

// outcomeOf maps an error to the transition counter label. Domain refusals
// are "rejected"; gateway and storage failures are "error".
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case pkgerrors.Retryable(err):
		return "error"
	default:
		return "rejected"
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", what)
	}
	return fmt.Errorf("load %s: %w", what, err)
}
