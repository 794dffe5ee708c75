package disputes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/internal/finance"
	"github.com/angelmondragon/homecook-backend/internal/ledger"
	"github.com/angelmondragon/homecook-backend/internal/notifications"
	"github.com/angelmondragon/homecook-backend/internal/penalties"
	"github.com/angelmondragon/homecook-backend/pkg/db"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
	"github.com/angelmondragon/homecook-backend/pkg/money"
	"github.com/angelmondragon/homecook-backend/pkg/validate"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type settlement interface {
	OnCompleted(ctx context.Context, tx *gorm.DB, order *models.Order, producer *models.Producer) (decimal.Decimal, error)
	ApplyRefund(ctx context.Context, tx *gorm.DB, order *models.Order, producer *models.Producer, refundItems, refundTips decimal.Decimal) (decimal.Decimal, error)
	OnCancelled(ctx context.Context, tx *gorm.DB, order *models.Order, producer *models.Producer) (decimal.Decimal, error)
}

type refunder interface {
	Refund(ctx context.Context, tx *gorm.DB, order *models.Order, amount decimal.Decimal) (decimal.Decimal, error)
}

type penaltyRecorder interface {
	AddPenaltyPoint(ctx context.Context, tx *gorm.DB, producer *models.Producer, input penalties.PointInput, notes *notifications.Queue) (bool, error)
}

type balanceLedger interface {
	Apply(ctx context.Context, tx *gorm.DB, producer *models.Producer, input ledger.EntryInput) (*models.BalanceEntry, error)
}

type deliverer interface {
	Deliver(ctx context.Context, msgs ...notifications.Message) int
}

// Service arbitrates disputes. Open and CancelActive run on the caller's
// transaction with the order row already locked.
type Service interface {
	Open(ctx context.Context, tx *gorm.DB, order *models.Order, input OpenInput) (*models.Dispute, error)
	CancelActive(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
	MarkWaiting(ctx context.Context, disputeID uuid.UUID, status enums.DisputeStatus) (*models.Dispute, error)
	Resolve(ctx context.Context, input ResolveInput) (*Resolution, error)
}

type OpenInput struct {
	OpenedBy     uuid.UUID       `json:"opened_by"`
	OpenedByRole enums.ActorRole `json:"opened_by_role" validate:"required,oneof=buyer admin"`
	Reason       string          `json:"reason" validate:"required,max=2000"`
	ReviewID     *uuid.UUID      `json:"review_id,omitempty"`
}

// ResolveInput carries the admin decision. Amounts are decimal text; an empty
// RefundAmount on buyer_won refunds everything still refundable and an empty
// CompensationAmount on seller_won uses the configured share of total_price.
type ResolveInput struct {
	DisputeID          uuid.UUID            `json:"dispute_id"`
	Outcome            enums.DisputeOutcome `json:"outcome" validate:"required,oneof=buyer_won seller_won partial_refund"`
	RefundAmount       string               `json:"refund_amount,omitempty" validate:"omitempty,money"`
	CompensationAmount string               `json:"compensation_amount,omitempty" validate:"omitempty,money"`
	AdminID            uuid.UUID            `json:"admin_id"`
	Comment            string               `json:"comment,omitempty" validate:"max=2000"`
}

// Resolution reports what a resolved dispute moved.
type Resolution struct {
	Dispute      *models.Dispute
	Order        *models.Order
	Refunded     decimal.Decimal
	Compensation decimal.Decimal
	ProblemBuyer bool
}

type ServiceParams struct {
	Repo      Repository
	DB        txRunner
	Finance   settlement
	Payments  refunder
	Penalties penaltyRecorder
	Ledger    balanceLedger
	Delivery  deliverer
	Config    Config
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	db        txRunner
	finance   settlement
	payments  refunder
	penalties penaltyRecorder
	ledger    balanceLedger
	delivery  deliverer
	cfg       Config
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("disputes repository required")
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
	if params.Delivery == nil {
		return nil, fmt.Errorf("notification delivery required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Config.ProblemBuyerThreshold <= 0 {
		return nil, fmt.Errorf("problem buyer threshold must be positive")
	}
	return &service{
		repo:      params.Repo,
		db:        params.DB,
		finance:   params.Finance,
		payments:  params.Payments,
		penalties: params.Penalties,
		ledger:    params.Ledger,
		delivery:  params.Delivery,
		cfg:       params.Config,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// Open records a new dispute for order. The caller moves the order into
// DISPUTE and persists it.
func (s *service) Open(ctx context.Context, tx *gorm.DB, order *models.Order, input OpenInput) (*models.Dispute, error) {
	input.Reason = validate.SanitizeString(input.Reason, 2000)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.OpenedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute author required")
	}

	repo := s.repo.WithTx(tx)
	active, err := repo.FindActiveByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("find active dispute: %w", err)
	}
	if active != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has an active dispute").
			WithDetails(map[string]any{"dispute_id": active.ID.String()})
	}

	dispute := &models.Dispute{
		ID:                 uuid.New(),
		OrderID:            order.ID,
		ReviewID:           input.ReviewID,
		OpenedBy:           input.OpenedBy,
		OpenedByRole:       input.OpenedByRole,
		Reason:             input.Reason,
		Status:             enums.DisputeStatusOpen,
		RefundAmount:       decimal.Zero,
		CompensationAmount: decimal.Zero,
	}
	if err := repo.Create(ctx, dispute); err != nil {
		if db.IsUniqueViolation(err, ActiveDisputeIndex) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has an active dispute")
		}
		return nil, fmt.Errorf("create dispute: %w", err)
	}
	return dispute, nil
}

// CancelActive closes the order's unresolved dispute, if any.
func (s *service) CancelActive(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	repo := s.repo.WithTx(tx)
	active, err := repo.FindActiveByOrder(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("find active dispute: %w", err)
	}
	if active == nil {
		return false, nil
	}
	now := s.now().UTC()
	active.Status = enums.DisputeStatusCancelled
	active.ResolvedAt = &now
	if err := repo.Save(ctx, active); err != nil {
		return false, fmt.Errorf("cancel dispute: %w", err)
	}
	return true, nil
}

// MarkWaiting parks an unresolved dispute on the seller or on support.
func (s *service) MarkWaiting(ctx context.Context, disputeID uuid.UUID, status enums.DisputeStatus) (*models.Dispute, error) {
	if status != enums.DisputeStatusWaitingSeller && status != enums.DisputeStatusWaitingSupport {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "dispute cannot wait in status %s", status)
	}
	var dispute *models.Dispute
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.Lock(ctx, disputeID)
		if err != nil {
			return notFound(err, "dispute")
		}
		if !locked.Status.IsActive() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "dispute is already %s", locked.Status)
		}
		locked.Status = status
		if err := repo.Save(ctx, locked); err != nil {
			return fmt.Errorf("save dispute: %w", err)
		}
		dispute = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

// Resolve settles an active dispute. Locks are taken order first, then the
// dispute, then the producer; a second call fails with STATE_CONFLICT.
func (s *service) Resolve(ctx context.Context, input ResolveInput) (*Resolution, error) {
	input.Comment = validate.SanitizeString(input.Comment, 2000)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.DisputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin identity missing")
	}
	refundRequest, err := optionalAmount(input.RefundAmount, "refund_amount")
	if err != nil {
		return nil, err
	}
	compensationRequest, err := optionalAmount(input.CompensationAmount, "compensation_amount")
	if err != nil {
		return nil, err
	}
	if input.Outcome == enums.DisputeOutcomePartialRefund && (refundRequest == nil || !refundRequest.IsPositive()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partial refund requires a positive refund_amount")
	}

	var (
		result Resolution
		notes  notifications.Queue
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		snapshot, err := repo.Find(ctx, input.DisputeID)
		if err != nil {
			return notFound(err, "dispute")
		}
		order, err := repo.LockOrder(ctx, snapshot.OrderID)
		if err != nil {
			return notFound(err, "order")
		}
		dispute, err := repo.Lock(ctx, snapshot.ID)
		if err != nil {
			return notFound(err, "dispute")
		}
		if !dispute.Status.IsActive() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "dispute is already %s", dispute.Status)
		}
		if order.Status != enums.OrderStatusDispute {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is %s, not under dispute", order.Status)
		}
		producer, err := repo.LockProducer(ctx, order.ProducerID)
		if err != nil {
			return notFound(err, "producer")
		}

		now := s.now().UTC()
		wasCompleted := order.CompletedAt != nil ||
			(order.StatusBeforeDispute != nil && *order.StatusBeforeDispute == enums.OrderStatusCompleted)

		switch input.Outcome {
		case enums.DisputeOutcomeBuyerWon:
			refunded, err := s.refund(ctx, tx, order, producer, refundRequest)
			if err != nil {
				return err
			}
			result.Refunded = refunded
			if err := s.penalize(ctx, tx, producer, order, &notes); err != nil {
				return err
			}
			s.cancelOrder(order, now)
			if _, err := s.finance.OnCancelled(ctx, tx, order, producer); err != nil {
				return fmt.Errorf("reverse payout: %w", err)
			}
			dispute.RefundAmount = refunded

		case enums.DisputeOutcomePartialRefund:
			refunded, err := s.refund(ctx, tx, order, producer, refundRequest)
			if err != nil {
				return err
			}
			result.Refunded = refunded
			if err := s.penalize(ctx, tx, producer, order, &notes); err != nil {
				return err
			}
			if err := s.completeOrder(ctx, tx, repo, order, producer, wasCompleted, now); err != nil {
				return err
			}
			dispute.RefundAmount = refunded

		case enums.DisputeOutcomeSellerWon:
			compensation := money.Share(order.TotalPrice, s.cfg.SellerWinCompensationRate)
			if compensationRequest != nil {
				compensation = *compensationRequest
			}
			if _, err := s.ledger.Apply(ctx, tx, producer, ledger.EntryInput{
				OrderID: &order.ID,
				Type:    enums.BalanceEntryDisputeCompensation,
				Amount:  compensation,
				Note:    "dispute resolved in seller's favour",
			}); err != nil {
				return err
			}
			result.Compensation = compensation
			dispute.CompensationAmount = compensation

			profile, err := repo.RecordLoss(ctx, order.BuyerID, s.cfg.ProblemBuyerThreshold)
			if err != nil {
				return fmt.Errorf("record lost dispute: %w", err)
			}
			result.ProblemBuyer = profile.IsProblemBuyer
			if err := s.completeOrder(ctx, tx, repo, order, producer, wasCompleted, now); err != nil {
				return err
			}
		}

		outcome := input.Outcome
		dispute.Status = outcome.ResolvedStatus()
		dispute.Outcome = &outcome
		dispute.ResolvedBy = &input.AdminID
		dispute.ResolvedAt = &now
		if input.Comment != "" {
			comment := input.Comment
			dispute.ResolutionComment = &comment
		}
		if err := repo.Save(ctx, dispute); err != nil {
			return fmt.Errorf("save dispute: %w", err)
		}
		if err := repo.SaveOrder(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		notes.Add(notifications.Message{
			UserID:   order.BuyerID,
			Category: enums.NotificationCategoryDispute,
			Title:    "Dispute resolved",
			Body:     resolutionBody(outcome, result.Refunded),
		})
		notes.Add(notifications.Message{
			UserID:   producer.UserID,
			Category: enums.NotificationCategoryDispute,
			Title:    "Dispute resolved",
			Body:     fmt.Sprintf("The dispute on order %s was resolved: %s.", order.ID, strings.ReplaceAll(string(outcome), "_", " ")),
		})

		result.Dispute = dispute
		result.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.delivery.Deliver(ctx, notes.Messages()...)
	logCtx := s.logg.WithOrderID(ctx, result.Order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"dispute_id":   result.Dispute.ID.String(),
		"outcome":      string(input.Outcome),
		"refunded":     money.Format(result.Refunded),
		"compensation": money.Format(result.Compensation),
	})
	s.logg.Info(logCtx, "dispute resolved")
	return &result, nil
}

// refund returns the requested amount (everything refundable when nil) through
// the gateway and books it against items first, then tips.
func (s *service) refund(ctx context.Context, tx *gorm.DB, order *models.Order, producer *models.Producer, requested *decimal.Decimal) (decimal.Decimal, error) {
	amount := finance.RefundableTotal(order)
	if requested != nil {
		amount = money.Min(*requested, amount)
	}
	refunded, err := s.payments.Refund(ctx, tx, order, amount)
	if err != nil {
		return decimal.Zero, err
	}
	items, tips := finance.SplitRefund(order, refunded)
	if _, err := s.finance.ApplyRefund(ctx, tx, order, producer, items, tips); err != nil {
		return decimal.Zero, fmt.Errorf("apply refund: %w", err)
	}
	return refunded, nil
}

func (s *service) penalize(ctx context.Context, tx *gorm.DB, producer *models.Producer, order *models.Order, notes *notifications.Queue) error {
	_, err := s.penalties.AddPenaltyPoint(ctx, tx, producer, penalties.PointInput{
		OrderID: order.ID,
		Reason:  "Dispute resolved in the buyer's favour",
	}, notes)
	return err
}

func (s *service) cancelOrder(order *models.Order, now time.Time) {
	by := enums.ActorAdmin
	code := enums.CancelReasonDisputeBuyerWon
	reason := "Dispute resolved in the buyer's favour"
	order.Status = enums.OrderStatusCancelled
	order.CancelledAt = &now
	order.CancelledBy = &by
	order.CancelReasonCode = &code
	order.CancelReason = &reason
}

func (s *service) completeOrder(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, producer *models.Producer, wasCompleted bool, now time.Time) error {
	order.Status = enums.OrderStatusCompleted
	if !wasCompleted {
		order.CompletedAt = &now
		if err := repo.IncrementSales(ctx, order.ProducerID, order.DishID, order.Quantity); err != nil {
			return fmt.Errorf("increment sales: %w", err)
		}
	}
	if _, err := s.finance.OnCompleted(ctx, tx, order, producer); err != nil {
		return fmt.Errorf("accrue payout: %w", err)
	}
	return nil
}

func optionalAmount(raw, field string) (*decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	amount, err := money.ParseAmount(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount").
			WithDetails(map[string]string{field: err.Error()})
	}
	return &amount, nil
}

func resolutionBody(outcome enums.DisputeOutcome, refunded decimal.Decimal) string {
	switch outcome {
	case enums.DisputeOutcomeSellerWon:
		return "Your dispute was reviewed and resolved in the seller's favour."
	case enums.DisputeOutcomePartialRefund:
		return fmt.Sprintf("Your dispute was resolved with a partial refund of %s.", money.Format(refunded))
	default:
		return fmt.Sprintf("Your dispute was resolved in your favour. Refunded: %s.", money.Format(refunded))
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", what)
	}
	return fmt.Errorf("load %s: %w", what, err)
}
