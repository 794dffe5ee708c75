package penalties

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/internal/ledger"
	"github.com/angelmondragon/homecook-backend/internal/notifications"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
	"github.com/angelmondragon/homecook-backend/pkg/money"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type balanceLedger interface {
	Apply(ctx context.Context, tx *gorm.DB, producer *models.Producer, input ledger.EntryInput) (*models.BalanceEntry, error)
}

type ratingRecalculator interface {
	RecalculateProducer(ctx context.Context, tx *gorm.DB, producerID uuid.UUID) (decimal.Decimal, error)
}

type deliverer interface {
	Deliver(ctx context.Context, msgs ...notifications.Message) int
}

// Service applies penalties and bans. Methods taking a tx expect the caller
// to hold the producer row lock; the others own their transaction.
type Service interface {
	ApplyOrderRejectionPenalty(ctx context.Context, tx *gorm.DB, producer *models.Producer, order *models.Order, notes *notifications.Queue) (RejectionResult, error)
	AddPenaltyPoint(ctx context.Context, tx *gorm.DB, producer *models.Producer, input PointInput, notes *notifications.Queue) (bool, error)
	BanProducer(ctx context.Context, tx *gorm.DB, producer *models.Producer, reason string, notes *notifications.Queue) error
	UnbanProducer(ctx context.Context, tx *gorm.DB, producer *models.Producer, notes *notifications.Queue) error

	PayPenaltyFine(ctx context.Context, producerID, orderID uuid.UUID) (decimal.Decimal, error)
	Ban(ctx context.Context, producerID uuid.UUID, reason string) error
	Unban(ctx context.Context, producerID uuid.UUID) error
}

// RejectionResult reports what a rejection penalty changed.
type RejectionResult struct {
	PenaltyAmount decimal.Decimal
	ReviewCreated bool
	Banned        bool
}

// PointInput describes a penalty point outside the rejection flow.
type PointInput struct {
	OrderID uuid.UUID
	Reason  string
	// CountsAsRejection also bumps consecutive_rejections and runs the ban check.
	CountsAsRejection bool
}

type ServiceParams struct {
	Repo     Repository
	DB       txRunner
	Ledger   balanceLedger
	Ratings  ratingRecalculator
	Delivery deliverer
	Policy   Policy
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	db       txRunner
	ledger   balanceLedger
	ratings  ratingRecalculator
	delivery deliverer
	policy   Policy
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("penalties repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Ratings == nil {
		return nil, fmt.Errorf("ratings service required")
	}
	if params.Delivery == nil {
		return nil, fmt.Errorf("notification delivery required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		db:       params.DB,
		ledger:   params.Ledger,
		ratings:  params.Ratings,
		delivery: params.Delivery,
		policy:   params.Policy,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

func (s *service) ApplyOrderRejectionPenalty(ctx context.Context, tx *gorm.DB, producer *models.Producer, order *models.Order, notes *notifications.Queue) (RejectionResult, error) {
	repo := s.repo.WithTx(tx)
	var result RejectionResult

	if err := repo.IncrementCounters(ctx, producer.ID, 1, 1); err != nil {
		return result, fmt.Errorf("increment penalty counters: %w", err)
	}
	if err := repo.RefreshCounters(ctx, producer); err != nil {
		return result, fmt.Errorf("reload penalty counters: %w", err)
	}

	dish, err := repo.FindDish(ctx, order.DishID)
	if err != nil {
		return result, fmt.Errorf("load dish: %w", err)
	}
	result.PenaltyAmount = s.policy.PenaltyAmount(dish.Price, order.Quantity)
	reason := fmt.Sprintf("Order rejected: %s%% of %s x %d",
		s.policy.RejectionRate.Shift(2).String(), money.Format(dish.Price), order.Quantity)
	order.PenaltyAmount = result.PenaltyAmount
	order.PenaltyReason = &reason

	existing, err := repo.FindReviewForOrder(ctx, order.ID)
	if err != nil {
		return result, fmt.Errorf("find review: %w", err)
	}
	if existing == nil {
		comment := "Order was rejected by the producer"
		if err := repo.CreateReview(ctx, &models.Review{
			ID:              uuid.New(),
			OrderID:         order.ID,
			ProducerID:      producer.ID,
			DishID:          order.DishID,
			BuyerID:         order.BuyerID,
			Taste:           1,
			Appearance:      1,
			Service:         1,
			Comment:         &comment,
			IsAutoGenerated: true,
		}); err != nil {
			return result, fmt.Errorf("create rejection review: %w", err)
		}
		result.ReviewCreated = true
	}

	if _, err := s.ratings.RecalculateProducer(ctx, tx, producer.ID); err != nil {
		return result, fmt.Errorf("recalculate rating: %w", err)
	}

	notes.Add(notifications.Message{
		UserID:   producer.UserID,
		Category: enums.NotificationCategoryPenalty,
		Title:    "Penalty for rejected order",
		Body:     fmt.Sprintf("A penalty of %s was recorded for order %s.", money.Format(result.PenaltyAmount), order.ID),
	})

	banned, err := s.checkBan(ctx, tx, producer, notes)
	if err != nil {
		return result, err
	}
	result.Banned = banned
	return result, nil
}

func (s *service) AddPenaltyPoint(ctx context.Context, tx *gorm.DB, producer *models.Producer, input PointInput, notes *notifications.Queue) (bool, error) {
	repo := s.repo.WithTx(tx)
	rejections := 0
	if input.CountsAsRejection {
		rejections = 1
	}
	if err := repo.IncrementCounters(ctx, producer.ID, rejections, 1); err != nil {
		return false, fmt.Errorf("increment penalty counters: %w", err)
	}
	if err := repo.RefreshCounters(ctx, producer); err != nil {
		return false, fmt.Errorf("reload penalty counters: %w", err)
	}
	if _, err := s.ratings.RecalculateProducer(ctx, tx, producer.ID); err != nil {
		return false, fmt.Errorf("recalculate rating: %w", err)
	}

	notes.Add(notifications.Message{
		UserID:   producer.UserID,
		Category: enums.NotificationCategoryPenalty,
		Title:    "Penalty point",
		Body:     fmt.Sprintf("%s (order %s). You now have %d penalty points.", input.Reason, input.OrderID, producer.PenaltyPoints),
	})

	if !input.CountsAsRejection {
		return false, nil
	}
	return s.checkBan(ctx, tx, producer, notes)
}

func (s *service) checkBan(ctx context.Context, tx *gorm.DB, producer *models.Producer, notes *notifications.Queue) (bool, error) {
	if producer.IsBanned {
		return false, nil
	}
	threshold := s.policy.BanThresholdFor(producer, s.now())
	if producer.ConsecutiveRejections < threshold {
		return false, nil
	}
	reason := fmt.Sprintf("%d consecutive rejected orders", producer.ConsecutiveRejections)
	if err := s.BanProducer(ctx, tx, producer, reason, notes); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) BanProducer(ctx context.Context, tx *gorm.DB, producer *models.Producer, reason string, notes *notifications.Queue) error {
	if producer.IsBanned {
		return nil
	}
	repo := s.repo.WithTx(tx)
	now := s.now().UTC()
	if err := repo.SetBan(ctx, producer.ID, true, &reason, &now); err != nil {
		return fmt.Errorf("ban producer: %w", err)
	}
	if _, err := repo.SetDishesHidden(ctx, producer.ID, true); err != nil {
		return fmt.Errorf("hide dishes: %w", err)
	}
	producer.IsBanned = true
	producer.BanReason = &reason
	producer.BannedAt = &now

	notes.Add(notifications.Message{
		UserID:   producer.UserID,
		Category: enums.NotificationCategoryAccount,
		Title:    "Account suspended",
		Body:     fmt.Sprintf("Your account was suspended: %s. Your dishes are hidden.", reason),
	})
	return nil
}

func (s *service) UnbanProducer(ctx context.Context, tx *gorm.DB, producer *models.Producer, notes *notifications.Queue) error {
	if !producer.IsBanned {
		return nil
	}
	repo := s.repo.WithTx(tx)
	if err := repo.SetBan(ctx, producer.ID, false, nil, nil); err != nil {
		return fmt.Errorf("unban producer: %w", err)
	}
	if _, err := repo.SetDishesHidden(ctx, producer.ID, false); err != nil {
		return fmt.Errorf("show dishes: %w", err)
	}
	producer.IsBanned = false
	producer.BanReason = nil
	producer.BannedAt = nil
	producer.ConsecutiveRejections = 0

	notes.Add(notifications.Message{
		UserID:   producer.UserID,
		Category: enums.NotificationCategoryAccount,
		Title:    "Account restored",
		Body:     "Your account is active again and your dishes are visible.",
	})
	return nil
}

// PayPenaltyFine debits the order's penalty from the balance, removes one
// penalty point and the auto-generated review. One fine per cooldown period.
func (s *service) PayPenaltyFine(ctx context.Context, producerID, orderID uuid.UUID) (decimal.Decimal, error) {
	var (
		paid  decimal.Decimal
		notes notifications.Queue
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		producer, err := s.lockProducer(ctx, repo, producerID)
		if err != nil {
			return err
		}
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return fmt.Errorf("load order: %w", err)
		}
		if order.ProducerID != producer.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another producer")
		}

		now := s.now().UTC()
		if next := s.policy.NextFineEligibleAt(producer, now); next != nil {
			return pkgerrors.New(pkgerrors.CodeCooldown, "a penalty fine was already paid this period").
				WithDetails(map[string]any{"next_eligible_at": next.UTC().Format(time.RFC3339)})
		}
		if producer.PenaltyPoints <= 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "producer has no penalty points")
		}

		amount := order.PenaltyAmount
		if !amount.IsPositive() {
			dish, err := repo.FindDish(ctx, order.DishID)
			if err != nil {
				return fmt.Errorf("load dish: %w", err)
			}
			amount = s.policy.PenaltyAmount(dish.Price, order.Quantity)
		}

		if _, err := s.ledger.Apply(ctx, tx, producer, ledger.EntryInput{
			OrderID:      &order.ID,
			Type:         enums.BalanceEntryPenaltyFine,
			Amount:       amount.Neg(),
			Note:         "penalty fine",
			RequireFunds: true,
		}); err != nil {
			return err
		}
		decremented, err := repo.DecrementPenaltyPoint(ctx, producer.ID)
		if err != nil {
			return fmt.Errorf("decrement penalty points: %w", err)
		}
		if !decremented {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "producer has no penalty points")
		}
		if err := repo.MarkFinePaid(ctx, producer.ID, now); err != nil {
			return fmt.Errorf("record fine payment: %w", err)
		}
		if _, err := repo.DeleteAutoReview(ctx, order.ID); err != nil {
			return fmt.Errorf("delete rejection review: %w", err)
		}
		if _, err := s.ratings.RecalculateProducer(ctx, tx, producer.ID); err != nil {
			return fmt.Errorf("recalculate rating: %w", err)
		}

		paid = amount
		notes.Add(notifications.Message{
			UserID:   producer.UserID,
			Category: enums.NotificationCategoryPenalty,
			Title:    "Penalty fine paid",
			Body:     fmt.Sprintf("A fine of %s was paid and one penalty point removed.", money.Format(amount)),
		})
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	s.delivery.Deliver(ctx, notes.Messages()...)
	return paid, nil
}

func (s *service) Ban(ctx context.Context, producerID uuid.UUID, reason string) error {
	if reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "ban reason required")
	}
	return s.runOnProducer(ctx, producerID, func(tx *gorm.DB, producer *models.Producer, notes *notifications.Queue) error {
		return s.BanProducer(ctx, tx, producer, reason, notes)
	})
}

func (s *service) Unban(ctx context.Context, producerID uuid.UUID) error {
	return s.runOnProducer(ctx, producerID, func(tx *gorm.DB, producer *models.Producer, notes *notifications.Queue) error {
		return s.UnbanProducer(ctx, tx, producer, notes)
	})
}

func (s *service) runOnProducer(ctx context.Context, producerID uuid.UUID, fn func(tx *gorm.DB, producer *models.Producer, notes *notifications.Queue) error) error {
	var notes notifications.Queue
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		producer, err := s.lockProducer(ctx, s.repo.WithTx(tx), producerID)
		if err != nil {
			return err
		}
		return fn(tx, producer, &notes)
	})
	if err != nil {
		return err
	}
	s.delivery.Deliver(ctx, notes.Messages()...)
	logCtx := s.logg.WithProducerID(ctx, producerID.String())
	s.logg.Info(logCtx, "producer ban state updated")
	return nil
}

func (s *service) lockProducer(ctx context.Context, repo Repository, producerID uuid.UUID) (*models.Producer, error) {
	producer, err := repo.LockProducer(ctx, producerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "producer not found")
		}
		return nil, fmt.Errorf("lock producer: %w", err)
	}
	return producer, nil
}
