package penalties

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/pkg/db"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
)

// Repository holds the producer counter and ban writes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockProducer(ctx context.Context, producerID uuid.UUID) (*models.Producer, error)
	IncrementCounters(ctx context.Context, producerID uuid.UUID, rejections, points int) error
	DecrementPenaltyPoint(ctx context.Context, producerID uuid.UUID) (bool, error)
	RefreshCounters(ctx context.Context, producer *models.Producer) error
	SetBan(ctx context.Context, producerID uuid.UUID, banned bool, reason *string, at *time.Time) error
	SetDishesHidden(ctx context.Context, producerID uuid.UUID, hidden bool) (int64, error)
	MarkFinePaid(ctx context.Context, producerID uuid.UUID, at time.Time) error
	FindDish(ctx context.Context, dishID uuid.UUID) (*models.Dish, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindReviewForOrder(ctx context.Context, orderID uuid.UUID) (*models.Review, error)
	CreateReview(ctx context.Context, review *models.Review) error
	DeleteAutoReview(ctx context.Context, orderID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) LockProducer(ctx context.Context, producerID uuid.UUID) (*models.Producer, error) {
	var producer models.Producer
	if err := db.ForUpdate(r.db.WithContext(ctx)).First(&producer, "id = ?", producerID).Error; err != nil {
		return nil, err
	}
	return &producer, nil
}

// IncrementCounters adds to the counters in storage rather than in memory.
func (r *repository) IncrementCounters(ctx context.Context, producerID uuid.UUID, rejections, points int) error {
	updates := map[string]any{}
	if rejections != 0 {
		updates["consecutive_rejections"] = gorm.Expr("consecutive_rejections + ?", rejections)
	}
	if points != 0 {
		updates["penalty_points"] = gorm.Expr("penalty_points + ?", points)
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Producer{}).Where("id = ?", producerID).Updates(updates).Error
}

// DecrementPenaltyPoint reports false when the producer had no points left.
func (r *repository) DecrementPenaltyPoint(ctx context.Context, producerID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Producer{}).
		Where("id = ? AND penalty_points > 0", producerID).
		UpdateColumn("penalty_points", gorm.Expr("penalty_points - 1"))
	return result.RowsAffected > 0, result.Error
}

func (r *repository) RefreshCounters(ctx context.Context, producer *models.Producer) error {
	var row struct {
		PenaltyPoints         int
		ConsecutiveRejections int
	}
	if err := r.db.WithContext(ctx).Model(&models.Producer{}).
		Select("penalty_points", "consecutive_rejections").
		Where("id = ?", producer.ID).
		Take(&row).Error; err != nil {
		return err
	}
	producer.PenaltyPoints = row.PenaltyPoints
	producer.ConsecutiveRejections = row.ConsecutiveRejections
	return nil
}

func (r *repository) SetBan(ctx context.Context, producerID uuid.UUID, banned bool, reason *string, at *time.Time) error {
	updates := map[string]any{
		"is_banned":  banned,
		"ban_reason": reason,
		"banned_at":  at,
	}
	if !banned {
		updates["consecutive_rejections"] = 0
	}
	return r.db.WithContext(ctx).Model(&models.Producer{}).Where("id = ?", producerID).Updates(updates).Error
}

func (r *repository) SetDishesHidden(ctx context.Context, producerID uuid.UUID, hidden bool) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Dish{}).
		Where("producer_id = ?", producerID).
		UpdateColumn("is_hidden", hidden)
	return result.RowsAffected, result.Error
}

func (r *repository) MarkFinePaid(ctx context.Context, producerID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Producer{}).
		Where("id = ?", producerID).
		UpdateColumn("last_penalty_payment_date", at).Error
}

func (r *repository) FindDish(ctx context.Context, dishID uuid.UUID) (*models.Dish, error) {
	var dish models.Dish
	if err := r.db.WithContext(ctx).First(&dish, "id = ?", dishID).Error; err != nil {
		return nil, err
	}
	return &dish, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindReviewForOrder returns nil without error when the order has no review.
func (r *repository) FindReviewForOrder(ctx context.Context, orderID uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&review).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *repository) CreateReview(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *repository) DeleteAutoReview(ctx context.Context, orderID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("order_id = ? AND is_auto_generated = ?", orderID, true).
		Delete(&models.Review{})
	return result.RowsAffected, result.Error
}
