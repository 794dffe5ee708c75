package ratings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

// Repository reads review and order history and writes computed scores.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProducer(ctx context.Context, producerID uuid.UUID) (*models.Producer, error)
	ListProducerReviews(ctx context.Context, producerID uuid.UUID) ([]models.Review, error)
	ListDishes(ctx context.Context, producerID uuid.UUID) ([]models.Dish, error)
	WindowStats(ctx context.Context, producerID uuid.UUID, since time.Time) (WindowStats, error)
	UpdateProducerRating(ctx context.Context, producerID uuid.UUID, rating decimal.Decimal, count int) error
	UpdateDishScores(ctx context.Context, dishID uuid.UUID, rating, sortScore decimal.Decimal) error
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

func (r *repository) FindProducer(ctx context.Context, producerID uuid.UUID) (*models.Producer, error) {
	var producer models.Producer
	if err := r.db.WithContext(ctx).First(&producer, "id = ?", producerID).Error; err != nil {
		return nil, err
	}
	return &producer, nil
}

func (r *repository) ListProducerReviews(ctx context.Context, producerID uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.WithContext(ctx).
		Where("producer_id = ?", producerID).
		Order("created_at ASC").
		Find(&reviews).Error
	return reviews, err
}

func (r *repository) ListDishes(ctx context.Context, producerID uuid.UUID) ([]models.Dish, error) {
	var dishes []models.Dish
	err := r.db.WithContext(ctx).
		Where("producer_id = ?", producerID).
		Order("created_at ASC").
		Find(&dishes).Error
	return dishes, err
}

func (r *repository) WindowStats(ctx context.Context, producerID uuid.UUID, since time.Time) (WindowStats, error) {
	var stats WindowStats
	settled := []enums.OrderStatus{enums.OrderStatusCompleted, enums.OrderStatusCancelled}

	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Order{}).
			Where("producer_id = ? AND created_at >= ?", producerID, since)
	}
	if err := base().Where("status IN ?", settled).Count(&stats.Orders).Error; err != nil {
		return WindowStats{}, err
	}
	if err := base().
		Where("status = ? AND cancel_reason_code IN ?", enums.OrderStatusCancelled, enums.SLAViolationReasons).
		Count(&stats.SLAViolations).Error; err != nil {
		return WindowStats{}, err
	}

	disputes := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Dispute{}).
			Joins("JOIN orders ON orders.id = disputes.order_id").
			Where("orders.producer_id = ? AND orders.created_at >= ?", producerID, since)
	}
	if err := disputes().Count(&stats.Disputes).Error; err != nil {
		return WindowStats{}, err
	}
	if err := disputes().
		Where("disputes.status = ?", enums.DisputeStatusResolvedBuyerWon).
		Count(&stats.DisputesLost).Error; err != nil {
		return WindowStats{}, err
	}
	return stats, nil
}

func (r *repository) UpdateProducerRating(ctx context.Context, producerID uuid.UUID, rating decimal.Decimal, count int) error {
	return r.db.WithContext(ctx).Model(&models.Producer{}).
		Where("id = ?", producerID).
		Updates(map[string]any{"rating": rating, "rating_count": count}).Error
}

func (r *repository) UpdateDishScores(ctx context.Context, dishID uuid.UUID, rating, sortScore decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.Dish{}).
		Where("id = ?", dishID).
		Updates(map[string]any{"rating": rating, "sort_score": sortScore}).Error
}
