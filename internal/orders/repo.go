package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/internal/repo"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
)

// Repository persists orders and reads the catalog rows a transition needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	LockProducer(ctx context.Context, producerID uuid.UUID) (*models.Producer, error)
	SaveOrder(ctx context.Context, order *models.Order) error
	IncrementSales(ctx context.Context, producerID, dishID uuid.UUID, quantity int) error

	Create(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByRecipientToken(ctx context.Context, token string) (*models.Order, error)
	FindDish(ctx context.Context, dishID uuid.UUID) (*models.Dish, error)
	FindProducer(ctx context.Context, producerID uuid.UUID) (*models.Producer, error)
	ResetConsecutiveRejections(ctx context.Context, producerID uuid.UUID) error
}

type repository struct {
	repo.Base
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Create(order).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByRecipientToken(ctx context.Context, token string) (*models.Order, error) {
	var order models.Order
	if err := r.DB(ctx).Where("recipient_token = ?", token).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindDish(ctx context.Context, dishID uuid.UUID) (*models.Dish, error) {
	var dish models.Dish
	if err := r.DB(ctx).Where("id = ?", dishID).First(&dish).Error; err != nil {
		return nil, err
	}
	return &dish, nil
}

// FindProducer takes a shared read; the producer row is locked separately
// when its balance or counters move.
func (r *repository) FindProducer(ctx context.Context, producerID uuid.UUID) (*models.Producer, error) {
	var producer models.Producer
	if err := r.DB(ctx).Where("id = ?", producerID).First(&producer).Error; err != nil {
		return nil, err
	}
	return &producer, nil
}

func (r *repository) ResetConsecutiveRejections(ctx context.Context, producerID uuid.UUID) error {
	return r.DB(ctx).Model(&models.Producer{}).
		Where("id = ? AND consecutive_rejections <> ?", producerID, 0).
		UpdateColumn("consecutive_rejections", 0).Error
}
