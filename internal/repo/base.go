package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/pkg/db"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
)

// Base provides the order and producer row access shared by the repositories
// that drive order transitions.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// Bind returns a copy running on tx; a nil tx keeps the current connection.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// LockOrder loads the order holding an exclusive row lock.
func (b Base) LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := db.ForUpdate(b.DB(ctx)).
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// LockProducer loads the producer holding an exclusive row lock. Callers lock
// the order first.
func (b Base) LockProducer(ctx context.Context, producerID uuid.UUID) (*models.Producer, error) {
	var producer models.Producer
	if err := db.ForUpdate(b.DB(ctx)).
		Where("id = ?", producerID).
		First(&producer).Error; err != nil {
		return nil, err
	}
	return &producer, nil
}

func (b Base) SaveOrder(ctx context.Context, order *models.Order) error {
	return b.DB(ctx).Save(order).Error
}

// IncrementSales bumps the producer and dish sales counters in place.
func (b Base) IncrementSales(ctx context.Context, producerID, dishID uuid.UUID, quantity int) error {
	if err := b.DB(ctx).Model(&models.Producer{}).
		Where("id = ?", producerID).
		UpdateColumn("total_sales", gorm.Expr("total_sales + ?", 1)).Error; err != nil {
		return err
	}
	return b.DB(ctx).Model(&models.Dish{}).
		Where("id = ?", dishID).
		UpdateColumn("sales_count", gorm.Expr("sales_count + ?", quantity)).Error
}
