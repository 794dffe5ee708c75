package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
)

// Repository manages persistence for producer balance entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.BalanceEntry) error
	SetProducerBalance(ctx context.Context, producerID uuid.UUID, balance decimal.Decimal) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.BalanceEntry, error)
	ListByProducerID(ctx context.Context, producerID uuid.UUID) ([]models.BalanceEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.BalanceEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) SetProducerBalance(ctx context.Context, producerID uuid.UUID, balance decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Producer{}).
		Where("id = ?", producerID).
		Update("balance", balance).Error
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.BalanceEntry, error) {
	var entries []models.BalanceEntry
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByProducerID(ctx context.Context, producerID uuid.UUID) ([]models.BalanceEntry, error) {
	var entries []models.BalanceEntry
	if err := r.db.WithContext(ctx).
		Where("producer_id = ?", producerID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
