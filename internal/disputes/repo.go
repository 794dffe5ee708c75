package disputes

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/homecook-backend/internal/repo"
	"github.com/angelmondragon/homecook-backend/pkg/db"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

// ActiveDisputeIndex enforces a single unresolved dispute per order.
const ActiveDisputeIndex = "disputes_one_active_per_order"

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	LockProducer(ctx context.Context, producerID uuid.UUID) (*models.Producer, error)
	SaveOrder(ctx context.Context, order *models.Order) error
	IncrementSales(ctx context.Context, producerID, dishID uuid.UUID, quantity int) error

	Create(ctx context.Context, dispute *models.Dispute) error
	Save(ctx context.Context, dispute *models.Dispute) error
	Find(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	RecordLoss(ctx context.Context, buyerID uuid.UUID, problemThreshold int) (*models.BuyerProfile, error)
	FindBuyerProfile(ctx context.Context, buyerID uuid.UUID) (*models.BuyerProfile, error)
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

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) error {
	return r.DB(ctx).Create(dispute).Error
}

func (r *repository) Save(ctx context.Context, dispute *models.Dispute) error {
	return r.DB(ctx).Save(dispute).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.DB(ctx).Where("id = ?", id).First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := db.ForUpdate(r.DB(ctx)).Where("id = ?", id).First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

// FindActiveByOrder returns nil when the order has no unresolved dispute.
func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := db.ForUpdate(r.DB(ctx)).
		Where("order_id = ? AND status IN ?", orderID, enums.ActiveDisputeStatuses).
		First(&dispute).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

// RecordLoss increments disputes_lost in place and flags the buyer once the
// threshold is reached. The profile row is created on first loss.
func (r *repository) RecordLoss(ctx context.Context, buyerID uuid.UUID, problemThreshold int) (*models.BuyerProfile, error) {
	conn := r.DB(ctx)
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.BuyerProfile{UserID: buyerID}).Error; err != nil {
		return nil, err
	}
	if err := conn.Model(&models.BuyerProfile{}).
		Where("user_id = ?", buyerID).
		UpdateColumn("disputes_lost", gorm.Expr("disputes_lost + ?", 1)).Error; err != nil {
		return nil, err
	}
	if err := conn.Model(&models.BuyerProfile{}).
		Where("user_id = ? AND disputes_lost >= ?", buyerID, problemThreshold).
		UpdateColumn("is_problem_buyer", true).Error; err != nil {
		return nil, err
	}
	return r.FindBuyerProfile(ctx, buyerID)
}

func (r *repository) FindBuyerProfile(ctx context.Context, buyerID uuid.UUID) (*models.BuyerProfile, error) {
	var profile models.BuyerProfile
	if err := r.DB(ctx).Where("user_id = ?", buyerID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}
