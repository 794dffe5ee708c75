package sla

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

// Repository finds orders that may have passed a deadline. The scan is a
// coarse pre-filter; Breached decides.
type Repository interface {
	FindOverdue(ctx context.Context, now time.Time, policy Policy, limit int) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindOverdue(ctx context.Context, now time.Time, policy Policy, limit int) ([]models.Order, error) {
	now = now.UTC()
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("(status = ? AND acceptance_deadline < ?)", enums.OrderStatusWaitingForAcceptance, now).
		Or("(status = ? AND accepted_at < ?)", enums.OrderStatusCooking, now.Add(-policy.CookingGrace)).
		Or("(status = ? AND delivery_expected_at < ?)", enums.OrderStatusDelivering, now.Add(-policy.DeliveryGrace)).
		Or("(status = ? AND recipient_token_expires_at < ?)", enums.OrderStatusWaitingForRecipient, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
