package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	"github.com/angelmondragon/homecook-backend/pkg/pagination"
)

// Repository exposes persistence helpers for notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, params listParams) ([]models.Notification, *pagination.Cursor, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (map[enums.NotificationCategory]int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (markResult, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	CountReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
	Category   enums.NotificationCategory
}

type markResult struct {
	Updated bool
	Found   bool
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.Notification, *pagination.Cursor, error) {
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", params.UserID)
	if params.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Notification
	if err := query.Order("created_at DESC, id DESC").Limit(normalized + 1).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, normalized, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *repository) CountUnread(ctx context.Context, userID uuid.UUID) (map[enums.NotificationCategory]int64, error) {
	var rows []struct {
		Category enums.NotificationCategory
		N        int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Select("category, COUNT(*) AS n").
		Where("user_id = ? AND read_at IS NULL", userID).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.NotificationCategory]int64, len(rows))
	for _, row := range rows {
		out[row.Category] = row.N
	}
	return out, nil
}

func (r *repository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (markResult, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", notificationID, userID).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return markResult{}, result.Error
	}
	if result.RowsAffected > 0 {
		return markResult{Updated: true, Found: true}, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Count(&count).Error; err != nil {
		return markResult{}, err
	}
	return markResult{Found: count > 0}, nil
}

func (r *repository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		UpdateColumn("read_at", now)
	return result.RowsAffected, result.Error
}

func (r *repository) readBefore(cutoff time.Time) *gorm.DB {
	return r.db.Model(&models.Notification{}).Where("read_at IS NOT NULL AND created_at < ?", cutoff)
}

func (r *repository) CountReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.readBefore(cutoff).WithContext(ctx).Count(&n).Error
	return n, err
}

// DeleteReadBefore removes up to limit read notifications created before
// cutoff, oldest first. A non-positive limit removes all of them.
func (r *repository) DeleteReadBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	conn := r.db.WithContext(ctx)
	if limit <= 0 {
		result := conn.Where("read_at IS NOT NULL AND created_at < ?", cutoff).Delete(&models.Notification{})
		return result.RowsAffected, result.Error
	}
	ids := r.readBefore(cutoff).Select("id").Order("created_at ASC").Limit(limit)
	result := conn.Where("id IN (?)", ids).Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}
