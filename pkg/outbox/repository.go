package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/homecook-backend/pkg/db"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	"github.com/angelmondragon/homecook-backend/pkg/validate"
)

const publishedEventConstraint = "published_events_outbox_event_id_key"

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

func (r *Repository) Exists(tx *gorm.DB, eventType enums.OutboxEventType, aggregateID uuid.UUID) (bool, error) {
	var count int64
	err := tx.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", eventType, aggregateID).
		Count(&count).Error
	return count > 0, err
}

// ClaimDue locks up to limit pending rows whose next attempt is due. Rows held
// by another dispatcher are skipped, so concurrent workers never share a row.
func (r *Repository) ClaimDue(tx *gorm.DB, now time.Time, limit int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var rows []models.OutboxEvent
	err := dbpkg.ClaimSkipLocked(tx).
		Where("status = ? AND next_attempt_at <= ?", enums.OutboxStatusPending, now).
		Order("next_attempt_at ASC").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkProcessed(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.OutboxStatusProcessed,
			"processed_at":  at,
			"error_message": nil,
		}).Error
}

func (r *Repository) MarkRetry(tx *gorm.DB, id uuid.UUID, attempts int, next time.Time, cause error) error {
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempt_count":   attempts,
			"next_attempt_at": next,
			"error_message":   errorMessage(cause),
		}).Error
}

func (r *Repository) MarkDead(tx *gorm.DB, id uuid.UUID, attempts int, cause error) error {
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.OutboxStatusDead,
			"dead_letter":   true,
			"attempt_count": attempts,
			"error_message": errorMessage(cause),
		}).Error
}

// InsertPublished records the publish once; a duplicate for the same outbox row is ignored.
func (r *Repository) InsertPublished(tx *gorm.DB, row models.PublishedEvent) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	err := tx.Create(&row).Error
	if err != nil && dbpkg.IsUniqueViolation(err, publishedEventConstraint) {
		return nil
	}
	return err
}

// DeleteProcessedBefore removes processed rows older than cutoff and returns the count.
func (r *Repository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", enums.OutboxStatusProcessed, cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

// CountProcessedBefore counts what DeleteProcessedBefore would remove.
func (r *Repository) CountProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("status = ? AND processed_at < ?", enums.OutboxStatusProcessed, cutoff).
		Count(&n).Error
	return n, err
}

// Backlog returns row counts per status plus the creation time of the oldest
// pending row, if any.
func (r *Repository) Backlog(ctx context.Context) (map[enums.OutboxStatus]int64, *time.Time, error) {
	var rows []struct {
		Status enums.OutboxStatus
		N      int64
	}
	if err := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Select("status, count(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, nil, err
	}
	counts := make(map[enums.OutboxStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	if counts[enums.OutboxStatusPending] == 0 {
		return counts, nil, nil
	}
	var oldest models.OutboxEvent
	if err := r.db.WithContext(ctx).Where("status = ?", enums.OutboxStatusPending).
		Order("created_at ASC").Limit(1).Take(&oldest).Error; err != nil {
		return nil, nil, err
	}
	createdAt := oldest.CreatedAt
	return counts, &createdAt, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.OutboxEvent, error) {
	var row models.OutboxEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// maxErrorBytes caps error_message; the cut never splits a UTF-8 rune.
const maxErrorBytes = 1024

func errorMessage(err error) *string {
	if err == nil {
		return nil
	}
	msg := validate.SanitizeString(err.Error(), maxErrorBytes)
	return &msg
}
