package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/homecook-backend/pkg/logger"
)

const (
	notificationRetentionDays = 30
	notificationCleanupBatch  = 500
	notificationCleanupMax    = 50
)

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository notificationsCleanupRepo
	Retention  int
	BatchSize  int
	DryRun     bool
}

type notificationsCleanupRepo interface {
	CountReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// NewNotificationCleanupJob purges read notifications created before the
// retention window. Unread rows are kept regardless of age.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = notificationRetentionDays
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = notificationCleanupBatch
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		batch:     batch,
		dryRun:    params.DryRun,
		now:       time.Now,
	}, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	repo      notificationsCleanupRepo
	retention int
	batch     int
	dryRun    bool
	now       func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	ctx = j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"dry_run":        j.dryRun,
	})

	if j.dryRun {
		eligible, err := j.repo.CountReadBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("notification cleanup: %w", err)
		}
		j.logg.Info(j.logg.WithField(ctx, "rows_eligible", eligible), "notification cleanup preview")
		return nil
	}

	var deleted int64
	batches := 0
	for batches < notificationCleanupMax {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.repo.DeleteReadBefore(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("notification cleanup batch %d: %w", batches+1, err)
		}
		batches++
		deleted += n
		if n < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"rows_deleted": deleted,
		"batches":      batches,
	}), "notification cleanup complete")
	return nil
}
