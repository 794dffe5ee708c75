package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/homecook-backend/pkg/enums"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
	"github.com/angelmondragon/homecook-backend/pkg/metrics"
)

const (
	outboxRetentionDays = 30
	defaultStaleAfter   = 15 * time.Minute
)

type outboxRetentionRepo interface {
	CountProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Backlog(ctx context.Context) (map[enums.OutboxStatus]int64, *time.Time, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboxRetentionRepo
	Metrics    *metrics.OutboxMetrics
	Retention  int
	// StaleAfter is how old the oldest pending row may get before the sweep
	// warns that the publisher is falling behind.
	StaleAfter time.Duration
	DryRun     bool
}

// outboxRetentionJob prunes PROCESSED rows past retention and reports the
// remaining backlog. PENDING and DEAD rows are never deleted; dead rows stay
// until an operator requeues or inspects them.
type outboxRetentionJob struct {
	logg       *logger.Logger
	repo       outboxRetentionRepo
	metrics    *metrics.OutboxMetrics
	retention  int
	staleAfter time.Duration
	dryRun     bool
	now        func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:       params.Logger,
		repo:       params.Repository,
		metrics:    params.Metrics,
		retention:  params.Retention,
		staleAfter: params.StaleAfter,
		dryRun:     params.DryRun,
		now:        time.Now,
	}
	if job.retention <= 0 {
		job.retention = outboxRetentionDays
	}
	if job.staleAfter <= 0 {
		job.staleAfter = defaultStaleAfter
	}
	return job, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.AddDate(0, 0, -j.retention)
	ctx = j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"dry_run":        j.dryRun,
	})

	var (
		affected int64
		err      error
	)
	if j.dryRun {
		affected, err = j.repo.CountProcessedBefore(ctx, cutoff)
	} else {
		affected, err = j.repo.DeleteProcessedBefore(ctx, cutoff)
	}
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "rows", affected), "outbox retention sweep complete")

	return j.reportBacklog(ctx, now)
}

func (j *outboxRetentionJob) reportBacklog(ctx context.Context, now time.Time) error {
	counts, oldestPending, err := j.repo.Backlog(ctx)
	if err != nil {
		return fmt.Errorf("outbox backlog: %w", err)
	}
	for _, status := range []enums.OutboxStatus{enums.OutboxStatusPending, enums.OutboxStatusProcessed, enums.OutboxStatusDead} {
		j.metrics.SetBacklog(string(status), counts[status])
	}

	fields := map[string]any{
		"pending": counts[enums.OutboxStatusPending],
		"dead":    counts[enums.OutboxStatusDead],
	}
	if oldestPending != nil {
		fields["oldest_pending_age_s"] = int64(now.Sub(*oldestPending).Seconds())
	}
	logCtx := j.logg.WithFields(ctx, fields)
	switch {
	case counts[enums.OutboxStatusDead] > 0:
		j.logg.Warn(logCtx, "outbox has dead-lettered events")
	case oldestPending != nil && now.Sub(*oldestPending) > j.staleAfter:
		j.logg.Warn(logCtx, "outbox publisher is falling behind")
	default:
		j.logg.Debug(logCtx, "outbox backlog healthy")
	}
	return nil
}
