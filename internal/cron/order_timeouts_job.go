package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/homecook-backend/internal/sla"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
)

const defaultTimeoutBatches = 10

type timeoutSweeper interface {
	ProcessOrderTimeouts(ctx context.Context, opts sla.Options) (sla.Report, error)
}

type OrderTimeoutsJobParams struct {
	Logger  *logger.Logger
	Sweeper timeoutSweeper
	// MaxBatches bounds one tick; the rest waits for the next cycle.
	MaxBatches int
	DryRun     bool
}

func NewOrderTimeoutsJob(params OrderTimeoutsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sla service required")
	}
	batches := params.MaxBatches
	if batches <= 0 {
		batches = defaultTimeoutBatches
	}
	return &orderTimeoutsJob{
		logg:       params.Logger,
		sweeper:    params.Sweeper,
		maxBatches: batches,
		dryRun:     params.DryRun,
	}, nil
}

type orderTimeoutsJob struct {
	logg       *logger.Logger
	sweeper    timeoutSweeper
	maxBatches int
	dryRun     bool
}

func (j *orderTimeoutsJob) Name() string { return "order-timeouts" }

// Run sweeps batches until the backlog drains. A dry run never changes the
// backlog, so it stops after one batch. Batches that only hit stale or
// failing orders stop the loop too, otherwise the same rows would be
// scanned again.
func (j *orderTimeoutsJob) Run(ctx context.Context) error {
	var errs error
	cancelled := 0
	for batch := 0; batch < j.maxBatches; batch++ {
		report, err := j.sweeper.ProcessOrderTimeouts(ctx, sla.Options{DryRun: j.dryRun})
		errs = multierr.Append(errs, err)
		cancelled += report.Cancelled
		if j.dryRun || !report.HasMore || report.Cancelled == 0 {
			break
		}
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "cancelled", cancelled), "order timeouts job complete")
	return errs
}
