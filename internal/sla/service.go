package sla

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/homecook-backend/internal/orders"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
)

type orderCanceller interface {
	AutoCancelNotAccepted(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	SystemCancel(ctx context.Context, orderID uuid.UUID, input orders.SystemCancelInput) (*models.Order, error)
}

// Outcome of one order in a sweep.
type Outcome string

const (
	OutcomeCancelled   Outcome = "cancelled"
	OutcomeWouldCancel Outcome = "would_cancel"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeFailed      Outcome = "failed"
)

type Options struct {
	DryRun  bool
	Verbose bool
}

type Action struct {
	OrderID uuid.UUID
	Phase   Phase
	Outcome Outcome
	Err     error
}

// Report summarises a sweep. Actions lists every order that was acted on or
// would have been.
type Report struct {
	Scanned   int
	Cancelled int
	Skipped   int
	Failed    int
	ByPhase   map[Phase]int
	Actions   []Action
	HasMore   bool
}

type ServiceParams struct {
	Repo   Repository
	Orders orderCanceller
	Policy Policy
	Logger *logger.Logger
	Clock  func() time.Time
}

// Service enforces the acceptance, cooking, delivery and gift deadlines by
// driving the order cancellation paths.
type Service struct {
	repo   Repository
	orders orderCanceller
	policy Policy
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("sla repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	policy := params.Policy
	if policy.BatchSize <= 0 {
		policy.BatchSize = defaultBatchSize
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:   params.Repo,
		orders: params.Orders,
		policy: policy,
		logg:   params.Logger,
		now:    func() time.Time { return clock().UTC() },
	}, nil
}

func (s *Service) EnforceAcceptance(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.orders.AutoCancelNotAccepted(ctx, orderID)
}

func (s *Service) EnforceCooking(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.orders.SystemCancel(ctx, orderID, orders.SystemCancelInput{
		Code:     enums.CancelReasonCookingTimeout,
		Reason:   "Cooking timeout",
		From:     []enums.OrderStatus{enums.OrderStatusCooking},
		Due:      s.policy.breachedIn(PhaseCooking),
		Penalize: true,
	})
}

func (s *Service) EnforceDelivery(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.orders.SystemCancel(ctx, orderID, orders.SystemCancelInput{
		Code:     enums.CancelReasonDeliveryTimeout,
		Reason:   "Delivery timeout",
		From:     []enums.OrderStatus{enums.OrderStatusDelivering},
		Due:      s.policy.breachedIn(PhaseDelivery),
		Penalize: true,
	})
}

// EnforceGiftExpiry refunds a gift nobody activated. The producer never saw
// the order, so there is no penalty.
func (s *Service) EnforceGiftExpiry(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.orders.SystemCancel(ctx, orderID, orders.SystemCancelInput{
		Code:   enums.CancelReasonGiftExpired,
		Reason: "Gift was not activated in time",
		From:   []enums.OrderStatus{enums.OrderStatusWaitingForRecipient},
		Due:    s.policy.breachedIn(PhaseGift),
	})
}

func (s *Service) enforce(ctx context.Context, phase Phase, orderID uuid.UUID) error {
	var err error
	switch phase {
	case PhaseAcceptance:
		_, err = s.EnforceAcceptance(ctx, orderID)
	case PhaseCooking:
		_, err = s.EnforceCooking(ctx, orderID)
	case PhaseDelivery:
		_, err = s.EnforceDelivery(ctx, orderID)
	case PhaseGift:
		_, err = s.EnforceGiftExpiry(ctx, orderID)
	default:
		err = fmt.Errorf("unknown sla phase %q", phase)
	}
	return err
}

// ProcessOrderTimeouts scans one batch of overdue orders and cancels each
// through the order service. Orders that moved on since the scan count as
// skipped; other failures are combined into the returned error and do not
// stop the sweep.
func (s *Service) ProcessOrderTimeouts(ctx context.Context, opts Options) (Report, error) {
	now := s.now()
	report := Report{ByPhase: map[Phase]int{}}

	candidates, err := s.repo.FindOverdue(ctx, now, s.policy, s.policy.BatchSize)
	if err != nil {
		return report, fmt.Errorf("find overdue orders: %w", err)
	}
	report.Scanned = len(candidates)
	report.HasMore = len(candidates) == s.policy.BatchSize

	var errs error
	for i := range candidates {
		order := &candidates[i]
		phase, breached := s.policy.Breached(order, now)
		if !breached {
			continue
		}
		action := Action{OrderID: order.ID, Phase: phase}
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"phase":   string(phase),
			"dry_run": opts.DryRun,
		})

		if opts.DryRun {
			action.Outcome = OutcomeWouldCancel
			report.ByPhase[phase]++
		} else {
			err := s.enforce(ctx, phase, order.ID)
			switch {
			case err == nil:
				action.Outcome = OutcomeCancelled
				report.Cancelled++
				report.ByPhase[phase]++
			case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
				action.Outcome = OutcomeSkipped
				action.Err = err
				report.Skipped++
			default:
				action.Outcome = OutcomeFailed
				action.Err = err
				report.Failed++
				errs = multierr.Append(errs, fmt.Errorf("order %s (%s): %w", order.ID, phase, err))
				s.logg.Error(logCtx, "sla enforcement failed", err)
			}
		}
		report.Actions = append(report.Actions, action)
		if opts.Verbose {
			s.logg.Info(s.logg.WithField(logCtx, "outcome", string(action.Outcome)), "sla order processed")
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"scanned":   report.Scanned,
		"cancelled": report.Cancelled,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
		"dry_run":   opts.DryRun,
	}), "order timeout sweep complete")
	return report, errs
}
