package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecook-backend/internal/disputes"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/validate"
)

// RaiseDispute opens a dispute on a delivered or completed order and parks the
// order in DISPUTE, remembering where it came from.
func (s *service) RaiseDispute(ctx context.Context, actor Actor, orderID uuid.UUID, input RaiseDisputeInput) (*models.Order, error) {
	input.Reason = validate.SanitizeString(input.Reason, 2000)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "raise_dispute", orderID, func(ctx context.Context, c *txn) error {
		if err := authorize(actor, c.order, ownerBuyer, anyAdmin); err != nil {
			return err
		}
		if !c.order.Status.In(enums.OrderStatusArrived, enums.OrderStatusCompleted) {
			return invalidTransition(c.order, "dispute")
		}
		dispute, err := s.disputes.Open(ctx, c.tx, c.order, disputes.OpenInput{
			OpenedBy:     actor.UserID,
			OpenedByRole: actor.Role,
			Reason:       input.Reason,
			ReviewID:     input.ReviewID,
		})
		if err != nil {
			return err
		}
		previous := c.order.Status
		c.order.StatusBeforeDispute = &previous
		c.order.Status = enums.OrderStatusDispute
		return c.notifySeller(ctx, "Dispute opened",
			fmt.Sprintf("A dispute (%s) was opened on order %s.", dispute.ID, c.order.ID))
	})
}

// ResolveDispute hands an admin decision to the dispute engine, which locks
// the order itself.
func (s *service) ResolveDispute(ctx context.Context, actor Actor, input disputes.ResolveInput) (*disputes.Resolution, error) {
	if actor.Role != enums.ActorAdmin || actor.UserID == uuid.Nil {
		s.metrics.Observe("resolve_dispute", "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only an admin can resolve disputes")
	}
	input.AdminID = actor.UserID
	resolution, err := s.disputes.Resolve(ctx, input)
	s.metrics.Observe("resolve_dispute", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	return resolution, nil
}
