package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homecook-backend/internal/finance"
	"github.com/angelmondragon/homecook-backend/internal/ledger"
	"github.com/angelmondragon/homecook-backend/internal/penalties"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/money"
	"github.com/angelmondragon/homecook-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/homecook-backend/pkg/validate"
)

// statuses in which the seller has already started on the order
var inProgressStatuses = []enums.OrderStatus{
	enums.OrderStatusCooking,
	enums.OrderStatusReadyForReview,
	enums.OrderStatusReadyForDelivery,
	enums.OrderStatusDelivering,
	enums.OrderStatusArrived,
}

// Cancel applies the caller's cancellation rules:
//   - buyer: nothing moves before payment; after the finished photo was
//     uploaded the producer keeps a share of the item total.
//   - seller: full refund, plus a penalty point once cooking started.
//   - admin: full refund; a disputed order also closes its dispute.
func (s *service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, input CancelInput) (*models.Order, error) {
	input.Reason = validate.SanitizeString(input.Reason, 500)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "cancel", orderID, func(ctx context.Context, c *txn) error {
		if err := authorize(actor, c.order, ownerBuyer, ownerSeller, anyAdmin); err != nil {
			return err
		}
		if c.order.Status.IsTerminal() {
			return invalidTransition(c.order, "cancel")
		}
		if c.order.Status == enums.OrderStatusDispute && actor.Role != enums.ActorAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only an admin can cancel an order under dispute")
		}

		switch actor.Role {
		case enums.ActorBuyer:
			return s.buyerCancel(ctx, c, input.Reason)
		case enums.ActorSeller:
			return s.sellerCancel(ctx, c, input.Reason)
		default:
			return s.adminCancel(ctx, c, input.Reason)
		}
	})
}

func (s *service) buyerCancel(ctx context.Context, c *txn, reason string) error {
	if reason == "" {
		reason = "Cancelled by the buyer"
	}
	if c.order.Status == enums.OrderStatusWaitingForPayment {
		return s.closeCancelled(ctx, c, enums.ActorBuyer, enums.CancelReasonBuyerRequest, reason)
	}

	refundable := finance.RefundableTotal(c.order)
	compensation := decimal.Zero
	if c.order.FinishedPhotoUploadedAt != nil {
		compensation = money.Min(money.Share(finance.ItemTotalFull(c.order), s.policy.BuyerCancelCompensationRate), refundable)
	}
	refunded, err := s.refund(ctx, c, refundable.Sub(compensation))
	if err != nil {
		return err
	}
	if compensation.IsPositive() {
		producer, err := c.lockProducer(ctx)
		if err != nil {
			return err
		}
		if _, err := s.ledger.Apply(ctx, c.tx, producer, ledger.EntryInput{
			OrderID: &c.order.ID,
			Type:    enums.BalanceEntryCancelCompensation,
			Amount:  compensation,
			Note:    "buyer cancelled after the dish was finished",
		}); err != nil {
			return err
		}
	}
	if err := s.closeCancelled(ctx, c, enums.ActorBuyer, enums.CancelReasonBuyerRequest, reason); err != nil {
		return err
	}

	body := fmt.Sprintf("The buyer cancelled order %s.", c.order.ID)
	if compensation.IsPositive() {
		body = fmt.Sprintf("The buyer cancelled order %s. You receive %s as compensation.", c.order.ID, money.Format(compensation))
	}
	c.notify(c.order.BuyerID, enums.NotificationCategoryOrder, "Order cancelled",
		fmt.Sprintf("Your order was cancelled. Refunded: %s.", money.Format(refunded)))
	return c.notifySeller(ctx, "Order cancelled", body)
}

func (s *service) sellerCancel(ctx context.Context, c *txn, reason string) error {
	if reason == "" {
		reason = "Cancelled by the producer"
	}
	inProgress := c.order.Status.In(inProgressStatuses...)
	refunded, err := s.refundAll(ctx, c)
	if err != nil {
		return err
	}
	if inProgress {
		producer, err := c.lockProducer(ctx)
		if err != nil {
			return err
		}
		if _, err := s.penalties.AddPenaltyPoint(ctx, c.tx, producer, penalties.PointInput{
			OrderID: c.order.ID,
			Reason:  "Order cancelled by the producer after cooking started",
		}, &c.notes); err != nil {
			return err
		}
	}
	if err := s.closeCancelled(ctx, c, enums.ActorSeller, enums.CancelReasonSellerRequest, reason); err != nil {
		return err
	}
	c.notify(c.order.BuyerID, enums.NotificationCategoryOrder, "Order cancelled",
		fmt.Sprintf("The producer cancelled your order. Refunded: %s.", money.Format(refunded)))
	return nil
}

func (s *service) adminCancel(ctx context.Context, c *txn, reason string) error {
	if reason == "" {
		reason = "Cancelled by support"
	}
	if c.order.Status == enums.OrderStatusDispute {
		if _, err := s.disputes.CancelActive(ctx, c.tx, c.order.ID); err != nil {
			return err
		}
	}
	refunded, err := s.refundAll(ctx, c)
	if err != nil {
		return err
	}
	if err := s.closeCancelled(ctx, c, enums.ActorAdmin, enums.CancelReasonAdmin, reason); err != nil {
		return err
	}
	c.notify(c.order.BuyerID, enums.NotificationCategoryOrder, "Order cancelled",
		fmt.Sprintf("Support cancelled your order. Refunded: %s.", money.Format(refunded)))
	return c.notifySeller(ctx, "Order cancelled", fmt.Sprintf("Support cancelled order %s.", c.order.ID))
}

// AutoCancelNotAccepted cancels an order the seller let time out. It counts
// as a rejection toward the ban threshold.
func (s *service) AutoCancelNotAccepted(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.SystemCancel(ctx, orderID, SystemCancelInput{
		Code:              enums.CancelReasonAcceptanceTimeout,
		Reason:            "Acceptance timeout",
		From:              []enums.OrderStatus{enums.OrderStatusWaitingForAcceptance},
		Due:               acceptanceExpired,
		Penalize:          true,
		CountsAsRejection: true,
	})
}

// CancelLateDelivery lets the buyer walk away once the order is past its
// cooking time plus the late-delivery grace.
func (s *service) CancelLateDelivery(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, "cancel_late_delivery", orderID, func(ctx context.Context, c *txn) error {
		if err := authorize(actor, c.order, ownerBuyer); err != nil {
			return err
		}
		return s.systemCancel(ctx, c, SystemCancelInput{
			Code:     enums.CancelReasonLateDelivery,
			Reason:   "Late delivery",
			From:     []enums.OrderStatus{enums.OrderStatusCooking, enums.OrderStatusReadyForDelivery, enums.OrderStatusDelivering},
			Due:      s.deliveryLate,
			Penalize: true,
		})
	})
}

// SystemCancel is the scheduler's cancellation path. Status and due checks are
// repeated under the lock, so an order that moved on since the scan fails with
// STATE_CONFLICT instead of being cancelled twice.
func (s *service) SystemCancel(ctx context.Context, orderID uuid.UUID, input SystemCancelInput) (*models.Order, error) {
	if input.Code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancel reason code required")
	}
	return s.mutate(ctx, "system_cancel_"+string(input.Code), orderID, func(ctx context.Context, c *txn) error {
		return s.systemCancel(ctx, c, input)
	})
}

func (s *service) systemCancel(ctx context.Context, c *txn, input SystemCancelInput) error {
	if c.order.Status.IsTerminal() {
		return invalidTransition(c.order, "cancel")
	}
	if len(input.From) > 0 && !c.order.Status.In(input.From...) {
		return invalidTransition(c.order, "cancel")
	}
	if input.Due != nil && !input.Due(c.order, c.now) {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is not due for %s", input.Code).
			WithDetails(map[string]any{"order_id": c.order.ID.String(), "status": string(c.order.Status)})
	}

	if c.order.Status == enums.OrderStatusDispute {
		if _, err := s.disputes.CancelActive(ctx, c.tx, c.order.ID); err != nil {
			return err
		}
	}
	refunded, err := s.refundAll(ctx, c)
	if err != nil {
		return err
	}
	if input.Penalize {
		producer, err := c.lockProducer(ctx)
		if err != nil {
			return err
		}
		if _, err := s.penalties.AddPenaltyPoint(ctx, c.tx, producer, penalties.PointInput{
			OrderID:           c.order.ID,
			Reason:            input.Reason,
			CountsAsRejection: input.CountsAsRejection,
		}, &c.notes); err != nil {
			return err
		}
	}
	if err := s.closeCancelled(ctx, c, enums.ActorSystem, input.Code, input.Reason); err != nil {
		return err
	}

	if input.Code == enums.CancelReasonGiftExpired {
		if err := s.emit(ctx, c, enums.EventGiftExpired, nil, payloads.GiftExpiredEvent{
			OrderID:      c.order.ID,
			BuyerID:      c.order.BuyerID,
			RefundAmount: money.Format(refunded),
			ExpiredAt:    c.now,
		}); err != nil {
			return err
		}
	}
	c.notify(c.order.BuyerID, enums.NotificationCategoryOrder, "Order cancelled",
		fmt.Sprintf("Order %s was cancelled: %s. Refunded: %s.", c.order.ID, input.Reason, money.Format(refunded)))
	return c.notifySeller(ctx, "Order cancelled", fmt.Sprintf("Order %s was cancelled: %s.", c.order.ID, input.Reason))
}

// closeCancelled reverses any accrued payout and stamps the cancellation.
func (s *service) closeCancelled(ctx context.Context, c *txn, by enums.ActorRole, code enums.CancelReasonCode, reason string) error {
	producer, err := c.lockProducer(ctx)
	if err != nil {
		return err
	}
	if _, err := s.finance.OnCancelled(ctx, c.tx, c.order, producer); err != nil {
		return fmt.Errorf("reverse payout: %w", err)
	}
	cancelledAt := c.now
	c.order.Status = enums.OrderStatusCancelled
	c.order.CancelledAt = &cancelledAt
	c.order.CancelledBy = &by
	c.order.CancelReasonCode = &code
	if reason != "" {
		c.order.CancelReason = &reason
	}
	return nil
}

func (s *service) refundAll(ctx context.Context, c *txn) (decimal.Decimal, error) {
	return s.refund(ctx, c, finance.RefundableTotal(c.order))
}

func (s *service) deliveryLate(order *models.Order, now time.Time) bool {
	after, ok := s.policy.LateDeliveryAfter(order)
	return ok && now.After(after)
}

func acceptanceExpired(order *models.Order, now time.Time) bool {
	return order.AcceptanceDeadline != nil && now.After(*order.AcceptanceDeadline)
}
