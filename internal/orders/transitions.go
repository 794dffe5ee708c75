package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/money"
	"github.com/angelmondragon/homecook-backend/pkg/validate"
)

// Accept starts cooking. It fails once the acceptance deadline has passed and
// clears the producer's rejection streak.
func (s *service) Accept(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, "accept", orderID, func(ctx context.Context, c *txn) error {
		if err := authorize(actor, c.order, ownerSeller); err != nil {
			return err
		}
		if c.order.Status != enums.OrderStatusWaitingForAcceptance {
			return invalidTransition(c.order, "accept")
		}
		if c.order.AcceptanceDeadline != nil && c.now.After(*c.order.AcceptanceDeadline) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "acceptance deadline has passed").
				WithDetails(map[string]any{"acceptance_deadline": c.order.AcceptanceDeadline.UTC()})
		}

		producer, err := c.lockProducer(ctx)
		if err != nil {
			return err
		}
		if err := c.repo.ResetConsecutiveRejections(ctx, producer.ID); err != nil {
			return fmt.Errorf("reset rejections: %w", err)
		}
		producer.ConsecutiveRejections = 0

		acceptedAt := c.now
		c.order.Status = enums.OrderStatusCooking
		c.order.AcceptedAt = &acceptedAt
		c.notify(c.order.BuyerID, enums.NotificationCategoryOrder, "Order accepted",
			fmt.Sprintf("Your order is being cooked. Estimated time: %d min.", c.order.EstimatedCookingMinutes))
		return nil
	})
}

// Reject cancels the order on the seller's behalf with the rejection penalty
// and a full refund. A refund failure aborts the rejection.
func (s *service) Reject(ctx context.Context, actor Actor, orderID uuid.UUID, input CancelInput) (*models.Order, error) {
	input.Reason = validate.SanitizeString(input.Reason, 500)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "reject", orderID, func(ctx context.Context, c *txn) error {
		if err := authorize(actor, c.order, ownerSeller); err != nil {
			return err
		}
		if !c.order.Status.In(enums.OrderStatusWaitingForAcceptance, enums.OrderStatusCooking) {
			return invalidTransition(c.order, "reject")
		}
		producer, err := c.lockProducer(ctx)
		if err != nil {
			return err
		}
		result, err := s.penalties.ApplyOrderRejectionPenalty(ctx, c.tx, producer, c.order, &c.notes)
		if err != nil {
			return err
		}
		refunded, err := s.refundAll(ctx, c)
		if err != nil {
			return err
		}
		reason := input.Reason
		if reason == "" {
			reason = "Rejected by the producer"
		}
		if err := s.closeCancelled(ctx, c, enums.ActorSeller, enums.CancelReasonSellerRejected, reason); err != nil {
			return err
		}
		c.notify(c.order.BuyerID, enums.NotificationCategoryOrder, "Order rejected",
			fmt.Sprintf("The producer could not take your order. Refunded: %s.", money.Format(refunded)))

		if result.Banned {
			s.logg.Warn(s.logg.WithProducerID(ctx, producer.ID.String()), "producer banned after rejection streak")
		}
		return nil
	})
}

// MarkReady finishes cooking. Gift orders need the finished photo and wait
// for review; other orders go straight to delivery.
func (s *service) MarkReady(ctx context.Context, actor Actor, orderID uuid.UUID, input MarkReadyInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "mark_ready", orderID, func(ctx context.Context, c *txn) error {
		if err := authorize(actor, c.order, ownerSeller); err != nil {
			return err
		}
		if c.order.Status != enums.OrderStatusCooking {
			return invalidTransition(c.order, "mark ready")
		}
		if c.order.IsGift && input.PhotoURL == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "gift orders need a photo of the finished dish").
				WithDetails(map[string]string{"photo_url": "required for gift orders"})
		}

		readyAt := c.now
		c.order.ReadyAt = &readyAt
		if input.PhotoURL != "" {
			photo := input.PhotoURL
			c.order.FinishedPhotoURL = &photo
			c.order.FinishedPhotoUploadedAt = &readyAt
		}

		if !c.order.IsGift {
			c.order.Status = enums.OrderStatusReadyForDelivery
			c.notify(c.order.BuyerID, enums.NotificationCategoryOrder, "Order ready", "Your order is cooked and waiting for delivery.")
			return nil
		}
		c.order.Status = enums.OrderStatusReadyForReview
		if err := s.emitPhotoReady(ctx, c, actor); err != nil {
			return err
		}
		c.notify(c.order.BuyerID, enums.NotificationCategoryGift, "Gift is ready", "Take a look at the photo of your gift before it goes out.")
		return nil
	})
}

func (s *service) ApprovePhoto(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, "approve_photo", orderID, func(ctx context.Context, c *txn) error {
		if err := authorize(actor, c.order, ownerSeller, anyAdmin); err != nil {
			return err
		}
		if c.order.Status != enums.OrderStatusReadyForReview {
			return invalidTransition(c.order, "approve the photo of")
		}
		c.order.Status = enums.OrderStatusReadyForDelivery
		return nil
	})
}

// StartDelivery hands the order to the courier. Without an explicit ETA the
// delivery window applies.
func (s *service) StartDelivery(ctx context.Context, actor Actor, orderID uuid.UUID, input StartDeliveryInput) (*models.Order, error) {
	return s.mutate(ctx, "start_delivery", orderID, func(ctx context.Context, c *txn) error {
		if err := authorize(actor, c.order, ownerSeller); err != nil {
			return err
		}
		if !c.order.Status.In(enums.OrderStatusReadyForReview, enums.OrderStatusReadyForDelivery) {
			return invalidTransition(c.order, "start delivery of")
		}
		expected := c.now.Add(s.policy.DeliveryWindow)
		if input.ExpectedAt != nil {
			if !input.ExpectedAt.After(c.now) {
				return pkgerrors.New(pkgerrors.CodeValidation, "expected delivery time must be in the future").
					WithDetails(map[string]string{"expected_at": "must be in the future"})
			}
			expected = input.ExpectedAt.UTC()
		}
		startedAt := c.now
		c.order.Status = enums.OrderStatusDelivering
		c.order.DeliveryStartedAt = &startedAt
		c.order.DeliveryExpectedAt = &expected
		c.notify(c.order.BuyerID, enums.NotificationCategoryOrder, "On the way",
			fmt.Sprintf("Your order is on its way, expected at %s.", expected.Format("15:04 MST")))
		return nil
	})
}

func (s *service) MarkArrived(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, "mark_arrived", orderID, func(ctx context.Context, c *txn) error {
		if err := authorize(actor, c.order, ownerSeller, anyAdmin, anySystem); err != nil {
			return err
		}
		if c.order.Status != enums.OrderStatusDelivering {
			return invalidTransition(c.order, "mark arrived")
		}
		arrivedAt := c.now
		c.order.Status = enums.OrderStatusArrived
		c.order.DeliveredAt = &arrivedAt
		c.order.ActualArrivalAt = &arrivedAt
		c.notify(c.order.BuyerID, enums.NotificationCategoryOrder, "Order arrived", "Your order has arrived. Enjoy your meal!")
		return nil
	})
}

// Complete closes the order and accrues the producer payout exactly once.
func (s *service) Complete(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, "complete", orderID, func(ctx context.Context, c *txn) error {
		if err := authorize(actor, c.order, ownerBuyer, ownerSeller, anyAdmin); err != nil {
			return err
		}
		if !c.order.Status.In(enums.OrderStatusReadyForReview, enums.OrderStatusDelivering, enums.OrderStatusArrived) {
			return invalidTransition(c.order, "complete")
		}
		producer, err := c.lockProducer(ctx)
		if err != nil {
			return err
		}
		completedAt := c.now
		c.order.Status = enums.OrderStatusCompleted
		c.order.CompletedAt = &completedAt
		if err := c.repo.IncrementSales(ctx, producer.ID, c.order.DishID, c.order.Quantity); err != nil {
			return fmt.Errorf("increment sales: %w", err)
		}
		accrued, err := s.finance.OnCompleted(ctx, c.tx, c.order, producer)
		if err != nil {
			return fmt.Errorf("accrue payout: %w", err)
		}
		c.notify(producer.UserID, enums.NotificationCategoryOrder, "Order completed",
			fmt.Sprintf("Order %s is complete. %s was added to your balance.", c.order.ID, money.Format(accrued)))
		return nil
	})
}
