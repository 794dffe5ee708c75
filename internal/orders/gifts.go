package orders

import (
	"context"
	"fmt"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/homecook-backend/pkg/validate"
)

// ActivateGift is called by the gift recipient through the token link. It
// stores where and when to deliver and hands the order to the seller.
func (s *service) ActivateGift(ctx context.Context, input ActivateGiftInput) (*models.Order, error) {
	input.Address = validate.SanitizeString(input.Address, 500)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	found, err := s.repo.FindByRecipientToken(ctx, input.Token)
	if err != nil {
		return nil, notFound(err, "gift")
	}

	return s.mutate(ctx, "activate_gift", found.ID, func(ctx context.Context, c *txn) error {
		order := c.order
		if order.RecipientToken == nil || *order.RecipientToken != input.Token {
			return pkgerrors.New(pkgerrors.CodeNotFound, "gift not found")
		}
		if order.Status != enums.OrderStatusWaitingForRecipient {
			return invalidTransition(order, "activate the gift for")
		}
		if order.RecipientTokenExpiresAt != nil && c.now.After(*order.RecipientTokenExpiresAt) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "gift link has expired").
				WithDetails(map[string]any{"expired_at": order.RecipientTokenExpiresAt.UTC()})
		}
		if !input.Time.After(c.now) {
			return pkgerrors.New(pkgerrors.CodeValidation, "delivery time must be in the future").
				WithDetails(map[string]string{"time": "must be in the future"})
		}

		address := input.Address
		when := input.Time.UTC()
		activatedAt := c.now
		order.RecipientAddress = &address
		order.RecipientTime = &when
		order.RecipientActivatedAt = &activatedAt
		s.openAcceptance(c)

		if err := s.emit(ctx, c, enums.EventGiftActivated, nil, payloads.GiftActivatedEvent{
			OrderID:       order.ID,
			BuyerID:       order.BuyerID,
			ProducerID:    order.ProducerID,
			RecipientTime: when,
			ActivatedAt:   activatedAt,
		}); err != nil {
			return err
		}
		c.notify(order.BuyerID, enums.NotificationCategoryGift, "Gift accepted",
			fmt.Sprintf("%s confirmed the delivery details.", deref(order.RecipientName)))
		return c.notifySeller(ctx, "New gift order",
			fmt.Sprintf("Gift order %s is ready to accept; deliver at %s.", order.ID, when.Format("Jan 2 15:04 MST")))
	})
}

func (s *service) emitPhotoReady(ctx context.Context, c *txn, actor Actor) error {
	return s.emit(ctx, c, enums.EventGiftPhotoReady, actorRef(actor), payloads.GiftPhotoReadyEvent{
		OrderID:  c.order.ID,
		BuyerID:  c.order.BuyerID,
		PhotoURL: deref(c.order.FinishedPhotoURL),
		ReadyAt:  c.now,
	})
}
