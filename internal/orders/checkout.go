package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/homecook-backend/internal/finance"
	"github.com/angelmondragon/homecook-backend/internal/payments"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/homecook-backend/pkg/errors"
	"github.com/angelmondragon/homecook-backend/pkg/money"
	"github.com/angelmondragon/homecook-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/homecook-backend/pkg/validate"
)

// CreateOrder places a single-dish order awaiting payment. The producer's
// commission rate is frozen on the order here.
func (s *service) CreateOrder(ctx context.Context, actor Actor, input CreateOrderInput) (*models.Order, error) {
	order, err := s.createOrder(ctx, actor, input)
	s.metrics.Observe("create", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"producer_id": order.ProducerID.String(),
		"total_price": money.Format(order.TotalPrice),
		"is_gift":     order.IsGift,
	})
	s.logg.Info(logCtx, "order created")
	return order, nil
}

func (s *service) createOrder(ctx context.Context, actor Actor, input CreateOrderInput) (*models.Order, error) {
	if actor.Role != enums.ActorBuyer || actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers can place orders")
	}
	if input.Gift != nil {
		input.Gift.RecipientName = validate.SanitizeString(input.Gift.RecipientName, 200)
		input.Gift.RecipientPhone = validate.SanitizeString(input.Gift.RecipientPhone, 32)
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.DishID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dish id required")
	}
	delivery, err := amountOrZero(input.DeliveryPrice, "delivery_price")
	if err != nil {
		return nil, err
	}
	discount, err := amountOrZero(input.DiscountAmount, "discount_amount")
	if err != nil {
		return nil, err
	}
	tips, err := amountOrZero(input.TipsAmount, "tips_amount")
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		dish, err := repo.FindDish(ctx, input.DishID)
		if err != nil {
			return notFound(err, "dish")
		}
		if dish.IsHidden {
			return pkgerrors.New(pkgerrors.CodeConflict, "dish is not available")
		}
		producer, err := repo.FindProducer(ctx, dish.ProducerID)
		if err != nil {
			return notFound(err, "producer")
		}
		if producer.IsBanned {
			return pkgerrors.New(pkgerrors.CodeConflict, "producer is not accepting orders")
		}

		items := dish.Price.Mul(decimal.NewFromInt(int64(input.Quantity)))
		order = &models.Order{
			ID:                       uuid.New(),
			BuyerID:                  actor.UserID,
			ProducerID:               producer.ID,
			DishID:                   dish.ID,
			Quantity:                 input.Quantity,
			Status:                   enums.OrderStatusWaitingForPayment,
			IsUrgent:                 input.IsUrgent,
			TotalPrice:               money.NonNegative(money.Round(items.Add(delivery).Sub(discount))),
			DeliveryPrice:            delivery,
			DiscountAmount:           discount,
			TipsAmount:               tips,
			CommissionRateSnapshot:   producer.TotalCommissionRate(),
			RefundedTotalAmount:      decimal.Zero,
			RefundedTipsAmount:       decimal.Zero,
			RefundedCommissionAmount: decimal.Zero,
			PenaltyAmount:            decimal.Zero,
			RefundAmount:             decimal.Zero,
			PayoutStatus:             enums.PayoutNotAccrued,
			EstimatedCookingMinutes:  CookingMinutes(dish.EstimatedCookingMinutes, input.Quantity),
		}
		if input.Gift != nil {
			name := input.Gift.RecipientName
			phone := input.Gift.RecipientPhone
			order.IsGift = true
			order.RecipientName = &name
			order.RecipientPhone = &phone
		}
		finance.CalculateSnapshot(order).Apply(order)
		if err := repo.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// InitPayment opens a provider checkout for an unpaid order.
func (s *service) InitPayment(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Payment, error) {
	var payment *models.Payment
	_, err := s.mutate(ctx, "init_payment", orderID, func(ctx context.Context, c *txn) error {
		if err := authorize(actor, c.order, ownerBuyer); err != nil {
			return err
		}
		if c.order.Status != enums.OrderStatusWaitingForPayment {
			return invalidTransition(c.order, "start payment for")
		}
		var err error
		payment, err = s.payments.Initiate(ctx, c.tx, c.order, s.policy.returnURL(c.order))
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// HandlePaymentResult applies a provider callback. A success pays the order;
// a failure only marks the payment. A capture arriving for an order that was
// cancelled meanwhile, or a second attempt captured after the order was
// already paid, is refunded at once.
func (s *service) HandlePaymentResult(ctx context.Context, cb payments.Callback) (*models.Order, error) {
	if err := validate.Struct(cb); err != nil {
		return nil, err
	}
	found, err := s.payments.FindByProviderPaymentID(ctx, nil, cb.ProviderPaymentID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, "payment_result", found.OrderID, func(ctx context.Context, c *txn) error {
		payment, err := s.payments.LockByProviderPaymentID(ctx, c.tx, cb.ProviderPaymentID)
		if err != nil {
			return err
		}
		if err := s.payments.RecordResult(ctx, c.tx, payment, cb); err != nil {
			return err
		}
		if !cb.Succeeded {
			c.notify(c.order.BuyerID, enums.NotificationCategoryOrder, "Payment failed",
				fmt.Sprintf("The payment for order %s did not go through.", c.order.ID))
			return nil
		}

		switch c.order.Status {
		case enums.OrderStatusWaitingForPayment:
			c.order.CurrentPaymentID = &payment.ID
			return s.markPaid(ctx, c, System())
		case enums.OrderStatusCancelled:
			c.order.CurrentPaymentID = &payment.ID
			if _, err := s.payments.Refund(ctx, c.tx, c.order, payment.Amount); err != nil {
				return err
			}
			c.notify(c.order.BuyerID, enums.NotificationCategoryOrder, "Payment refunded",
				fmt.Sprintf("Order %s was already cancelled; your payment of %s was refunded.", c.order.ID, money.Format(payment.Amount)))
			return nil
		default:
			if c.order.CurrentPaymentID != nil && *c.order.CurrentPaymentID == payment.ID {
				s.logg.Warn(s.logg.WithField(ctx, "status", string(c.order.Status)), "payment capture replayed for a paid order")
				return nil
			}
			refunded, err := s.payments.RefundStray(ctx, c.tx, payment)
			if err != nil {
				return err
			}
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"status":     string(c.order.Status),
				"payment_id": payment.ID.String(),
				"refunded":   money.Format(refunded),
			}), "second capture on a paid order refunded")
			c.notify(c.order.BuyerID, enums.NotificationCategoryOrder, "Duplicate payment refunded",
				fmt.Sprintf("Order %s was already paid; the extra payment of %s was refunded.", c.order.ID, money.Format(refunded)))
			return nil
		}
	})
}

// Pay marks an order as paid without a provider callback, e.g. after manual
// reconciliation.
func (s *service) Pay(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	return s.mutate(ctx, "pay", orderID, func(ctx context.Context, c *txn) error {
		if err := authorize(actor, c.order, anySystem, anyAdmin); err != nil {
			return err
		}
		return s.markPaid(ctx, c, actor)
	})
}

// markPaid moves a paid order to the seller, or parks a gift until the
// recipient confirms delivery details.
func (s *service) markPaid(ctx context.Context, c *txn, actor Actor) error {
	if c.order.Status != enums.OrderStatusWaitingForPayment {
		return invalidTransition(c.order, "pay")
	}
	if !c.order.IsGift {
		s.openAcceptance(c)
		return c.notifySeller(ctx, "New order",
			fmt.Sprintf("Order %s is paid. Accept it before %s.", c.order.ID, c.order.AcceptanceDeadline.Format("15:04 MST")))
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	expires := c.now.Add(s.policy.GiftTokenTTL)
	c.order.Status = enums.OrderStatusWaitingForRecipient
	c.order.RecipientToken = &token
	c.order.RecipientTokenExpiresAt = &expires
	c.order.AcceptanceDeadline = nil

	if err := s.emit(ctx, c, enums.EventGiftCreated, actorRef(actor), payloads.GiftCreatedEvent{
		OrderID:        c.order.ID,
		BuyerID:        c.order.BuyerID,
		ProducerID:     c.order.ProducerID,
		RecipientName:  deref(c.order.RecipientName),
		RecipientPhone: deref(c.order.RecipientPhone),
		Token:          token,
		ExpiresAt:      expires,
	}); err != nil {
		return err
	}
	c.notify(c.order.BuyerID, enums.NotificationCategoryGift, "Gift paid",
		"We sent the gift link to the recipient. The seller starts once they confirm address and time.")
	return nil
}

func (s *service) openAcceptance(c *txn) {
	deadline := c.now.Add(s.policy.AcceptanceWindow(c.order.IsUrgent))
	c.order.Status = enums.OrderStatusWaitingForAcceptance
	c.order.AcceptanceDeadline = &deadline
}

func amountOrZero(raw, field string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	amount, err := money.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount").
			WithDetails(map[string]string{field: err.Error()})
	}
	return amount, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
