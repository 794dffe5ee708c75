package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/money"
)

// Policy holds the lifecycle timings and compensation rates.
type Policy struct {
	AcceptanceWindowUrgent time.Duration
	AcceptanceWindowNormal time.Duration
	DeliveryWindow         time.Duration
	LateDeliveryGrace      time.Duration
	GiftTokenTTL           time.Duration
	// BuyerCancelCompensationRate is the share of the item total kept for the
	// producer when the buyer cancels after the finished photo was uploaded.
	BuyerCancelCompensationRate decimal.Decimal
	// PaymentReturnURL is a format string receiving the order id.
	PaymentReturnURL string
}

func DefaultPolicy() Policy {
	return Policy{
		AcceptanceWindowUrgent:      30 * time.Minute,
		AcceptanceWindowNormal:      60 * time.Minute,
		DeliveryWindow:              60 * time.Minute,
		LateDeliveryGrace:           30 * time.Minute,
		GiftTokenTTL:                48 * time.Hour,
		BuyerCancelCompensationRate: money.MustParse("0.10"),
		PaymentReturnURL:            "https://homecook.local/orders/%s/paid",
	}
}

func PolicyFromConfig(cfg config.OrdersConfig) (Policy, error) {
	p := DefaultPolicy()
	if cfg.AcceptanceWindowUrgent > 0 {
		p.AcceptanceWindowUrgent = cfg.AcceptanceWindowUrgent
	}
	if cfg.AcceptanceWindowNormal > 0 {
		p.AcceptanceWindowNormal = cfg.AcceptanceWindowNormal
	}
	if cfg.DeliveryWindow > 0 {
		p.DeliveryWindow = cfg.DeliveryWindow
	}
	if cfg.LateDeliveryGrace > 0 {
		p.LateDeliveryGrace = cfg.LateDeliveryGrace
	}
	if cfg.GiftTokenTTL > 0 {
		p.GiftTokenTTL = cfg.GiftTokenTTL
	}
	if cfg.BuyerCancelCompensation != "" {
		rate, err := money.Parse(cfg.BuyerCancelCompensation)
		if err != nil {
			return Policy{}, fmt.Errorf("buyer cancel compensation: %w", err)
		}
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return Policy{}, fmt.Errorf("buyer cancel compensation must be within [0, 1]")
		}
		p.BuyerCancelCompensationRate = rate
	}
	if cfg.PaymentReturnURLTemplate != "" {
		if !strings.Contains(cfg.PaymentReturnURLTemplate, "%s") {
			return Policy{}, fmt.Errorf("payment return url must contain %%s for the order id")
		}
		p.PaymentReturnURL = cfg.PaymentReturnURLTemplate
	}
	return p, nil
}

func (p Policy) AcceptanceWindow(urgent bool) time.Duration {
	if urgent {
		return p.AcceptanceWindowUrgent
	}
	return p.AcceptanceWindowNormal
}

// LateDeliveryAfter is the moment from which the buyer may cancel for lateness.
// ok is false until the order was accepted.
func (p Policy) LateDeliveryAfter(order *models.Order) (time.Time, bool) {
	if order.AcceptedAt == nil {
		return time.Time{}, false
	}
	return order.AcceptedAt.Add(order.CookingDuration() + p.LateDeliveryGrace), true
}

func (p Policy) returnURL(order *models.Order) string {
	return fmt.Sprintf(p.PaymentReturnURL, order.ID)
}

// CookingMinutes scales a dish's cooking time by quantity: every extra
// portion adds half the base time, rounded up to whole minutes.
func CookingMinutes(base, quantity int) int {
	if base < 0 {
		base = 0
	}
	if quantity <= 1 {
		return base
	}
	extra := base * (quantity - 1)
	return base + (extra+1)/2
}
