package sla

import (
	"time"

	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

// Phase names the deadline an order is measured against.
type Phase string

const (
	PhaseAcceptance Phase = "acceptance"
	PhaseCooking    Phase = "cooking"
	PhaseDelivery   Phase = "delivery"
	PhaseGift       Phase = "gift_activation"
)

const defaultBatchSize = 100

// Policy carries the grace periods added on top of the soft deadlines.
type Policy struct {
	CookingGrace  time.Duration
	DeliveryGrace time.Duration
	BatchSize     int
}

func DefaultPolicy() Policy {
	return Policy{
		CookingGrace:  10 * time.Minute,
		DeliveryGrace: 15 * time.Minute,
		BatchSize:     defaultBatchSize,
	}
}

func PolicyFromConfig(cfg config.OrdersConfig) Policy {
	p := DefaultPolicy()
	if cfg.CookingGrace > 0 {
		p.CookingGrace = cfg.CookingGrace
	}
	if cfg.DeliveryGrace > 0 {
		p.DeliveryGrace = cfg.DeliveryGrace
	}
	return p
}

// Deadlines are the soft (promised) and hard (enforced) moments per phase.
// A nil field means the phase has not started or does not apply.
type Deadlines struct {
	Acceptance   *time.Time
	CookingSoft  *time.Time
	CookingHard  *time.Time
	DeliverySoft *time.Time
	DeliveryHard *time.Time
	GiftExpiry   *time.Time
}

func (p Policy) Deadlines(order *models.Order) Deadlines {
	var d Deadlines
	if order.AcceptanceDeadline != nil {
		d.Acceptance = at(*order.AcceptanceDeadline)
	}
	if order.AcceptedAt != nil {
		soft := order.AcceptedAt.Add(order.CookingDuration())
		d.CookingSoft = at(soft)
		d.CookingHard = at(soft.Add(p.CookingGrace))
	}
	if order.DeliveryExpectedAt != nil {
		d.DeliverySoft = at(*order.DeliveryExpectedAt)
		d.DeliveryHard = at(order.DeliveryExpectedAt.Add(p.DeliveryGrace))
	}
	if order.RecipientTokenExpiresAt != nil {
		d.GiftExpiry = at(*order.RecipientTokenExpiresAt)
	}
	return d
}

// Breached reports the phase whose hard deadline the order has passed in
// its current status.
func (p Policy) Breached(order *models.Order, now time.Time) (Phase, bool) {
	d := p.Deadlines(order)
	switch order.Status {
	case enums.OrderStatusWaitingForAcceptance:
		return PhaseAcceptance, past(d.Acceptance, now)
	case enums.OrderStatusCooking:
		return PhaseCooking, past(d.CookingHard, now)
	case enums.OrderStatusDelivering:
		return PhaseDelivery, past(d.DeliveryHard, now)
	case enums.OrderStatusWaitingForRecipient:
		return PhaseGift, past(d.GiftExpiry, now)
	}
	return "", false
}

func (p Policy) breachedIn(phase Phase) func(*models.Order, time.Time) bool {
	return func(order *models.Order, now time.Time) bool {
		got, ok := p.Breached(order, now)
		return ok && got == phase
	}
}

func past(deadline *time.Time, now time.Time) bool {
	return deadline != nil && now.After(*deadline)
}

func at(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}
