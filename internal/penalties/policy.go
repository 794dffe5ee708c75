package penalties

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/money"
)

// Policy is the immutable penalty configuration.
type Policy struct {
	RejectionRate         decimal.Decimal
	BanThreshold          int
	BanThresholdAfterFine int
	FineCooldown          time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		RejectionRate:         money.MustParse("0.30"),
		BanThreshold:          3,
		BanThresholdAfterFine: 4,
		FineCooldown:          30 * 24 * time.Hour,
	}
}

func PolicyFromConfig(cfg config.PenaltyConfig) (Policy, error) {
	p := DefaultPolicy()
	if cfg.RejectionRate != "" {
		r, err := money.Parse(cfg.RejectionRate)
		if err != nil {
			return Policy{}, fmt.Errorf("penalty rejection rate: %w", err)
		}
		if r.IsNegative() || r.GreaterThan(decimal.NewFromInt(1)) {
			return Policy{}, fmt.Errorf("penalty rejection rate must be within [0, 1]")
		}
		p.RejectionRate = r
	}
	if cfg.BanThreshold > 0 {
		p.BanThreshold = cfg.BanThreshold
	}
	if cfg.BanThresholdAfterFine > 0 {
		p.BanThresholdAfterFine = cfg.BanThresholdAfterFine
	}
	if cfg.FineCooldown > 0 {
		p.FineCooldown = cfg.FineCooldown
	}
	return p, nil
}

// PenaltyAmount is the rejection fine for qty units at unitPrice.
func (p Policy) PenaltyAmount(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	if qty < 1 {
		qty = 1
	}
	return money.Share(unitPrice.Mul(decimal.NewFromInt(int64(qty))), p.RejectionRate)
}

// BanThresholdFor returns the consecutive-rejection limit, raised when the
// producer paid a fine in the current calendar month.
func (p Policy) BanThresholdFor(producer *models.Producer, now time.Time) int {
	if paid := producer.LastPenaltyPaymentDate; paid != nil {
		a, b := paid.UTC(), now.UTC()
		if a.Year() == b.Year() && a.Month() == b.Month() {
			return p.BanThresholdAfterFine
		}
	}
	return p.BanThreshold
}

// NextFineEligibleAt is when the producer may pay the next fine; nil when now.
func (p Policy) NextFineEligibleAt(producer *models.Producer, now time.Time) *time.Time {
	if producer.LastPenaltyPaymentDate == nil {
		return nil
	}
	next := producer.LastPenaltyPaymentDate.Add(p.FineCooldown)
	if !now.Before(next) {
		return nil
	}
	return &next
}
