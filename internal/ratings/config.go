package ratings

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/money"
)

// Config holds the scoring policy. Values are copied into the service at
// construction and never mutated afterwards.
type Config struct {
	TasteWeight      decimal.Decimal
	AppearanceWeight decimal.Decimal
	ServiceWeight    decimal.Decimal
	// RefundedReviewCap bounds the score of a review whose refund was accepted.
	RefundedReviewCap decimal.Decimal

	PriorMean  decimal.Decimal
	PriorCount int

	ReviewWeight  decimal.Decimal
	SLAWeight     decimal.Decimal
	DisputeWeight decimal.Decimal

	SLAAlpha         decimal.Decimal
	SLAThreshold     decimal.Decimal
	DisputeGamma     decimal.Decimal
	DisputeDelta     decimal.Decimal
	DisputeThreshold decimal.Decimal

	PenaltyPerPoint decimal.Decimal
	Window          time.Duration

	DishTasteWeight      decimal.Decimal
	DishAppearanceWeight decimal.Decimal
	// SortDishWeight is the dish share of sort_score; the producer gets the rest.
	SortDishWeight decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		TasteWeight:          money.MustParse("0.5"),
		AppearanceWeight:     money.MustParse("0.3"),
		ServiceWeight:        money.MustParse("0.2"),
		RefundedReviewCap:    money.MustParse("3.0"),
		PriorMean:            money.MustParse("4.7"),
		PriorCount:           10,
		ReviewWeight:         money.MustParse("0.7"),
		SLAWeight:            money.MustParse("0.2"),
		DisputeWeight:        money.MustParse("0.1"),
		SLAAlpha:             money.MustParse("1.0"),
		SLAThreshold:         money.MustParse("0.3"),
		DisputeGamma:         money.MustParse("0.5"),
		DisputeDelta:         money.MustParse("1.0"),
		DisputeThreshold:     money.MustParse("0.3"),
		PenaltyPerPoint:      money.MustParse("0.1"),
		Window:               90 * 24 * time.Hour,
		DishTasteWeight:      money.MustParse("0.7"),
		DishAppearanceWeight: money.MustParse("0.3"),
		SortDishWeight:       money.MustParse("0.7"),
	}
}

// ConfigFromEnv overlays the environment-tunable values on the defaults.
func ConfigFromEnv(cfg config.RatingConfig) (Config, error) {
	out := DefaultConfig()
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"taste weight", cfg.TasteWeight, &out.TasteWeight},
		{"appearance weight", cfg.AppearanceWeight, &out.AppearanceWeight},
		{"service weight", cfg.ServiceWeight, &out.ServiceWeight},
		{"prior mean", cfg.PriorMean, &out.PriorMean},
		{"penalty per point", cfg.PenaltyPerPoint, &out.PenaltyPerPoint},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := money.Parse(f.raw)
		if err != nil {
			return Config{}, fmt.Errorf("rating %s: %w", f.name, err)
		}
		*f.dst = v
	}
	out.PriorCount = cfg.PriorCount
	if cfg.WindowDays > 0 {
		out.Window = time.Duration(cfg.WindowDays) * 24 * time.Hour
	}

	weights := out.TasteWeight.Add(out.AppearanceWeight).Add(out.ServiceWeight)
	if !weights.IsPositive() {
		return Config{}, fmt.Errorf("rating weights must sum to a positive value")
	}
	return out, nil
}
