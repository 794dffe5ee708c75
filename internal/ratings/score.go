package ratings

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/homecook-backend/pkg/db/models"
)

var (
	minRating = decimal.NewFromInt(1)
	maxRating = decimal.NewFromInt(5)
	one       = decimal.NewFromInt(1)
	day       = 24 * time.Hour
)

// WindowStats are order counts for a producer over the rolling window.
type WindowStats struct {
	Orders        int64
	SLAViolations int64
	Disputes      int64
	DisputesLost  int64
}

// ReviewScore is the weighted average of the three criteria, capped when the
// buyer accepted a refund for the order.
func (c Config) ReviewScore(r models.Review) decimal.Decimal {
	total := c.TasteWeight.Add(c.AppearanceWeight).Add(c.ServiceWeight)
	sum := c.TasteWeight.Mul(decimal.NewFromInt(int64(r.Taste))).
		Add(c.AppearanceWeight.Mul(decimal.NewFromInt(int64(r.Appearance)))).
		Add(c.ServiceWeight.Mul(decimal.NewFromInt(int64(r.Service))))
	score := sum.Div(total)
	if r.RefundAccepted && score.GreaterThan(c.RefundedReviewCap) {
		return c.RefundedReviewCap
	}
	return score
}

// DishScore uses only taste and appearance.
func (c Config) DishScore(r models.Review) decimal.Decimal {
	total := c.DishTasteWeight.Add(c.DishAppearanceWeight)
	sum := c.DishTasteWeight.Mul(decimal.NewFromInt(int64(r.Taste))).
		Add(c.DishAppearanceWeight.Mul(decimal.NewFromInt(int64(r.Appearance))))
	score := sum.Div(total)
	if r.RefundAccepted && score.GreaterThan(c.RefundedReviewCap) {
		return c.RefundedReviewCap
	}
	return score
}

// AgeWeight decays older reviews: 1.0 up to 30 days, 0.7 up to 90, 0.4 after.
func AgeWeight(createdAt, now time.Time) decimal.Decimal {
	age := now.Sub(createdAt)
	switch {
	case age <= 30*day:
		return decimal.RequireFromString("1.0")
	case age <= 90*day:
		return decimal.RequireFromString("0.7")
	default:
		return decimal.RequireFromString("0.4")
	}
}

// WeightedAverage averages score(r) over reviews with age weights.
func WeightedAverage(reviews []models.Review, now time.Time, score func(models.Review) decimal.Decimal) decimal.Decimal {
	weightSum := decimal.Zero
	sum := decimal.Zero
	for _, r := range reviews {
		w := AgeWeight(r.CreatedAt, now)
		weightSum = weightSum.Add(w)
		sum = sum.Add(score(r).Mul(w))
	}
	if weightSum.IsZero() {
		return decimal.Zero
	}
	return sum.Div(weightSum)
}

// BayesianSmooth pulls small samples toward the prior mean.
func (c Config) BayesianSmooth(raw decimal.Decimal, count int) decimal.Decimal {
	m := decimal.NewFromInt(int64(c.PriorCount))
	n := decimal.NewFromInt(int64(count))
	denom := m.Add(n)
	if denom.IsZero() {
		return c.PriorMean
	}
	return c.PriorMean.Mul(m).Add(raw.Mul(n)).Div(denom)
}

func rate(part, total int64) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Div(decimal.NewFromInt(total))
}

func clampedMin(v, threshold decimal.Decimal) decimal.Decimal {
	if v.GreaterThan(threshold) {
		return threshold
	}
	return v
}

// SLAScore is 1 - alpha * min(violation_rate, threshold).
func (c Config) SLAScore(stats WindowStats) decimal.Decimal {
	violations := rate(stats.SLAViolations, stats.Orders)
	return one.Sub(c.SLAAlpha.Mul(clampedMin(violations, c.SLAThreshold)))
}

// DisputeScore is 1 - gamma * min(dispute_rate, t) - delta * min(lost_rate, t).
func (c Config) DisputeScore(stats WindowStats) decimal.Decimal {
	disputes := rate(stats.Disputes, stats.Orders)
	lost := rate(stats.DisputesLost, stats.Orders)
	return one.
		Sub(c.DisputeGamma.Mul(clampedMin(disputes, c.DisputeThreshold))).
		Sub(c.DisputeDelta.Mul(clampedMin(lost, c.DisputeThreshold)))
}

// ProducerScore blends reviews with SLA and dispute history, subtracts
// penalty points and clamps to [1, 5].
func (c Config) ProducerScore(reviews []models.Review, stats WindowStats, penaltyPoints int, now time.Time) decimal.Decimal {
	raw := WeightedAverage(reviews, now, c.ReviewScore)
	smoothed := c.BayesianSmooth(raw, len(reviews))
	blend := c.ReviewWeight.
		Add(c.SLAWeight.Mul(c.SLAScore(stats))).
		Add(c.DisputeWeight.Mul(c.DisputeScore(stats)))
	score := smoothed.Mul(blend).Sub(c.PenaltyPerPoint.Mul(decimal.NewFromInt(int64(penaltyPoints))))
	return clamp(score).Round(2)
}

// DishRating is the age-weighted dish score, zero for unreviewed dishes.
func (c Config) DishRating(reviews []models.Review, now time.Time) decimal.Decimal {
	if len(reviews) == 0 {
		return decimal.Zero
	}
	return WeightedAverage(reviews, now, c.DishScore).Round(2)
}

// SortScore ranks a dish for search. Unreviewed dishes fall back to the
// producer rating for their own share.
func (c Config) SortScore(dishRating, producerRating decimal.Decimal) decimal.Decimal {
	if dishRating.IsZero() {
		dishRating = producerRating
	}
	return c.SortDishWeight.Mul(dishRating).
		Add(one.Sub(c.SortDishWeight).Mul(producerRating)).
		Round(4)
}

func clamp(score decimal.Decimal) decimal.Decimal {
	if score.LessThan(minRating) {
		return minRating
	}
	if score.GreaterThan(maxRating) {
		return maxRating
	}
	return score
}
