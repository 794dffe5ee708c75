// Package money holds the decimal helpers used for every monetary field.
// Values are built from exact text or integer cents, never from binary floats.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// AmountPlaces is the scale of stored money amounts.
	AmountPlaces int32 = 2
	// RatePlaces is the scale of stored commission rate snapshots.
	RatePlaces int32 = 4
)

var hundred = decimal.NewFromInt(100)

// Round rounds half-up (away from zero) to two places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

// RoundRate rounds a fractional rate to four places.
func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(RatePlaces)
}

// NonNegative floors d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Share returns round(amount * rate, 2). rate is a fraction, e.g. 0.30.
func Share(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate))
}

// PercentToRate converts a percentage (e.g. 2.5) into a fraction (0.025).
func PercentToRate(percent decimal.Decimal) decimal.Decimal {
	return percent.Div(hundred)
}

// FromCents builds an amount from integer minor units.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -AmountPlaces)
}

// Parse reads an exact decimal from text. Empty input and exponents are rejected.
func Parse(raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	if strings.ContainsAny(value, "eE") {
		return decimal.Zero, fmt.Errorf("amount %q must not use exponent notation", raw)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return d, nil
}

// ParseAmount parses a non-negative amount with at most two fractional digits.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := Parse(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount %q must not be negative", raw)
	}
	if d.Exponent() < -AmountPlaces && !d.Equal(Round(d)) {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", raw, AmountPlaces)
	}
	return Round(d), nil
}

// MustParse is for constants and tests.
func MustParse(raw string) decimal.Decimal {
	d, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// Format renders an amount with exactly two places.
func Format(d decimal.Decimal) string {
	return d.StringFixed(AmountPlaces)
}
