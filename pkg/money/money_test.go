package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundIsHalfUp(t *testing.T) {
	cases := map[string]string{
		"0.125":  "0.13",
		"0.124":  "0.12",
		"2.675":  "2.68",
		"-1.005": "-1.01",
		"10":     "10.00",
	}
	for in, want := range cases {
		got := Round(MustParse(in))
		assert.Equal(t, want, Format(got), "round %s", in)
	}
}

func TestRoundRateKeepsFourPlaces(t *testing.T) {
	assert.Equal(t, "0.1235", RoundRate(MustParse("0.12345")).String())
	assert.Equal(t, "0.05", RoundRate(MustParse("0.05")).String())
}

func TestShare(t *testing.T) {
	assert.True(t, Share(MustParse("200"), MustParse("0.05")).Equal(MustParse("10.00")))
	assert.True(t, Share(MustParse("33.33"), MustParse("0.30")).Equal(MustParse("10.00")))
	assert.True(t, Share(MustParse("0.05"), MustParse("0.10")).Equal(MustParse("0.01")))
}

func TestNonNegativeAndMin(t *testing.T) {
	assert.True(t, NonNegative(MustParse("-3")).IsZero())
	assert.True(t, NonNegative(MustParse("3")).Equal(MustParse("3")))
	assert.True(t, Min(MustParse("1"), MustParse("2")).Equal(MustParse("1")))
	assert.True(t, PercentToRate(MustParse("2.5")).Equal(MustParse("0.025")))
}

func TestFromCents(t *testing.T) {
	assert.Equal(t, "19.99", Format(FromCents(1999)))
	assert.Equal(t, "0.00", Format(FromCents(0)))
}

func TestParse(t *testing.T) {
	d, err := Parse(" 12.50 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("12.5")))

	_, err = Parse("")
	require.Error(t, err)
	_, err = Parse("1e3")
	require.Error(t, err)
	_, err = Parse("abc")
	require.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("100.10")
	require.NoError(t, err)
	assert.Equal(t, "100.10", Format(d))

	d, err = ParseAmount("5.500")
	require.NoError(t, err)
	assert.Equal(t, "5.50", Format(d))

	_, err = ParseAmount("-1")
	require.Error(t, err)
	_, err = ParseAmount("1.234")
	require.Error(t, err)
}
