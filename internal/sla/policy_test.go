package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/db/models"
	"github.com/angelmondragon/homecook-backend/pkg/enums"
)

var fixedNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestDeadlines(t *testing.T) {
	policy := DefaultPolicy()
	order := &models.Order{
		EstimatedCookingMinutes: 40,
		AcceptanceDeadline:      ptr(fixedNow.Add(-time.Hour)),
		AcceptedAt:              ptr(fixedNow.Add(-50 * time.Minute)),
		DeliveryExpectedAt:      ptr(fixedNow.Add(20 * time.Minute)),
	}

	d := policy.Deadlines(order)
	require.NotNil(t, d.CookingSoft)
	assert.True(t, d.CookingSoft.Equal(fixedNow.Add(-10*time.Minute)))
	assert.True(t, d.CookingHard.Equal(fixedNow))
	assert.True(t, d.DeliveryHard.Equal(fixedNow.Add(35*time.Minute)))
	assert.Nil(t, d.GiftExpiry)

	assert.Nil(t, policy.Deadlines(&models.Order{}).CookingHard)
}

func TestBreachedFollowsStatus(t *testing.T) {
	policy := DefaultPolicy()
	cases := []struct {
		name   string
		order  models.Order
		phase  Phase
		breach bool
	}{
		{
			name:   "acceptance passed",
			order:  models.Order{Status: enums.OrderStatusWaitingForAcceptance, AcceptanceDeadline: ptr(fixedNow.Add(-time.Second))},
			phase:  PhaseAcceptance,
			breach: true,
		},
		{
			name:  "acceptance pending",
			order: models.Order{Status: enums.OrderStatusWaitingForAcceptance, AcceptanceDeadline: ptr(fixedNow.Add(time.Minute))},
			phase: PhaseAcceptance,
		},
		{
			name:  "cooking within grace",
			order: models.Order{Status: enums.OrderStatusCooking, EstimatedCookingMinutes: 30, AcceptedAt: ptr(fixedNow.Add(-35 * time.Minute))},
			phase: PhaseCooking,
		},
		{
			name:   "cooking past grace",
			order:  models.Order{Status: enums.OrderStatusCooking, EstimatedCookingMinutes: 30, AcceptedAt: ptr(fixedNow.Add(-41 * time.Minute))},
			phase:  PhaseCooking,
			breach: true,
		},
		{
			name:   "delivery past grace",
			order:  models.Order{Status: enums.OrderStatusDelivering, DeliveryExpectedAt: ptr(fixedNow.Add(-16 * time.Minute))},
			phase:  PhaseDelivery,
			breach: true,
		},
		{
			name:   "gift link expired",
			order:  models.Order{Status: enums.OrderStatusWaitingForRecipient, RecipientTokenExpiresAt: ptr(fixedNow.Add(-time.Minute))},
			phase:  PhaseGift,
			breach: true,
		},
		{
			name:  "ready orders have no hard deadline",
			order: models.Order{Status: enums.OrderStatusReadyForDelivery, AcceptedAt: ptr(fixedNow.Add(-10 * time.Hour))},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			phase, breached := policy.Breached(&tc.order, fixedNow)
			assert.Equal(t, tc.phase, phase)
			assert.Equal(t, tc.breach, breached)
		})
	}
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(config.OrdersConfig{CookingGrace: 5 * time.Minute})
	assert.Equal(t, 5*time.Minute, p.CookingGrace)
	assert.Equal(t, 15*time.Minute, p.DeliveryGrace)
	assert.Equal(t, defaultBatchSize, p.BatchSize)
}
