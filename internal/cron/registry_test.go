package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	jobA := &stubJob{name: "order-timeouts"}
	jobB := &stubJob{name: "outbox-retention"}
	registry, err := NewRegistry(jobA, nil, jobB)
	require.NoError(t, err)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, jobA, jobs[0])
	assert.Same(t, jobB, jobs[1])

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "internal slice leaked")
}

func TestRegistryRejectsDuplicateAndBlankNames(t *testing.T) {
	_, err := NewRegistry(&stubJob{name: "order-timeouts"}, &stubJob{name: "order-timeouts"})
	assert.Error(t, err)

	_, err = NewRegistry(&stubJob{name: " "})
	assert.Error(t, err)
}

func TestRegistrySelect(t *testing.T) {
	registry, err := NewRegistry(
		&stubJob{name: "order-timeouts"},
		&stubJob{name: "outbox-retention"},
		&stubJob{name: "notification-cleanup"},
	)
	require.NoError(t, err)

	all, err := registry.Select()
	require.NoError(t, err)
	assert.Same(t, registry, all)

	subset, err := registry.Select("notification-cleanup", " order-timeouts ")
	require.NoError(t, err)
	assert.Equal(t, []string{"order-timeouts", "notification-cleanup"}, subset.Names())

	_, err = registry.Select("gift-expiry")
	assert.ErrorContains(t, err, "unknown cron job")
}
