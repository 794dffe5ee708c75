package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errLost = errors.New("lease no longer held")

type memoryLeaseStore struct {
	owners map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemoryLeaseStore() *memoryLeaseStore {
	return &memoryLeaseStore{owners: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLeaseStore) TryLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, held := m.owners[key]; held {
		return false, nil
	}
	m.owners[key] = owner
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryLeaseStore) ExtendLease(ctx context.Context, key, owner string, ttl time.Duration) error {
	if m.owners[key] != owner {
		return errLost
	}
	m.ttls[key] = ttl
	return nil
}

func (m *memoryLeaseStore) ReleaseLease(ctx context.Context, key, owner string) (bool, error) {
	if m.owners[key] != owner {
		return false, nil
	}
	delete(m.owners, key)
	return true, nil
}

const testLockKey = "hc:lease:cron-worker:test"

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLeaseStore()
	first, err := NewRedisLock(store, testLockKey, 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, testLockKey, time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, defaultLockTTL, store.ttls[testLockKey])

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.owners, testLockKey, "non-owner release must not free the lease")

	require.NoError(t, first.Release(ctx))
	ok, _ = second.Acquire(ctx)
	assert.True(t, ok)
}

func TestRedisLockRefreshDetectsTakeover(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLeaseStore()
	lock, err := NewRedisLock(store, testLockKey, time.Minute)
	require.NoError(t, err)

	assert.Error(t, lock.Refresh(ctx), "refresh before acquire")

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	store.ttls[testLockKey] = time.Second
	require.NoError(t, lock.Refresh(ctx))
	assert.Equal(t, time.Minute, store.ttls[testLockKey])

	// expired and claimed by another replica
	store.owners[testLockKey] = "other-owner"
	assert.ErrorIs(t, lock.Refresh(ctx), errLost)
	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "other-owner", store.owners[testLockKey])
}

func TestRedisLockAcquireError(t *testing.T) {
	store := newMemoryLeaseStore()
	store.err = errors.New("connection refused")
	lock, err := NewRedisLock(store, testLockKey, time.Minute)
	require.NoError(t, err)
	_, err = lock.Acquire(context.Background())
	assert.Error(t, err)

	_, err = NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)
}
