package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 5 * time.Minute

// Lock keeps two cron-worker replicas from running the same cycle. Refresh
// is called between jobs and fails once the lease has been lost.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

type leaseStore interface {
	TryLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ExtendLease(ctx context.Context, key, owner string, ttl time.Duration) error
	ReleaseLease(ctx context.Context, key, owner string) (bool, error)
}

// RedisLock holds an owner-tagged lease with a TTL. A crashed holder frees
// the lease once it expires.
type RedisLock struct {
	store leaseStore
	key   string
	ttl   time.Duration
	owner string
}

func NewRedisLock(store leaseStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("lease store required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	if l.owner != "" {
		return true, nil
	}
	owner := uuid.NewString()
	ok, err := l.store.TryLease(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

func (l *RedisLock) Refresh(ctx context.Context) error {
	if l.owner == "" {
		return fmt.Errorf("refresh %s: lock not held", l.key)
	}
	if err := l.store.ExtendLease(ctx, l.key, l.owner, l.ttl); err != nil {
		l.owner = ""
		return fmt.Errorf("refresh %s: %w", l.key, err)
	}
	return nil
}

// Release leaves a lease that expired and was taken over untouched.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	owner := l.owner
	l.owner = ""
	if _, err := l.store.ReleaseLease(ctx, l.key, owner); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
