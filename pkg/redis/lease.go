package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const leaseNamespace = "lease"

const (
	releaseIfOwner = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`
	extendIfOwner = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`
)

// ErrLeaseLost reports that a lease expired or was taken by another owner.
var ErrLeaseLost = errors.New("lease no longer held")

// LeaseKey is the key a named lease is stored under.
func (c *Client) LeaseKey(name string) string {
	return c.Key(leaseNamespace, name)
}

// TryLease claims key for owner when nobody holds it.
func (c *Client) TryLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errNotConnected
	}
	if ttl <= 0 {
		return false, fmt.Errorf("lease ttl must be positive, got %s", ttl)
	}
	return c.store.SetNX(ctx, key, owner, ttl).Result()
}

// ExtendLease pushes the expiry of a held lease out to ttl from now. It
// returns ErrLeaseLost when owner no longer holds key.
func (c *Client) ExtendLease(ctx context.Context, key, owner string, ttl time.Duration) error {
	n, err := c.ownerScript(ctx, extendIfOwner, key, owner, ttl.Milliseconds())
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

// ReleaseLease deletes key only while owner still holds it.
func (c *Client) ReleaseLease(ctx context.Context, key, owner string) (bool, error) {
	n, err := c.ownerScript(ctx, releaseIfOwner, key, owner)
	return n > 0, err
}

// LeaseOwner returns the current holder of key, or "" when it is free.
func (c *Client) LeaseOwner(ctx context.Context, key string) (string, error) {
	if c.store == nil {
		return "", errNotConnected
	}
	owner, err := c.store.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return owner, err
}

func (c *Client) ownerScript(ctx context.Context, script, key, owner string, extra ...any) (int64, error) {
	if c.store == nil {
		return 0, errNotConnected
	}
	args := append([]any{owner}, extra...)
	return c.store.Eval(ctx, script, []string{key}, args...).Int64()
}
