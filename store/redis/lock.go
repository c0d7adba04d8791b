// Package redis provides a generic.Locker shared by every process that
// talks to the same Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
	"github.com/warp/b2b-engine/generic"
)

const pollInterval = 50 * time.Millisecond

// unlockScript deletes the key only if it still holds our token, so an
// expired lock re-taken by someone else is left alone.
var unlockScript = backend.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Locker implements generic.Locker with SET NX PX.
type Locker struct {
	client backend.UniversalClient
	prefix string
}

// NewLocker namespaces every lock key under prefix.
func NewLocker(client backend.UniversalClient, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// Connect builds a client for addr and checks it answers.
func Connect(ctx context.Context, addr string) (*backend.Client, error) {
	client := backend.NewClient(&backend.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Lock polls until the key is free or ctx ends. The lock expires after ttl
// even if never released. Redis failures are reported as
// generic.ErrLockNotAcquired wrapping the client error.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (generic.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: redis error on %s: %w", generic.ErrLockNotAcquired, key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", generic.ErrLockNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}
