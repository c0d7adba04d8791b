package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/b2b-engine/budget"
	"github.com/warp/b2b-engine/generic"
	"github.com/warp/b2b-engine/generic/store"
	"github.com/warp/b2b-engine/store/redis"
)

func newTestLocker(t *testing.T) (*redis.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redis.NewLocker(client, "b2b:"), mr
}

func TestLocker_LockUnlock(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "budget:b-1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("b2b:lock:budget:b-1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("b2b:lock:budget:b-1"))
}

func TestLocker_Contention(t *testing.T) {
	// GIVEN: One holder of the lock
	// WHEN: A second caller tries with a short deadline
	// THEN: It gives up with ErrLockNotAcquired; after release it succeeds

	locker, _ := newTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(short, "k", 5*time.Second)
	assert.ErrorIs(t, err, generic.ErrLockNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))

	unlock2, err := locker.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestLocker_RedisDown(t *testing.T) {
	// GIVEN: A locker whose Redis has gone away
	// WHEN: Taking a lock
	// THEN: The failure is ErrLockNotAcquired so callers answer 503

	locker, mr := newTestLocker(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := locker.Lock(ctx, "budget:b-1", 5*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrLockNotAcquired)
	assert.Contains(t, err.Error(), "budget:b-1")
}

func TestLocker_ExpiredLockNotDeletedByOldHolder(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	stale, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists("b2b:lock:k"))

	fresh, err := locker.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists("b2b:lock:k"), "stale unlock must not release the new holder")

	require.NoError(t, fresh(ctx))
	assert.False(t, mr.Exists("b2b:lock:k"))
}

func TestLocker_SerializesBudgetService(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()
	svc := budget.NewService(store.NewMemory[budget.Budget]("budget"), store.NewUsageLog(), nil,
		generic.WithLocker(locker))

	_, err := svc.Create(ctx, budget.Budget{ID: "b-1", Amount: generic.MustParseDecimal("100")})
	require.NoError(t, err)

	done := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := svc.Track(ctx, "b-1", generic.MustParseDecimal("2"), "unit")
			done <- err
		}()
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, <-done)
	}

	b, err := svc.Get(ctx, "b-1")
	require.NoError(t, err)
	assert.True(t, generic.MustParseDecimal("10").Equal(b.UsedAmount))
}
