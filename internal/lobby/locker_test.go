package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "allocate:a")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.TryLock(ctx, "allocate:a")
	assert.False(t, ok)

	unlockB, ok, _ := l.TryLock(ctx, "allocate:b")
	assert.True(t, ok)
	unlockB()

	unlock()
	unlock() // second call is a no-op
	again, ok, _ := l.TryLock(ctx, "allocate:a")
	assert.True(t, ok)
	again()
}

func newTestRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisLocker(rdb, "arena:", ttl), mr
}

func TestRedisLockerContention(t *testing.T) {
	l, mr := newTestRedisLocker(t, time.Minute)
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "allocate:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("arena:lock:allocate:a"))

	// a second instance sharing the same Redis
	other := NewRedisLocker(l.rdb, "arena:", time.Minute)
	_, ok, err = other.TryLock(ctx, "allocate:a")
	require.NoError(t, err)
	assert.False(t, ok)

	unlockB, ok, err := other.TryLock(ctx, "allocate:b")
	require.NoError(t, err)
	assert.True(t, ok)
	unlockB()

	unlock()
	assert.False(t, mr.Exists("arena:lock:allocate:a"))
	again, ok, err := other.TryLock(ctx, "allocate:a")
	require.NoError(t, err)
	assert.True(t, ok)
	again()
}

func TestRedisLockerExpiredHolderCannotReleaseNewLock(t *testing.T) {
	l, mr := newTestRedisLocker(t, time.Second)
	ctx := context.Background()

	stale, ok, err := l.TryLock(ctx, "allocate:a")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	fresh, ok, err := l.TryLock(ctx, "allocate:a")
	require.NoError(t, err)
	require.True(t, ok, "an expired lock is free again")

	stale()
	assert.True(t, mr.Exists("arena:lock:allocate:a"), "the old holder must not drop the new lock")
	_, ok, _ = l.TryLock(ctx, "allocate:a")
	assert.False(t, ok)

	fresh()
	assert.False(t, mr.Exists("arena:lock:allocate:a"))
}

func TestRedisLockerReportsConnectionErrors(t *testing.T) {
	l, mr := newTestRedisLocker(t, time.Second)
	mr.Close()

	_, ok, err := l.TryLock(context.Background(), "allocate:a")
	assert.Error(t, err)
	assert.False(t, ok)
}
