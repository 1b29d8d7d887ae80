package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedis(rdb, "arena:"), mr
}

func TestRedisRoundTripAndInvalidate(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).Truncate(time.Millisecond)

	require.NoError(t, c.Set(ctx, "lobbies:1", []byte("a"), exp))
	assert.True(t, mr.Exists("arena:lobbies:1"))

	e, ok, err := c.Get(ctx, "lobbies:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), e.Value)
	assert.True(t, exp.Equal(e.ExpiresAt))

	require.NoError(t, c.Invalidate(ctx, "lobbies:1"))
	_, ok, err = c.Get(ctx, "lobbies:1")
	require.NoError(t, err)
	assert.False(t, ok)

	gen, err := c.Generation(ctx, "lobbies:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
}

func TestRedisStaleFillIsDropped(t *testing.T) {
	c, _ := newTestRedis(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	gen, err := c.Generation(ctx, "lobbies:1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	require.NoError(t, c.Invalidate(ctx, "lobbies:1"))

	stored, err := c.SetIfGeneration(ctx, "lobbies:1", gen, []byte("old"), exp)
	require.NoError(t, err)
	assert.False(t, stored)
	_, ok, err := c.Get(ctx, "lobbies:1")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err = c.SetIfGeneration(ctx, "lobbies:1", gen+1, []byte("new"), exp)
	require.NoError(t, err)
	assert.True(t, stored)
	e, ok, err := c.Get(ctx, "lobbies:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), e.Value)
}

func TestRedisSkipsExpiredWrites(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Now().Add(-time.Second)))
	assert.False(t, mr.Exists("arena:k"))
}
