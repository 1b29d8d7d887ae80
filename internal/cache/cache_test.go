package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemory(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "lobbies:1", []byte("a"), now.Add(30*time.Second)))

	e, ok, err := c.Get(ctx, "lobbies:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), e.Value)
	assert.Equal(t, now.Add(30*time.Second), e.ExpiresAt)

	now = now.Add(30 * time.Second)
	_, ok, err = c.Get(ctx, "lobbies:1")
	require.NoError(t, err)
	assert.False(t, ok, "entry must be gone exactly at its expiry")
}

func TestMemoryInvalidate(t *testing.T) {
	c := NewMemory(nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Now().Add(time.Hour)))
	require.NoError(t, c.Invalidate(ctx, "k", "missing"))

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySetCopiesValue(t *testing.T) {
	c := NewMemory(nil)
	ctx := context.Background()
	buf := []byte("abc")

	require.NoError(t, c.Set(ctx, "k", buf, time.Now().Add(time.Hour)))
	buf[0] = 'z'

	e, _, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), e.Value)
}

func TestMemoryStaleFillIsDropped(t *testing.T) {
	c := NewMemory(nil)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	gen, err := c.Generation(ctx, "lobbies:1")
	require.NoError(t, err)

	// a writer commits and invalidates while the reader is still loading
	require.NoError(t, c.Invalidate(ctx, "lobbies:1"))

	stored, err := c.SetIfGeneration(ctx, "lobbies:1", gen, []byte("old"), exp)
	require.NoError(t, err)
	assert.False(t, stored)
	_, ok, _ := c.Get(ctx, "lobbies:1")
	assert.False(t, ok)

	gen, err = c.Generation(ctx, "lobbies:1")
	require.NoError(t, err)
	stored, err = c.SetIfGeneration(ctx, "lobbies:1", gen, []byte("new"), exp)
	require.NoError(t, err)
	assert.True(t, stored)
	e, ok, _ := c.Get(ctx, "lobbies:1")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), e.Value)
}
