package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(got))
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	now = now.Add(2 * time.Second)
	_, ok, _ := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_IncrWithExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := c.IncrWithExpiry(ctx, "rl", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	now = now.Add(2 * time.Minute)
	n, err := c.IncrWithExpiry(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, GenerationKey("m", "p"), GenerationKey("m", "p"))
	assert.NotEqual(t, GenerationKey("m", "p"), GenerationKey("m2", "p"))

	ts := time.Date(2024, 3, 5, 10, 7, 30, 0, time.UTC)
	assert.Equal(t, "c360:rl:u1:202403051007", RateLimitKey("u1", ts))
}
