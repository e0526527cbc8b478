package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Client    = (*MemoryClient)(nil)
	_ Client    = (*RedisClient)(nil)
	_ Publisher = (*RedisClient)(nil)
)

func TestMemoryClient_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryClient(16)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, TextKey("abc"), []byte("extracted text"), time.Minute))
	got, err := c.Get(ctx, TextKey("abc"))
	require.NoError(t, err)
	assert.Equal(t, "extracted text", string(got))

	require.NoError(t, c.Delete(ctx, TextKey("abc")))
	_, err = c.Get(ctx, TextKey("abc"))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_Expiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryClient(16)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "short", []byte("x"), 50*time.Millisecond))

	assert.Eventually(t, func() bool {
		_, err := c.Get(ctx, "short")
		return err == ErrCacheMiss
	}, 3*time.Second, 20*time.Millisecond)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "a:b:c", CacheKey("a", "b", "c"))
	assert.Equal(t, "doc:k1:text", TextKey("k1"))
}
