//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisClient_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	c, err := NewRedisClient(RedisConfig{Addr: uri[len("redis://"):], PoolSize: 2})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Get(ctx, TextKey("k"))
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, TextKey("k"), []byte("cached"), time.Minute))
	got, err := c.Get(ctx, TextKey("k"))
	require.NoError(t, err)
	assert.Equal(t, "cached", string(got))

	require.NoError(t, c.Delete(ctx, TextKey("k")))
	_, err = c.Get(ctx, TextKey("k"))
	assert.ErrorIs(t, err, ErrCacheMiss)

	sub := c.client.Subscribe(ctx, "study.outcomes")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Publish(ctx, "study.outcomes", map[string]string{"task_kind": "question"}))

	select {
	case msg := <-sub.Channel():
		assert.JSONEq(t, `{"task_kind":"question"}`, msg.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}
