package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/promptplane/internal/cache"
)

func TestRedis(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*cache.Redis, *miniredis.Miniredis) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		c := cache.NewRedisFromClient(client)
		t.Cleanup(func() { c.Close() })
		return c, mr
	}

	t.Run("Should report misses without error", func(t *testing.T) {
		c, _ := setup(t)
		_, ok, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should expire entries after the TTL", func(t *testing.T) {
		c, mr := setup(t)
		require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
		v, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v", v)

		mr.FastForward(time.Minute + time.Second)
		_, ok, err = c.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should delete several keys at once", func(t *testing.T) {
		c, mr := setup(t)
		require.NoError(t, c.Set(ctx, "a", "1", time.Minute))
		require.NoError(t, c.Set(ctx, "b", "2", time.Minute))
		require.NoError(t, c.Delete(ctx, "a", "b", "never-set"))
		assert.False(t, mr.Exists("a"))
		assert.False(t, mr.Exists("b"))
		assert.NoError(t, c.Delete(ctx))
	})

	t.Run("Should connect through a URL", func(t *testing.T) {
		mr := miniredis.RunT(t)
		c, err := cache.NewRedis(ctx, "redis://"+mr.Addr())
		require.NoError(t, err)
		defer c.Close()
		require.NoError(t, c.Set(ctx, "k", "v", 0))
		assert.True(t, mr.Exists("k"))
	})

	t.Run("Should surface server errors", func(t *testing.T) {
		c, mr := setup(t)
		mr.SetError("LOADING")
		_, _, err := c.Get(ctx, "k")
		assert.Error(t, err)
	})
}

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("Should read back what was set", func(t *testing.T) {
		c, err := cache.NewMemory(100)
		require.NoError(t, err)
		defer c.Close()
		require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
		v, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v", v)
	})

	t.Run("Should expire entries after the TTL", func(t *testing.T) {
		c, err := cache.NewMemory(100)
		require.NoError(t, err)
		defer c.Close()
		require.NoError(t, c.Set(ctx, "k", "v", 20*time.Millisecond))
		time.Sleep(60 * time.Millisecond)
		_, ok, _ := c.Get(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("Should delete keys", func(t *testing.T) {
		c, err := cache.NewMemory(100)
		require.NoError(t, err)
		defer c.Close()
		require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
		require.NoError(t, c.Delete(ctx, "k"))
		_, ok, _ := c.Get(ctx, "k")
		assert.False(t, ok)
	})
}
