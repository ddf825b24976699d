package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/platform/config"
)

func TestOpen_EmptyURLDisablesRedis(t *testing.T) {
	client, err := Open(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestOptions(t *testing.T) {
	t.Run("overlays configured limits", func(t *testing.T) {
		opts, err := Options(config.RedisConfig{
			URL:         "redis://cache.internal:6380/2",
			PoolSize:    4,
			DialTimeout: time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "cache.internal:6380", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 4, opts.PoolSize)
		assert.Equal(t, time.Second, opts.DialTimeout)
		assert.Equal(t, clientName, opts.ClientName)
	})

	t.Run("rejects a non-redis scheme", func(t *testing.T) {
		_, err := Options(config.RedisConfig{URL: "http://cache.internal"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis.url")
	})
}
