//go:build integration

package containers

import (
	"context"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"rollcall/internal/platform/config"
	"rollcall/internal/platform/redis"
)

// RedisContainer is a Redis 7 instance with a client opened the same way the
// server opens one.
type RedisContainer struct {
	Container testcontainers.Container
	Config    config.RedisConfig
	Client    *goredis.Client
}

// NewRedisContainer starts a dedicated instance. Suites should share one
// through Manager.GetRedis instead.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("redis connection string: %v", err)
	}

	cfg := config.Defaults().Redis
	cfg.URL = url
	client, err := redis.Open(ctx, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("open redis: %v", err)
	}
	return &RedisContainer{Container: container, Config: cfg, Client: client}
}

// FlushAll empties every database so suites start clean.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
