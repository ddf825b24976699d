//go:build integration

// Package containers starts throwaway Postgres, Redis and Redpanda instances
// for integration suites. Each kind starts at most once per test binary and
// Ryuk removes it when the process exits.
package containers

import (
	"sync"
	"testing"
)

// shared lazily starts one instance and remembers a failed start.
type shared[T any] struct {
	once sync.Once
	val  *T
}

func (s *shared[T]) get(t *testing.T, kind string, start func(*testing.T) *T) *T {
	t.Helper()
	s.once.Do(func() { s.val = start(t) })
	if s.val == nil {
		t.Fatalf("%s container failed to start earlier in this run", kind)
	}
	return s.val
}

type Manager struct {
	redis    shared[RedisContainer]
	postgres shared[PostgresContainer]
	redpanda shared[RedpandaContainer]
}

var (
	managerOnce sync.Once
	manager     *Manager
)

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	managerOnce.Do(func() { manager = &Manager{} })
	return manager
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return m.redis.get(t, "redis", NewRedisContainer)
}

func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return m.postgres.get(t, "postgres", NewPostgresContainer)
}

func (m *Manager) GetRedpanda(t *testing.T) *RedpandaContainer {
	t.Helper()
	return m.redpanda.get(t, "redpanda", NewRedpandaContainer)
}
