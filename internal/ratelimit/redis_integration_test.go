//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
	now   time.Time
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.now = time.Now()
	s.store = NewRedisStore(s.redis.Client)
	s.store.now = func() time.Time { return s.now }
}

func (s *RedisStoreSuite) TestLimitIsShared() {
	ctx := context.Background()
	other := NewRedisStore(s.redis.Client)
	other.now = s.store.now

	for i := range 3 {
		store := s.store
		if i%2 == 1 {
			store = other
		}
		result, err := store.Allow(ctx, "shared", 3, time.Minute)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(2-i, result.Remaining)
	}

	result, err := other.Allow(ctx, "shared", 3, time.Minute)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.InDelta(time.Minute.Seconds(), result.RetryAfter.Seconds(), 1)
}

func (s *RedisStoreSuite) TestExpiredRequestsLeaveTheWindow() {
	ctx := context.Background()
	_, err := s.store.Allow(ctx, "expiry", 1, time.Minute)
	s.Require().NoError(err)

	s.now = s.now.Add(time.Minute + time.Second)
	result, err := s.store.Allow(ctx, "expiry", 1, time.Minute)
	s.Require().NoError(err)
	s.True(result.Allowed)
}
