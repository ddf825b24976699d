//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/registry/models"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/testutil/containers"
)

type RedisMirrorSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	mirror *RedisMirror
}

func TestRedisMirrorSuite(t *testing.T) {
	suite.Run(t, new(RedisMirrorSuite))
}

func (s *RedisMirrorSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisMirrorSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.redis.FlushAll(ctx))
	s.mirror = NewRedisMirror(s.redis.Client, owner, time.Minute)
}

func (s *RedisMirrorSuite) TestStoreAndLoad() {
	ctx := context.Background()
	snap := Snapshot{
		Students: []models.Student{
			{Address: alice, Name: "Alice", AttendanceCount: 4},
			{Address: bob, Name: "Bob"},
		},
		Identity: alice,
		SyncedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.mirror.Store(ctx, snap))

	loaded, err := s.mirror.Load(ctx)
	s.Require().NoError(err)
	s.Equal(snap.Students, loaded.Students)
	s.Equal(alice, loaded.Identity)
	s.True(snap.SyncedAt.Equal(loaded.SyncedAt))

	n, err := s.mirror.Attendance(ctx, alice)
	s.Require().NoError(err)
	s.Equal(uint64(4), n)
}

func (s *RedisMirrorSuite) TestStoreReplacesRemovedStudents() {
	ctx := context.Background()
	s.Require().NoError(s.mirror.Store(ctx, Snapshot{Students: []models.Student{{Address: alice, Name: "Alice"}}}))
	s.Require().NoError(s.mirror.Store(ctx, Snapshot{Students: []models.Student{{Address: bob, Name: "Bob"}}}))

	_, err := s.mirror.Attendance(ctx, alice)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisMirrorSuite) TestLoadMissing() {
	_, err := s.mirror.Load(context.Background())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
