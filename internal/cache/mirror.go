package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// Mirror receives every snapshot the cache installs. Mirror failures are
// logged by the cache and never affect in-memory state.
type Mirror interface {
	Store(ctx context.Context, snap Snapshot) error
}

// NopMirror discards snapshots.
type NopMirror struct{}

func (NopMirror) Store(context.Context, Snapshot) error { return nil }

// RedisMirror publishes the roster snapshot of one registry to Redis so
// other processes can read it without querying the ledger.
//
// Layout under prefix rollcall:<registry>:
//
//	snapshot   JSON Snapshot
//	attendance hash of lowercase address -> count
type RedisMirror struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisMirror creates a mirror for the registry at address. A zero ttl
// keeps keys until overwritten.
func NewRedisMirror(client redis.Cmdable, registry id.Address, ttl time.Duration) *RedisMirror {
	return &RedisMirror{
		client: client,
		prefix: "rollcall:" + registry.Hex() + ":",
		ttl:    ttl,
	}
}

func (m *RedisMirror) snapshotKey() string   { return m.prefix + "snapshot" }
func (m *RedisMirror) attendanceKey() string { return m.prefix + "attendance" }

// Store replaces both keys in one MULTI/EXEC.
func (m *RedisMirror) Store(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	counts := make(map[string]any, len(snap.Students))
	for _, s := range snap.Students {
		counts[s.Address.Hex()] = s.AttendanceCount
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, m.snapshotKey(), payload, m.ttl)
		pipe.Del(ctx, m.attendanceKey())
		if len(counts) > 0 {
			pipe.HSet(ctx, m.attendanceKey(), counts)
			if m.ttl > 0 {
				pipe.Expire(ctx, m.attendanceKey(), m.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mirror snapshot: %w", err)
	}
	return nil
}

// Load reads the last stored snapshot.
func (m *RedisMirror) Load(ctx context.Context) (Snapshot, error) {
	payload, err := m.client.Get(ctx, m.snapshotKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Attendance reads one student's mirrored count.
func (m *RedisMirror) Attendance(ctx context.Context, address id.Address) (uint64, error) {
	n, err := m.client.HGet(ctx, m.attendanceKey(), address.Hex()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, sentinel.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load attendance: %w", err)
	}
	return n, nil
}
