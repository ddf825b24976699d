package ratelimit

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps sliding windows in process, so limits are per instance.
// Idle windows expire one window after their last request.
type MemoryStore struct {
	mu      sync.Mutex
	windows *gocache.Cache
	now     func() time.Time
}

type slidingWindow struct {
	timestamps []time.Time
}

// NewMemoryStore purges expired windows every cleanup interval.
func NewMemoryStore(cleanup time.Duration) *MemoryStore {
	return &MemoryStore{windows: gocache.New(gocache.NoExpiration, cleanup), now: time.Now}
}

// Allow records a request for key if fewer than limit were seen within window.
func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sw := &slidingWindow{}
	if v, ok := s.windows.Get(key); ok {
		sw = v.(*slidingWindow)
	}
	sw.cleanup(now, window)

	if len(sw.timestamps) >= limit {
		resetAt := now.Add(window)
		if len(sw.timestamps) > 0 {
			resetAt = sw.timestamps[0].Add(window)
		}
		return &Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	sw.timestamps = append(sw.timestamps, now)
	s.windows.Set(key, sw, window)
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(window),
	}, nil
}

func (sw *slidingWindow) cleanup(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}
