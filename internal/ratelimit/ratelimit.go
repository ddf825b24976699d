// Package ratelimit bounds how often a client may submit ledger transactions.
// Counting uses a sliding window so bursts at a window boundary cannot double
// the effective limit.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one Allow check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is set when the request was refused.
	RetryAfter time.Duration
}

// Store counts requests per key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
