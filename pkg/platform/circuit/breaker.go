// Package circuit guards calls to a remote dependency with a consecutive
// failure breaker.
package circuit

import (
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker trips open after failureThreshold consecutive failures. Once the
// cooldown passes it goes half-open and admits one probe at a time; a run of
// successThreshold probe successes closes it, and any probe failure reopens it.
//
// A probe that never reports back (the caller gave up, or the error was not a
// connectivity failure) stops blocking after another cooldown.
type Breaker struct {
	mu               sync.Mutex
	name             string
	state            State
	failures         int
	probeSuccesses   int
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	openedAt         time.Time
	probeAt          time.Time
	probing          bool
	now              func() time.Time
}

type Option func(*Breaker)

func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithCooldown sets how long the breaker stays open before probing.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// New returns a closed breaker: 5 failures to open, 3 probe successes to
// close, 30s cooldown unless overridden.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 3,
		cooldown:         30 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen reports whether calls are currently restricted.
func (b *Breaker) IsOpen() bool {
	return b.State() != StateClosed
}

// Allow reports whether a call may go through now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	switch b.state {
	case StateOpen:
		if now.Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.probeSuccesses = 0
	case StateHalfOpen:
		if b.probing && now.Sub(b.probeAt) < b.cooldown {
			return false
		}
	default:
		return true
	}
	b.probing = true
	b.probeAt = now
	return true
}

// RecordFailure counts a connectivity failure and reports whether it opened
// (or reopened) the breaker.
func (b *Breaker) RecordFailure() (opened bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateHalfOpen:
		b.trip()
		return true
	case StateOpen:
		return false
	}
	b.failures++
	if b.failures >= b.failureThreshold {
		b.trip()
		return true
	}
	return false
}

// RecordSuccess counts a success and reports whether it closed the breaker.
func (b *Breaker) RecordSuccess() (closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateHalfOpen:
		b.probing = false
		b.probeSuccesses++
		if b.probeSuccesses < b.successThreshold {
			return false
		}
		b.state = StateClosed
		b.failures = 0
		return true
	case StateClosed:
		b.failures = 0
	}
	return false
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
	b.probeSuccesses = 0
	b.probing = false
}
