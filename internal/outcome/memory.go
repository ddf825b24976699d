package outcome

import (
	"context"
	"sync"

	"rollcall/internal/gateway"
)

const defaultCapacity = 1000

// Log keeps the most recent events in a ring buffer. When full, the oldest
// event is dropped to make room.
type Log struct {
	mu       sync.Mutex
	events   []Event
	head     int // next write position
	count    int
	capacity int
	dropped  int64
	metrics  *Metrics
}

// NewLog creates a log holding up to capacity events.
func NewLog(capacity int, m *Metrics) *Log {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Log{
		events:   make([]Event, capacity),
		capacity: capacity,
		metrics:  m,
	}
}

func (l *Log) HandleOutcome(_ context.Context, o gateway.Outcome) {
	l.Append(FromOutcome(o))
}

// Append adds e, dropping the oldest event if necessary.
func (l *Log) Append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == l.capacity {
		l.count--
		l.dropped++
		l.metrics.IncrementDropped()
	}
	l.events[l.head] = e
	l.head = (l.head + 1) % l.capacity
	l.count++
	l.metrics.IncrementPublished(string(e.Method))
}

// Recent returns up to n events, newest first.
func (l *Log) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > l.count {
		n = l.count
	}
	out := make([]Event, n)
	for i := range n {
		pos := (l.head - 1 - i + l.capacity) % l.capacity
		out[i] = l.events[pos]
	}
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Dropped returns how many events were evicted.
func (l *Log) Dropped() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

func (l *Log) Close(context.Context) error { return nil }
