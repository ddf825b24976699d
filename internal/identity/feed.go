// Package identity carries out-of-band notifications that the wallet
// provider's active account changed.
package identity

import (
	"sync"

	id "rollcall/pkg/domain"
)

// Event reports the new active account. Present is false when no account
// is connected.
type Event struct {
	Address id.Address
	Present bool
}

// None is the "no active account" event.
var None = Event{}

// Changed builds an event for address.
func Changed(address id.Address) Event {
	return Event{Address: address, Present: true}
}

func (e Event) String() string {
	if !e.Present {
		return "none"
	}
	return e.Address.String()
}

// Feed fans identity events out to explicit subscribers.
//
// Each subscription receives every event published after it subscribed, in
// publish order, without drops. Consecutive notifications for the same
// identity are collapsed, so one external switch yields at most one event.
type Feed struct {
	mu     sync.Mutex
	last   Event
	primed bool
	subs   map[*Subscription]struct{}
	closed bool
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[*Subscription]struct{})}
}

// Publish delivers e unless it repeats the previous event. It reports
// whether the event was delivered. Publish never blocks on slow subscribers.
func (f *Feed) Publish(e Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	if f.primed && f.last == e {
		return false
	}
	f.last, f.primed = e, true
	for s := range f.subs {
		s.push(e)
	}
	return true
}

// Current returns the last published event and whether any was published.
func (f *Feed) Current() (Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.primed
}

// Subscribers returns the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Subscribe registers a new subscription.
func (f *Feed) Subscribe() *Subscription {
	s := &Subscription{
		feed:   f,
		out:    make(chan Event),
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(s.out)
		return s
	}
	f.subs[s] = struct{}{}
	f.mu.Unlock()
	go s.pump()
	return s
}

// Close ends every subscription.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	subs := f.subs
	f.subs = nil
	f.mu.Unlock()
	for s := range subs {
		s.stop()
	}
}

func (f *Feed) remove(s *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, s)
}

// Subscription is one consumer's view of a Feed. Events are buffered
// without bound between Publish and the consumer.
type Subscription struct {
	feed *Feed

	mu      sync.Mutex
	pending []Event

	out      chan Event
	wake     chan struct{}
	closed   chan struct{}
	stopOnce sync.Once
}

// Events is closed after Unsubscribe or Feed.Close.
func (s *Subscription) Events() <-chan Event {
	return s.out
}

// Unsubscribe stops delivery. Undelivered events are discarded.
func (s *Subscription) Unsubscribe() {
	s.feed.remove(s)
	s.stop()
}

func (s *Subscription) stop() {
	s.stopOnce.Do(func() {
		close(s.closed)
	})
}

func (s *Subscription) push(e Event) {
	s.mu.Lock()
	s.pending = append(s.pending, e)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.closed:
				return
			}
		}
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.closed:
			return
		}
	}
}
