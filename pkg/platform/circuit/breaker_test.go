package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLedgerBreaker(clock *fakeClock) *Breaker {
	return New("ledger",
		WithFailureThreshold(2),
		WithSuccessThreshold(2),
		WithCooldown(10*time.Second),
		WithClock(clock.now),
	)
}

func TestBreaker_TripsOnConsecutiveFailures(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_760_000_000, 0)}
	b := newLedgerBreaker(clock)
	assert.Equal(t, "ledger", b.Name())
	assert.Equal(t, StateClosed, b.State())

	assert.False(t, b.RecordFailure())
	assert.False(t, b.RecordSuccess(), "success in closed state only resets the run")
	assert.False(t, b.RecordFailure(), "run restarted after the success")
	assert.True(t, b.RecordFailure())

	assert.True(t, b.IsOpen())
	assert.False(t, b.Allow())
	assert.False(t, b.RecordFailure(), "already open")
}

func TestBreaker_ProbesOneAtATimeAfterCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_760_000_000, 0)}
	b := newLedgerBreaker(clock)
	b.RecordFailure()
	b.RecordFailure()

	clock.advance(9 * time.Second)
	require.False(t, b.Allow())

	clock.advance(time.Second)
	require.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
	assert.False(t, b.Allow(), "second caller waits for the probe")

	assert.False(t, b.RecordSuccess())
	assert.True(t, b.Allow(), "next probe after a success")
	assert.True(t, b.RecordSuccess())

	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_760_000_000, 0)}
	b := newLedgerBreaker(clock)
	b.RecordFailure()
	b.RecordFailure()
	clock.advance(10 * time.Second)
	require.True(t, b.Allow())
	b.RecordSuccess()
	require.True(t, b.Allow())

	assert.True(t, b.RecordFailure())
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow(), "cooldown restarts from the probe failure")

	clock.advance(10 * time.Second)
	require.True(t, b.Allow())
	assert.False(t, b.RecordSuccess(), "earlier probe successes do not carry over")
}

func TestBreaker_AbandonedProbeExpires(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_760_000_000, 0)}
	b := newLedgerBreaker(clock)
	b.RecordFailure()
	b.RecordFailure()
	clock.advance(10 * time.Second)
	require.True(t, b.Allow())

	clock.advance(5 * time.Second)
	assert.False(t, b.Allow())
	clock.advance(5 * time.Second)
	assert.True(t, b.Allow())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
}
