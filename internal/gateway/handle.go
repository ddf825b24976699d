package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"rollcall/internal/ledger"
	"rollcall/internal/registry/models"
)

// Handle tracks one submitted command.
type Handle struct {
	id   uuid.UUID
	cmd  models.Command
	slot slot

	mu      sync.RWMutex
	state   State
	hash    ledger.TxHash
	outcome Outcome
	done    chan struct{}
}

func newHandle(cmd models.Command) *Handle {
	return &Handle{
		id:    uuid.New(),
		cmd:   cmd,
		slot:  slotOf(cmd),
		state: StateSubmitted,
		done:  make(chan struct{}),
	}
}

func (h *Handle) ID() uuid.UUID           { return h.id }
func (h *Handle) Command() models.Command { return h.cmd }

// Hash is zero until the ledger has accepted the transaction.
func (h *Handle) Hash() ledger.TxHash {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.hash
}

func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Done is closed once the outcome is final and subscribers have seen it.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks for the terminal outcome. If ctx ends first the caller is
// released with ctx.Err(); tracking continues and the outcome is still
// delivered to subscribers. Otherwise the returned error is Outcome.Err.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-h.done:
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.outcome, h.outcome.Err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (h *Handle) setPending(hash ledger.TxHash) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hash = hash
	h.state = StatePending
}

func (h *Handle) setOutcome(o Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcome = o
	h.state = o.State
}
