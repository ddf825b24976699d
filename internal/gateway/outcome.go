package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/ledger"
	"rollcall/internal/registry/models"
	id "rollcall/pkg/domain"
)

// State is a position in the per-call lifecycle
// Idle → Submitted → Pending → Confirmed | Rejected → Idle.
type State int

const (
	StateIdle State = iota
	StateSubmitted
	StatePending
	StateConfirmed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateRejected:
		return "rejected"
	default:
		return "idle"
	}
}

// IsTerminal reports whether s is Confirmed or Rejected.
func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateRejected
}

// Outcome is the single terminal result of a submitted command.
type Outcome struct {
	// ID correlates log lines and published events for one submission.
	ID      uuid.UUID
	Hash    ledger.TxHash
	From    id.Address
	Command models.Command
	State   State

	// Receipt is the ledger's record. It is nil only when the outcome could
	// not be learned because the provider became unreachable.
	Receipt *ledger.Receipt

	// Reason is the ledger's rejection text, verbatim.
	Reason string

	// Err is nil for confirmed outcomes and the classified failure otherwise.
	Err error

	SubmittedAt time.Time
	CompletedAt time.Time
}

// Confirmed reports whether the ledger applied the command.
func (o Outcome) Confirmed() bool {
	return o.State == StateConfirmed
}

// Subscriber receives every terminal outcome, including those whose caller
// stopped waiting. Subscribers run before the slot is released.
type Subscriber interface {
	HandleOutcome(ctx context.Context, outcome Outcome)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, outcome Outcome)

func (f SubscriberFunc) HandleOutcome(ctx context.Context, outcome Outcome) {
	f(ctx, outcome)
}
