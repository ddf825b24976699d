// Package outcome publishes terminal transaction outcomes for downstream
// consumers: a Kafka topic in production, a bounded in-memory log otherwise.
package outcome

import (
	"context"
	"time"

	"rollcall/internal/gateway"
	"rollcall/internal/registry/models"
)

// Event is the published form of a gateway outcome.
type Event struct {
	ID           string          `json:"id"`
	Tx           string          `json:"tx"`
	Method       models.Method   `json:"method"`
	Target       string          `json:"target"`
	From         string          `json:"from"`
	Status       string          `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	Error        string          `json:"error,omitempty"`
	Student      *models.Student `json:"student,omitempty"`
	StudentCount *uint64         `json:"student_count,omitempty"`
	Sequence     uint64          `json:"sequence,omitempty"`
	SubmittedAt  time.Time       `json:"submitted_at"`
	CompletedAt  time.Time       `json:"completed_at"`
}

// FromOutcome converts a gateway outcome. Confirmed outcomes carry the
// student's post-state and the registry size.
func FromOutcome(o gateway.Outcome) Event {
	e := Event{
		ID:          o.ID.String(),
		Tx:          o.Hash.String(),
		Method:      o.Command.Method(),
		Target:      o.Command.Target().String(),
		From:        o.From.String(),
		Status:      o.State.String(),
		Reason:      o.Reason,
		SubmittedAt: o.SubmittedAt,
		CompletedAt: o.CompletedAt,
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	if o.Receipt != nil {
		e.Sequence = o.Receipt.Sequence
		if o.Confirmed() {
			student := o.Receipt.Student
			count := o.Receipt.StudentCount
			e.Student = &student
			e.StudentCount = &count
		}
	}
	return e
}

// Publisher is a gateway subscriber that forwards outcomes.
type Publisher interface {
	gateway.Subscriber
	Close(ctx context.Context) error
}
