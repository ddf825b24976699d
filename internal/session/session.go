// Package session tracks which account the user is acting as and that
// account's attendance figure.
package session

import (
	"context"
	"slices"
	"sync"

	"rollcall/internal/gateway"
	"rollcall/internal/ledger"
	"rollcall/internal/registry/models"
	id "rollcall/pkg/domain"
)

// View is a copy of the session state.
type View struct {
	ActiveAddress *id.Address `json:"active_address"`
	Attendance    uint64      `json:"attendance"`
	// Pending describes operations awaiting a terminal outcome.
	Pending []string `json:"pending,omitempty"`
}

// Session is safe for concurrent use. Every identity change bumps a
// generation so reads started for a previous identity cannot land on the
// current one.
type Session struct {
	mu         sync.RWMutex
	active     id.Address
	present    bool
	attendance uint64
	generation uint64
	// pending maps OperationKey to the descriptor shown in View.
	pending map[string]string
}

func New() *Session {
	return &Session{pending: make(map[string]string)}
}

// SetActive switches to address, resets attendance to zero until it is
// re-read, and returns the new generation.
func (s *Session) SetActive(address id.Address) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active, s.present = address, true
	s.attendance = 0
	s.generation++
	return s.generation
}

// Clear records that no account is active.
func (s *Session) Clear() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active, s.present = id.Address{}, false
	s.attendance = 0
	s.generation++
	return s.generation
}

// SetAttendance stores a figure read for generation gen. It reports false
// and changes nothing if the identity changed since.
func (s *Session) SetAttendance(gen, count uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || !s.present {
		return false
	}
	s.attendance = count
	return true
}

// Active returns the active account, if any.
func (s *Session) Active() (id.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.present
}

func (s *Session) Attendance() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attendance
}

// Generation identifies the current identity epoch.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Begin records cmd as pending.
func (s *Session) Begin(cmd models.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[models.OperationKey(cmd)] = models.Describe(cmd)
}

// End clears cmd's pending entry.
func (s *Session) End(cmd models.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, models.OperationKey(cmd))
}

func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := View{Attendance: s.attendance}
	if s.present {
		addr := s.active
		v.ActiveAddress = &addr
	}
	for _, desc := range s.pending {
		v.Pending = append(v.Pending, desc)
	}
	slices.Sort(v.Pending)
	return v
}

// HandleOutcome updates the active account's attendance from confirmed
// receipts that target it, making the session a gateway subscriber.
func (s *Session) HandleOutcome(_ context.Context, out gateway.Outcome) {
	if out.Command != nil {
		s.End(out.Command)
	}
	if !out.Confirmed() || out.Receipt == nil {
		return
	}
	s.ApplyReceipt(out.Receipt)
}

// ApplyReceipt applies a confirmed receipt targeting the active account.
func (s *Session) ApplyReceipt(r *ledger.Receipt) {
	if r.Status != ledger.StatusConfirmed {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.present || r.Target != s.active {
		return
	}
	switch r.Method {
	case models.MethodMarkAttendance:
		s.attendance = r.Student.AttendanceCount
	case models.MethodRemoveStudent:
		s.attendance = 0
	}
}
