package ledger

import (
	"fmt"

	"rollcall/internal/registry/models"
	id "rollcall/pkg/domain"
)

// ReasonUnauthorized is the revert text for calls the policy refuses.
const ReasonUnauthorized = "caller not authorized"

// Policy is the ledger-side access-control rule. The client never evaluates
// it; it only observes the resulting rejections.
type Policy string

const (
	// PolicyOpen lets any caller run any command.
	PolicyOpen Policy = "open"
	// PolicyOwner restricts add/remove to the registry owner; anyone may mark.
	PolicyOwner Policy = "owner"
	// PolicySelf restricts add/remove to the owner and lets a caller mark
	// only their own attendance.
	PolicySelf Policy = "self"
)

// ParsePolicy validates a configured policy name. Empty means PolicyOpen.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyOpen:
		return PolicyOpen, nil
	case PolicyOwner, PolicySelf:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown ledger policy %q", s)
	}
}

// Permits reports whether from may run cmd on a registry owned by owner.
func (p Policy) Permits(owner, from id.Address, cmd models.Command) bool {
	switch p {
	case PolicyOwner, PolicySelf:
		switch cmd.Method() {
		case models.MethodAddStudent, models.MethodRemoveStudent:
			return from == owner
		case models.MethodMarkAttendance:
			return p == PolicyOwner || from == cmd.Target()
		}
		return false
	default:
		return true
	}
}
