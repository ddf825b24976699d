package models

import (
	"fmt"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// Method names the ledger call a command maps to.
type Method string

const (
	MethodAddStudent     Method = "addStudent"
	MethodRemoveStudent  Method = "removeStudent"
	MethodMarkAttendance Method = "markAttendance"
)

// Command is one statically-typed mutating registry call. Construct commands
// through the Parse functions at trust boundaries; Validate re-checks shape
// before anything is sent to the ledger.
type Command interface {
	Method() Method
	Target() id.Address
	Validate() error
}

type AddStudentCommand struct {
	Address id.Address
	Name    string
}

type RemoveStudentCommand struct {
	Address id.Address
}

type MarkAttendanceCommand struct {
	Address id.Address
}

func (c AddStudentCommand) Method() Method     { return MethodAddStudent }
func (c AddStudentCommand) Target() id.Address { return c.Address }

func (c AddStudentCommand) Validate() error {
	if err := validateTarget(c.Address); err != nil {
		return err
	}
	_, err := NormalizeName(c.Name)
	return err
}

func (c RemoveStudentCommand) Method() Method     { return MethodRemoveStudent }
func (c RemoveStudentCommand) Target() id.Address { return c.Address }
func (c RemoveStudentCommand) Validate() error    { return validateTarget(c.Address) }

func (c MarkAttendanceCommand) Method() Method     { return MethodMarkAttendance }
func (c MarkAttendanceCommand) Target() id.Address { return c.Address }
func (c MarkAttendanceCommand) Validate() error    { return validateTarget(c.Address) }

func validateTarget(a id.Address) error {
	if a.IsZero() {
		return dErrors.Wrap(id.ErrInvalidAddress, dErrors.CodeInvalidInput, "zero address cannot be a student")
	}
	return nil
}

// ParseAddStudent builds an AddStudentCommand from raw input.
func ParseAddStudent(address, name string) (AddStudentCommand, error) {
	addr, err := id.ParseAddress(address)
	if err != nil {
		return AddStudentCommand{}, err
	}
	normalized, err := NormalizeName(name)
	if err != nil {
		return AddStudentCommand{}, err
	}
	cmd := AddStudentCommand{Address: addr, Name: normalized}
	return cmd, cmd.Validate()
}

// ParseRemoveStudent builds a RemoveStudentCommand from raw input.
func ParseRemoveStudent(address string) (RemoveStudentCommand, error) {
	addr, err := id.ParseAddress(address)
	if err != nil {
		return RemoveStudentCommand{}, err
	}
	cmd := RemoveStudentCommand{Address: addr}
	return cmd, cmd.Validate()
}

// ParseMarkAttendance builds a MarkAttendanceCommand from raw input.
func ParseMarkAttendance(address string) (MarkAttendanceCommand, error) {
	addr, err := id.ParseAddress(address)
	if err != nil {
		return MarkAttendanceCommand{}, err
	}
	cmd := MarkAttendanceCommand{Address: addr}
	return cmd, cmd.Validate()
}

// Describe renders a command for logs.
func Describe(c Command) string {
	return fmt.Sprintf("%s(%s)", c.Method(), c.Target().Short())
}

// OperationKey identifies the operation slot a command occupies: one method
// on one full target address.
func OperationKey(c Command) string {
	return string(c.Method()) + ":" + c.Target().Hex()
}
