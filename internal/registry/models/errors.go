package models

import "errors"

// Revert reasons the registry reports for semantic rejections. Ledger
// backends return them verbatim in rejected receipts.
const (
	ReasonDuplicateStudent = "Student already exists"
	ReasonNotFound         = "Student not found"
	ReasonNotRegistered    = "Student not registered"
)

var (
	ErrDuplicateStudent = errors.New("student already exists")
	ErrNotFound         = errors.New("student not found")
	ErrNotRegistered    = errors.New("student not registered")
	ErrInvalidName      = errors.New("invalid student name")
)

var reasons = map[error]string{
	ErrDuplicateStudent: ReasonDuplicateStudent,
	ErrNotFound:         ReasonNotFound,
	ErrNotRegistered:    ReasonNotRegistered,
}

// Reason returns the revert reason text for a registry rejection, or the
// error's own text for anything else.
func Reason(err error) string {
	for sentinel, reason := range reasons {
		if errors.Is(err, sentinel) {
			return reason
		}
	}
	return err.Error()
}
