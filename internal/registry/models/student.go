package models

import (
	"strings"
	"unicode/utf8"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// MaxNameLength bounds student names in runes.
const MaxNameLength = 128

// Student is a registered attendee.
//
// Invariants:
//   - Address is the identity key and never changes after registration
//   - Name is fixed at registration
//   - AttendanceCount only grows, one check-in at a time
type Student struct {
	Address         id.Address `json:"address"`
	Name            string     `json:"name"`
	AttendanceCount uint64     `json:"attendance_count"`
}

// StudentDetails is the ledger's per-address detail record. An unregistered
// address reads as the zero value.
type StudentDetails struct {
	Name            string `json:"name"`
	AttendanceCount uint64 `json:"attendance_count"`
}

// Details projects the student onto the ledger detail record.
func (s Student) Details() StudentDetails {
	return StudentDetails{Name: s.Name, AttendanceCount: s.AttendanceCount}
}

// NormalizeName trims surrounding whitespace and validates length.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", dErrors.Wrap(ErrInvalidName, dErrors.CodeValidation, "student name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", dErrors.Wrap(ErrInvalidName, dErrors.CodeValidation, "student name must be at most 128 characters")
	}
	return name, nil
}
