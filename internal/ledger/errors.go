package ledger

import (
	"errors"
	"fmt"

	"rollcall/internal/registry/models"
	id "rollcall/pkg/domain"
)

// ErrorCategory is the normalized ledger failure taxonomy.
type ErrorCategory string

const (
	// CategoryInvalidAddress is a local shape failure; it never reaches the ledger.
	CategoryInvalidAddress ErrorCategory = "invalid_address"

	// CategoryDuplicateStudent, CategoryNotFound and CategoryNotRegistered are
	// semantic rejections reported by the ledger.
	CategoryDuplicateStudent ErrorCategory = "duplicate_student"
	CategoryNotFound         ErrorCategory = "not_found"
	CategoryNotRegistered    ErrorCategory = "not_registered"

	// CategoryRejected is any other ledger-side revert.
	CategoryRejected ErrorCategory = "ledger_rejected"

	// CategoryUnavailable means no connection to the ledger or identity provider.
	CategoryUnavailable ErrorCategory = "provider_unavailable"
)

// Category sentinels for errors.Is.
var (
	ErrInvalidAddress      = id.ErrInvalidAddress
	ErrDuplicateStudent    = errors.New("duplicate student")
	ErrNotFound            = errors.New("student not found")
	ErrNotRegistered       = errors.New("student not registered")
	ErrLedgerRejected      = errors.New("ledger rejected transaction")
	ErrProviderUnavailable = errors.New("provider unavailable")
)

var categorySentinels = map[ErrorCategory]error{
	CategoryInvalidAddress:   ErrInvalidAddress,
	CategoryDuplicateStudent: ErrDuplicateStudent,
	CategoryNotFound:         ErrNotFound,
	CategoryNotRegistered:    ErrNotRegistered,
	CategoryRejected:         ErrLedgerRejected,
	CategoryUnavailable:      ErrProviderUnavailable,
}

// Error wraps a ledger failure with its category and the ledger's reason
// text, preserved verbatim for diagnostics.
type Error struct {
	Category   ErrorCategory
	Method     models.Method
	Reason     string
	Underlying error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("ledger %s [%s]", e.Method, e.Category)
	if e.Method == "" {
		msg = fmt.Sprintf("ledger [%s]", e.Category)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is matches the category sentinel, so errors.Is(err, ErrNotRegistered)
// works on any classified ledger error.
func (e *Error) Is(target error) bool {
	return categorySentinels[e.Category] == target
}

// NewError creates a classified ledger error.
func NewError(category ErrorCategory, method models.Method, reason string, underlying error) *Error {
	return &Error{Category: category, Method: method, Reason: reason, Underlying: underlying}
}

// Rejected classifies a revert reason into a semantic category.
func Rejected(method models.Method, reason string) *Error {
	return NewError(Classify(reason), method, reason, nil)
}

// Unavailable reports a transport or connectivity failure.
func Unavailable(method models.Method, err error) *Error {
	return NewError(CategoryUnavailable, method, "", err)
}

// Classify maps ledger revert text onto the taxonomy.
func Classify(reason string) ErrorCategory {
	switch reason {
	case models.ReasonDuplicateStudent:
		return CategoryDuplicateStudent
	case models.ReasonNotFound:
		return CategoryNotFound
	case models.ReasonNotRegistered:
		return CategoryNotRegistered
	default:
		return CategoryRejected
	}
}

// CategoryOf extracts the category of err. Address parse failures are
// CategoryInvalidAddress; other unclassified errors are CategoryRejected.
func CategoryOf(err error) ErrorCategory {
	var le *Error
	if errors.As(err, &le) {
		return le.Category
	}
	if errors.Is(err, id.ErrInvalidAddress) {
		return CategoryInvalidAddress
	}
	return CategoryRejected
}

// ReasonOf returns the ledger reason carried by err, if any.
func ReasonOf(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.Reason
	}
	return ""
}

// IsUnavailable reports whether err is a connectivity failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
