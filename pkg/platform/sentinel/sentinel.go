// Package sentinel names the storage and ledger conditions that callers
// branch on with errors.Is. Backends wrap them with context; the ledger
// error categories and the HTTP mapping are decided further up.
package sentinel

import "errors"

var (
	// ErrNotFound: no registry, transaction or mirrored snapshot at that key.
	ErrNotFound = errors.New("not found")
	// ErrConflict: the registry address or operation slot is already taken.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable: the ledger or a dependency cannot be reached right now.
	ErrUnavailable = errors.New("unavailable")
	// ErrClosed: the component was shut down.
	ErrClosed = errors.New("closed")
)
