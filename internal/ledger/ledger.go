// Package ledger defines the call surface the registry client consumes from
// the authoritative external ledger, the receipts it returns, and the error
// taxonomy for ledger failures. Backends live in subpackages.
package ledger

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"rollcall/internal/registry/models"
	id "rollcall/pkg/domain"
)

//go:generate mockgen -source=ledger.go -destination=mocks/mocks.go -package=mocks Reader,Ledger

// Reader is the read half of the ledger call surface. Reads are unordered
// with respect to each other and to in-flight writes.
type Reader interface {
	// GetAttendance returns the count for address; zero when unregistered.
	GetAttendance(ctx context.Context, address id.Address) (uint64, error)

	// GetStudentCount returns the number of registered students.
	GetStudentCount(ctx context.Context) (uint64, error)

	// StudentAddressAt returns the address at a 0-based index position.
	// Positions past the end are rejected with ReasonIndexOutOfRange.
	StudentAddressAt(ctx context.Context, index uint64) (id.Address, error)

	// StudentDetails returns name and count; zero value when unregistered.
	StudentDetails(ctx context.Context, address id.Address) (models.StudentDetails, error)

	// LastSequence returns the Sequence of the newest transaction applied to
	// this registry, zero before the first. Reads observe every transaction
	// up to it.
	LastSequence(ctx context.Context) (uint64, error)
}

// Ledger is the full call surface: reads plus mutating transactions.
type Ledger interface {
	Reader

	// Send submits cmd on behalf of from. A nil error means the ledger
	// accepted the transaction for ordering; it says nothing about outcome.
	Send(ctx context.Context, from id.Address, cmd models.Command) (TxHash, error)

	// WaitReceipt blocks until the transaction reaches a terminal status or
	// ctx ends. There is no upper bound on how long confirmation may take.
	WaitReceipt(ctx context.Context, hash TxHash) (*Receipt, error)
}

// ReasonIndexOutOfRange is reported for StudentAddressAt past the end.
const ReasonIndexOutOfRange = "index out of range"

// Status is a transaction's ledger-side status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// IsTerminal reports whether no further status change can happen.
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusRejected
}

// Receipt is the ledger's authoritative record of a terminal transaction.
type Receipt struct {
	Hash   TxHash
	From   id.Address
	Method models.Method
	Target id.Address
	Status Status
	// Reason is the revert text for rejected transactions, verbatim.
	Reason string
	// Student is the target's post-state. For removals it is the record
	// that was deleted.
	Student models.Student
	// Registered reports whether Target is registered after the transaction.
	Registered bool
	// StudentCount is the registry size after the transaction.
	StudentCount uint64
	// Sequence is the transaction's position in the ledger's total order.
	Sequence    uint64
	ConfirmedAt time.Time
}

// Err returns nil for confirmed receipts and the classified rejection
// otherwise.
func (r *Receipt) Err() error {
	if r.Status == StatusConfirmed {
		return nil
	}
	return Rejected(r.Method, r.Reason)
}

// TxHash identifies a submitted transaction.
type TxHash [32]byte

// NewTxHash derives a transaction hash from its sender, payload, and a
// backend-assigned nonce.
func NewTxHash(from id.Address, cmd models.Command, nonce uint64) TxHash {
	h := sha3.NewLegacyKeccak256()
	h.Write(from[:])
	h.Write([]byte(cmd.Method()))
	target := cmd.Target()
	h.Write(target[:])
	if add, ok := cmd.(models.AddStudentCommand); ok {
		h.Write([]byte(add.Name))
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h.Write(n[:])

	var out TxHash
	copy(out[:], h.Sum(nil))
	return out
}

// ParseTxHash parses the 0x-prefixed hex form.
func ParseTxHash(s string) (TxHash, error) {
	var h TxHash
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(raw) != 64 {
		return h, fmt.Errorf("tx hash must be 64 hex characters")
	}
	if _, err := hex.Decode(h[:], []byte(raw)); err != nil {
		return TxHash{}, fmt.Errorf("tx hash must be hexadecimal: %w", err)
	}
	return h, nil
}

func (h TxHash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Short abbreviates the hash for log lines.
func (h TxHash) Short() string {
	return h.String()[:10]
}

func (h TxHash) IsZero() bool {
	return h == TxHash{}
}

// RegistryAddress derives the address of a newly published registry from the
// publishing account and a caller-chosen salt.
func RegistryAddress(owner id.Address, salt []byte) id.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write(owner[:])
	h.Write(salt)
	return id.AddressFromBytes(h.Sum(nil))
}
