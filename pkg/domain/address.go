package domain

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "rollcall/pkg/domain-errors"
)

// AddressLength is the byte length of a ledger account address.
const AddressLength = 20

// ErrInvalidAddress is the cause attached to every address parsing failure.
var ErrInvalidAddress = errors.New("invalid address")

// Address identifies a ledger account: a student, the acting identity, or a
// deployed registry.
//
// Invariant: an Address value is always 20 bytes. Text input is accepted as
// 40 hex digits with an optional 0x prefix, either single-case or carrying a
// valid EIP-55 mixed-case checksum. Two addresses that differ only in text
// case are equal.
type Address [AddressLength]byte

// ParseAddress constructs an Address from external input.
//
// Errors: returns CodeInvalidInput wrapping ErrInvalidAddress when the input is
// not hex of the right length or when a mixed-case input fails its checksum.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	if raw == "" {
		return a, invalidAddress("address cannot be empty")
	}
	if len(raw) != 2*AddressLength {
		return a, invalidAddress("address must be 40 hex characters")
	}
	if _, err := hex.Decode(a[:], []byte(raw)); err != nil {
		return Address{}, invalidAddress("address must be hexadecimal")
	}
	if isMixedCase(raw) && a.String()[2:] != raw {
		return Address{}, invalidAddress("address checksum mismatch")
	}
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests. It panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes takes the last 20 bytes of b, left-padding shorter input.
func AddressFromBytes(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

func invalidAddress(msg string) error {
	return dErrors.Wrap(ErrInvalidAddress, dErrors.CodeInvalidInput, msg)
}

func isMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}

// String returns the EIP-55 checksummed form.
func (a Address) String() string {
	lower := hex.EncodeToString(a[:])
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - ('a' - 'A')
		}
	}
	return "0x" + string(out)
}

// Hex returns the lowercase 0x-prefixed form, used as a storage key.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Short abbreviates the address for log lines, e.g. 0x5aAe...eAed.
func (a Address) Short() string {
	s := a.String()
	return s[:6] + "..." + s[len(s)-4:]
}

// IsZero reports whether the address is all zero bytes.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLength)
	copy(b, a[:])
	return b
}

// MarshalText encodes the checksummed form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses with the same rules as ParseAddress.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
