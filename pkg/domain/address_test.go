package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rollcall/pkg/domain-errors"
)

// Published EIP-55 vectors.
var checksummed = []string{
	"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
	"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
}

func TestAddress_ChecksumRoundTrip(t *testing.T) {
	for _, s := range checksummed {
		t.Run(s, func(t *testing.T) {
			a, err := ParseAddress(s)
			require.NoError(t, err)
			assert.Equal(t, s, a.String())
			assert.Equal(t, strings.ToLower(s), a.Hex())
		})
	}
}

func TestParseAddress_Invariants(t *testing.T) {
	valid := checksummed[0]

	t.Run("single case input is accepted", func(t *testing.T) {
		lower, err := ParseAddress(strings.ToLower(valid))
		require.NoError(t, err)
		upper, err := ParseAddress("0x" + strings.ToUpper(valid[2:]))
		require.NoError(t, err)
		assert.Equal(t, lower, upper)
	})

	t.Run("prefix is optional", func(t *testing.T) {
		a, err := ParseAddress(valid[2:])
		require.NoError(t, err)
		assert.Equal(t, valid, a.String())
	})

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"prefix only", "0x"},
		{"too short", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeA"},
		{"too long", valid + "00"},
		{"non hex", "0xZZAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		{"bad checksum", "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		{"sql injection", "'; DROP TABLE students;--"},
	}
	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			_, err := ParseAddress(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidAddress)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestAddress_JSON(t *testing.T) {
	type payload struct {
		Address Address `json:"address"`
	}
	in := payload{Address: MustParseAddress(checksummed[1])}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"`+checksummed[1]+`"}`, string(raw))

	var out payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)

	err = json.Unmarshal([]byte(`{"address":"0x1234"}`), &out)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddressFromBytes(t *testing.T) {
	long := make([]byte, 32)
	long[31] = 0x01
	a := AddressFromBytes(long)
	assert.Equal(t, byte(0x01), a[19])

	short := AddressFromBytes([]byte{0xff})
	assert.Equal(t, byte(0xff), short[19])
	assert.False(t, short.IsZero())
	assert.True(t, Address{}.IsZero())
}

func TestAddress_Short(t *testing.T) {
	a := MustParseAddress(checksummed[0])
	assert.Equal(t, "0x5aAe...eAed", a.Short())
}
