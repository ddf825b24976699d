package deploy

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/ledger"
	"rollcall/internal/ledger/memory"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/sentinel"
)

var owner = id.MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, id.Address, []byte) (id.Address, error) {
	return id.Address{}, ledger.Unavailable("", sentinel.ErrUnavailable)
}

func TestDeployer_Run(t *testing.T) {
	ctx := context.Background()
	network := memory.NewNetwork()
	defer network.Close()

	t.Run("prints owner then registry address", func(t *testing.T) {
		var out bytes.Buffer
		addr, err := New(network).Run(ctx, &out, owner.Hex())
		require.NoError(t, err)

		want := "Deploying registry with the account: " + owner.String() + "\n" +
			"Registry deployed to: " + addr.String() + "\n"
		assert.Equal(t, want, out.String())

		_, err = network.Registry(addr)
		assert.NoError(t, err)
	})

	t.Run("each deployment gets a fresh address", func(t *testing.T) {
		d := New(network)
		first, err := d.Deploy(ctx, owner)
		require.NoError(t, err)
		second, err := d.Deploy(ctx, owner)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("address derives from owner and salt", func(t *testing.T) {
		d := New(network)
		d.salt = func() []byte { return []byte("fixed-salt") }
		addr, err := d.Deploy(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, ledger.RegistryAddress(owner, []byte("fixed-salt")), addr)
	})

	t.Run("malformed owner", func(t *testing.T) {
		var out bytes.Buffer
		_, err := New(network).Run(ctx, &out, "0xnope")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		assert.Empty(t, out.String())
	})

	t.Run("publisher failure", func(t *testing.T) {
		var out bytes.Buffer
		_, err := New(failingPublisher{}).Run(ctx, &out, owner.Hex())
		assert.True(t, errors.Is(err, ledger.ErrProviderUnavailable))
		assert.NotContains(t, out.String(), "Registry deployed to")
	})
}
