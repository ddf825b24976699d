// Package deploy publishes fresh registries to a ledger.
package deploy

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	id "rollcall/pkg/domain"
)

// Publisher creates an empty registry owned by owner. The address is derived
// from owner and salt.
type Publisher interface {
	Publish(ctx context.Context, owner id.Address, salt []byte) (id.Address, error)
}

// Deployer publishes registries with a fresh random salt each time.
type Deployer struct {
	publisher Publisher
	salt      func() []byte
}

func New(p Publisher) *Deployer {
	return &Deployer{publisher: p, salt: randomSalt}
}

// Deploy publishes a registry for owner and returns its address.
func (d *Deployer) Deploy(ctx context.Context, owner id.Address) (id.Address, error) {
	if owner.IsZero() {
		return id.Address{}, fmt.Errorf("owner must not be the zero address")
	}
	addr, err := d.publisher.Publish(ctx, owner, d.salt())
	if err != nil {
		return id.Address{}, fmt.Errorf("publish registry: %w", err)
	}
	return addr, nil
}

// Run parses owner, deploys, and reports progress to w.
func (d *Deployer) Run(ctx context.Context, w io.Writer, owner string) (id.Address, error) {
	addr, err := id.ParseAddress(owner)
	if err != nil {
		return id.Address{}, err
	}
	fmt.Fprintf(w, "Deploying registry with the account: %s\n", addr)
	registry, err := d.Deploy(ctx, addr)
	if err != nil {
		return id.Address{}, err
	}
	fmt.Fprintf(w, "Registry deployed to: %s\n", registry)
	return registry, nil
}

func randomSalt() []byte {
	u := uuid.New()
	return u[:]
}
