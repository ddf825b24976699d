package memory

import (
	"context"

	"rollcall/internal/ledger"
	"rollcall/internal/registry/models"
	id "rollcall/pkg/domain"
)

// methods named in read errors
const (
	readGetAttendance    models.Method = "getAttendance"
	readGetStudentCount  models.Method = "getStudentCount"
	readStudentAddressAt models.Method = "studentAddressAt"
	readStudentDetails   models.Method = "studentDetails"
	readLastSequence     models.Method = "lastSequence"
)

// Ledger is a client bound to one registry on a Network.
type Ledger struct {
	network *Network
	address id.Address
}

var _ ledger.Ledger = (*Ledger)(nil)

// Address returns the registry address this client is bound to.
func (l *Ledger) Address() id.Address {
	return l.address
}

func (l *Ledger) Send(ctx context.Context, from id.Address, cmd models.Command) (ledger.TxHash, error) {
	if _, err := l.network.contract(l.address, cmd.Method()); err != nil {
		return ledger.TxHash{}, err
	}
	return l.network.submit(ctx, l.address, from, cmd)
}

func (l *Ledger) WaitReceipt(ctx context.Context, hash ledger.TxHash) (*ledger.Receipt, error) {
	return l.network.waitReceipt(ctx, hash)
}

func (l *Ledger) GetAttendance(_ context.Context, address id.Address) (uint64, error) {
	c, err := l.network.contract(l.address, readGetAttendance)
	if err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry.GetAttendance(address), nil
}

func (l *Ledger) GetStudentCount(_ context.Context) (uint64, error) {
	c, err := l.network.contract(l.address, readGetStudentCount)
	if err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry.StudentCount(), nil
}

func (l *Ledger) StudentAddressAt(_ context.Context, index uint64) (id.Address, error) {
	c, err := l.network.contract(l.address, readStudentAddressAt)
	if err != nil {
		return id.Address{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	addr, ok := c.registry.StudentAddressAt(index)
	if !ok {
		return id.Address{}, ledger.NewError(ledger.CategoryRejected, readStudentAddressAt, ledger.ReasonIndexOutOfRange, nil)
	}
	return addr, nil
}

func (l *Ledger) StudentDetails(_ context.Context, address id.Address) (models.StudentDetails, error) {
	c, err := l.network.contract(l.address, readStudentDetails)
	if err != nil {
		return models.StudentDetails{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry.StudentDetails(address), nil
}

func (l *Ledger) LastSequence(_ context.Context) (uint64, error) {
	c, err := l.network.contract(l.address, readLastSequence)
	if err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeq, nil
}
