package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"rollcall/internal/ledger"
	"rollcall/internal/registry/models"
	id "rollcall/pkg/domain"
)

const (
	readGetAttendance    models.Method = "getAttendance"
	readGetStudentCount  models.Method = "getStudentCount"
	readStudentAddressAt models.Method = "studentAddressAt"
	readStudentDetails   models.Method = "studentDetails"
	readLastSequence     models.Method = "lastSequence"
)

// Ledger is a client bound to one registry. Reads see confirmed state only.
type Ledger struct {
	network *Network
	address id.Address
}

var _ ledger.Ledger = (*Ledger)(nil)

func (l *Ledger) Address() id.Address {
	return l.address
}

func (l *Ledger) Send(ctx context.Context, from id.Address, cmd models.Command) (ledger.TxHash, error) {
	return l.network.submit(ctx, l.address, from, cmd)
}

func (l *Ledger) WaitReceipt(ctx context.Context, hash ledger.TxHash) (*ledger.Receipt, error) {
	return l.network.waitReceipt(ctx, hash)
}

func (l *Ledger) GetAttendance(ctx context.Context, address id.Address) (uint64, error) {
	var count int64
	err := l.network.pool.QueryRow(ctx,
		`SELECT attendance_count FROM students WHERE registry = $1 AND address = $2`,
		l.address.Bytes(), address.Bytes()).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable(readGetAttendance, err)
	}
	return uint64(count), nil
}

func (l *Ledger) GetStudentCount(ctx context.Context) (uint64, error) {
	var count int64
	err := l.network.pool.QueryRow(ctx,
		`SELECT count(*) FROM students WHERE registry = $1`, l.address.Bytes()).Scan(&count)
	if err != nil {
		return 0, unavailable(readGetStudentCount, err)
	}
	return uint64(count), nil
}

func (l *Ledger) StudentAddressAt(ctx context.Context, index uint64) (id.Address, error) {
	var raw []byte
	err := l.network.pool.QueryRow(ctx,
		`SELECT address FROM students WHERE registry = $1 AND position = $2`,
		l.address.Bytes(), int64(index)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return id.Address{}, ledger.NewError(ledger.CategoryRejected, readStudentAddressAt, ledger.ReasonIndexOutOfRange, nil)
	}
	if err != nil {
		return id.Address{}, unavailable(readStudentAddressAt, err)
	}
	return id.AddressFromBytes(raw), nil
}

func (l *Ledger) StudentDetails(ctx context.Context, address id.Address) (models.StudentDetails, error) {
	var (
		d     models.StudentDetails
		count int64
	)
	err := l.network.pool.QueryRow(ctx,
		`SELECT name, attendance_count FROM students WHERE registry = $1 AND address = $2`,
		l.address.Bytes(), address.Bytes()).Scan(&d.Name, &count)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.StudentDetails{}, nil
	}
	if err != nil {
		return models.StudentDetails{}, unavailable(readStudentDetails, err)
	}
	d.AttendanceCount = uint64(count)
	return d, nil
}

// LastSequence reads the highest committed confirmation sequence. The
// sequencer assigns it in the same transaction that changes students, so a
// read that sees it also sees its effects.
func (l *Ledger) LastSequence(ctx context.Context) (uint64, error) {
	var seq int64
	err := l.network.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM ledger_transactions WHERE registry = $1`,
		l.address.Bytes()).Scan(&seq)
	if err != nil {
		return 0, unavailable(readLastSequence, err)
	}
	return uint64(seq), nil
}
