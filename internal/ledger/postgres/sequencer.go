package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"rollcall/internal/ledger"
	"rollcall/internal/registry/models"
	id "rollcall/pkg/domain"
)

type pendingTx struct {
	rowID    int64
	hash     ledger.TxHash
	registry id.Address
	from     id.Address
	cmd      models.Command
}

// Step applies the oldest pending transaction, if any, and reports whether
// one was applied.
func (n *Network) Step(ctx context.Context) (bool, error) {
	var receipt *ledger.Receipt
	err := pgx.BeginFunc(ctx, n.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, sequencerLock); err != nil {
			return err
		}
		p, err := nextPending(ctx, tx)
		if err != nil || p == nil {
			return err
		}
		receipt, err = n.apply(ctx, tx, p)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("sequence ledger transaction: %w", err)
	}
	if receipt == nil {
		return false, nil
	}
	n.logger.DebugContext(ctx, "transaction applied",
		"tx", receipt.Hash.Short(),
		"method", string(receipt.Method),
		"status", string(receipt.Status),
		"sequence", receipt.Sequence,
	)
	return true, nil
}

func nextPending(ctx context.Context, tx pgx.Tx) (*pendingTx, error) {
	var (
		p                         pendingTx
		hash, reg, from, target   []byte
		method, name              string
	)
	err := tx.QueryRow(ctx, `
		SELECT id, hash, registry, sender, method, target, name
		FROM ledger_transactions
		WHERE status = 'pending'
		ORDER BY id
		LIMIT 1
		FOR UPDATE`).Scan(&p.rowID, &hash, &reg, &from, &method, &target, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	copy(p.hash[:], hash)
	p.registry = id.AddressFromBytes(reg)
	p.from = id.AddressFromBytes(from)
	addr := id.AddressFromBytes(target)
	switch models.Method(method) {
	case models.MethodAddStudent:
		p.cmd = models.AddStudentCommand{Address: addr, Name: name}
	case models.MethodRemoveStudent:
		p.cmd = models.RemoveStudentCommand{Address: addr}
	case models.MethodMarkAttendance:
		p.cmd = models.MarkAttendanceCommand{Address: addr}
	default:
		return nil, fmt.Errorf("transaction %d has unknown method %q", p.rowID, method)
	}
	return &p, nil
}

func (n *Network) apply(ctx context.Context, tx pgx.Tx, p *pendingTx) (*ledger.Receipt, error) {
	var owner []byte
	var policy string
	err := tx.QueryRow(ctx, `SELECT owner, policy FROM registries WHERE address = $1 FOR UPDATE`, p.registry.Bytes()).
		Scan(&owner, &policy)
	if err != nil {
		return nil, fmt.Errorf("lock registry %s: %w", p.registry, err)
	}

	r := &ledger.Receipt{
		Hash:   p.hash,
		From:   p.from,
		Method: p.cmd.Method(),
		Target: p.cmd.Target(),
	}
	var student *models.Student
	if !ledger.Policy(policy).Permits(id.AddressFromBytes(owner), p.from, p.cmd) {
		r.Status = ledger.StatusRejected
		r.Reason = ledger.ReasonUnauthorized
	} else {
		s, err := applyCommand(ctx, tx, p.registry, p.cmd)
		switch {
		case isRejection(err):
			r.Status = ledger.StatusRejected
			r.Reason = models.Reason(err)
		case err != nil:
			return nil, err
		default:
			r.Status = ledger.StatusConfirmed
			r.Student = s
			student = &s
		}
	}

	var count, seq int64
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM students WHERE registry = $1 AND address = $2),
		       (SELECT count(*) FROM students WHERE registry = $1),
		       nextval('ledger_confirmation_seq')`,
		p.registry.Bytes(), r.Target.Bytes()).Scan(&r.Registered, &count, &seq)
	if err != nil {
		return nil, fmt.Errorf("read post-state: %w", err)
	}
	r.StudentCount = uint64(count)
	r.Sequence = uint64(seq)
	r.ConfirmedAt = n.now()

	var studentName *string
	var studentAttendance *int64
	if student != nil {
		studentName = &student.Name
		c := int64(student.AttendanceCount)
		studentAttendance = &c
	}
	_, err = tx.Exec(ctx, `
		UPDATE ledger_transactions
		SET status = $2, reason = $3, student_name = $4, student_attendance = $5,
		    registered = $6, student_count = $7, sequence = $8, confirmed_at = $9
		WHERE id = $1`,
		p.rowID, string(r.Status), r.Reason, studentName, studentAttendance,
		r.Registered, count, seq, r.ConfirmedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("record receipt: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, channelReceipts, r.Hash.String()); err != nil {
		return nil, fmt.Errorf("announce receipt: %w", err)
	}
	return r, nil
}

// applyCommand runs cmd against the students table. Registry rule
// violations come back as the models sentinels.
func applyCommand(ctx context.Context, tx pgx.Tx, registry id.Address, cmd models.Command) (models.Student, error) {
	switch c := cmd.(type) {
	case models.AddStudentCommand:
		name, err := models.NormalizeName(c.Name)
		if err != nil {
			return models.Student{}, err
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO students (registry, address, name, attendance_count, position)
			SELECT $1, $2, $3, 0, count(*) FROM students WHERE registry = $1
			ON CONFLICT (registry, address) DO NOTHING`,
			registry.Bytes(), c.Address.Bytes(), name)
		if err != nil {
			return models.Student{}, err
		}
		if tag.RowsAffected() == 0 {
			return models.Student{}, models.ErrDuplicateStudent
		}
		return models.Student{Address: c.Address, Name: name}, nil

	case models.RemoveStudentCommand:
		s := models.Student{Address: c.Address}
		var pos, attendance int64
		err := tx.QueryRow(ctx, `
			DELETE FROM students WHERE registry = $1 AND address = $2
			RETURNING position, name, attendance_count`,
			registry.Bytes(), c.Address.Bytes()).Scan(&pos, &s.Name, &attendance)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Student{}, models.ErrNotFound
		}
		if err != nil {
			return models.Student{}, err
		}
		s.AttendanceCount = uint64(attendance)
		// swap-with-last: the entry at the old last position fills the gap
		_, err = tx.Exec(ctx, `
			UPDATE students SET position = $2
			WHERE registry = $1 AND position = (SELECT count(*) FROM students WHERE registry = $1)`,
			registry.Bytes(), pos)
		if err != nil {
			return models.Student{}, err
		}
		return s, nil

	case models.MarkAttendanceCommand:
		s := models.Student{Address: c.Address}
		var attendance int64
		err := tx.QueryRow(ctx, `
			UPDATE students SET attendance_count = attendance_count + 1
			WHERE registry = $1 AND address = $2
			RETURNING name, attendance_count`,
			registry.Bytes(), c.Address.Bytes()).Scan(&s.Name, &attendance)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Student{}, models.ErrNotRegistered
		}
		if err != nil {
			return models.Student{}, err
		}
		s.AttendanceCount = uint64(attendance)
		return s, nil

	default:
		return models.Student{}, fmt.Errorf("unsupported command %T", cmd)
	}
}

func isRejection(err error) bool {
	return errors.Is(err, models.ErrDuplicateStudent) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrNotRegistered) ||
		errors.Is(err, models.ErrInvalidName)
}

// sequence applies pending transactions as they are announced, polling as a
// fallback for missed notifications.
func (n *Network) sequence(ctx context.Context) error {
	ticker := time.NewTicker(n.poll)
	defer ticker.Stop()
	for {
		applied, err := n.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n.logger.WarnContext(ctx, "ledger sequencer step failed", "error", err)
		}
		if applied {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-n.wake:
		case <-ticker.C:
		}
	}
}

// listen holds one connection LISTENing on both channels and reconnects
// after failures.
func (n *Network) listen(ctx context.Context) error {
	for {
		err := n.listenOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n.logger.WarnContext(ctx, "ledger listener disconnected", "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.poll):
		}
	}
}

func (n *Network) listenOnce(ctx context.Context) error {
	conn, err := n.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, ch := range []string{channelSubmitted, channelReceipts} {
		if _, err := conn.Exec(ctx, "LISTEN "+ch); err != nil {
			return err
		}
	}
	// release with a clean session for the next pool user
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), "UNLISTEN *")
	}()

	for {
		note, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		switch note.Channel {
		case channelSubmitted:
			select {
			case n.wake <- struct{}{}:
			default:
			}
		case channelReceipts:
			hash, err := ledger.ParseTxHash(note.Payload)
			if err != nil {
				n.logger.WarnContext(ctx, "malformed receipt notification", "payload", note.Payload)
				continue
			}
			n.waiters.notify(hash)
		}
	}
}
