// Package postgres is a ledger backed by PostgreSQL. Submitted transactions
// are rows in ledger_transactions; a sequencer applies them one at a time in
// submission order, each inside its own database transaction, and announces
// receipts with NOTIFY. Any number of client processes can share a database.
package postgres

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"rollcall/internal/ledger"
	"rollcall/internal/registry/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

const (
	defaultPollInterval = time.Second
	pgForeignKeyViolation = "23503"
)

// Network is the database-backed ledger. Run must be going in at least one
// process for pending transactions to confirm.
type Network struct {
	pool    *pgxpool.Pool
	policy  ledger.Policy
	poll    time.Duration
	now     func() time.Time
	logger  *slog.Logger
	waiters *waiters
	wake    chan struct{}
}

type Option func(*Network)

// WithPolicy sets the access-control rule stored with newly published
// registries.
func WithPolicy(p ledger.Policy) Option {
	return func(n *Network) {
		n.policy = p
	}
}

// WithPollInterval bounds how long a missed notification can delay the
// sequencer or a receipt waiter.
func WithPollInterval(d time.Duration) Option {
	return func(n *Network) {
		if d > 0 {
			n.poll = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *Network) {
		n.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(n *Network) {
		if now != nil {
			n.now = now
		}
	}
}

// New binds a Network to pool. The schema must already exist (see Migrate).
func New(pool *pgxpool.Pool, opts ...Option) *Network {
	n := &Network{
		pool:    pool,
		policy:  ledger.PolicyOpen,
		poll:    defaultPollInterval,
		now:     time.Now,
		logger:  slog.New(slog.DiscardHandler),
		waiters: newWaiters(),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Publish creates an empty registry owned by owner and returns its address.
func (n *Network) Publish(ctx context.Context, owner id.Address, salt []byte) (id.Address, error) {
	addr := ledger.RegistryAddress(owner, salt)
	tag, err := n.pool.Exec(ctx,
		`INSERT INTO registries (address, owner, policy) VALUES ($1, $2, $3) ON CONFLICT (address) DO NOTHING`,
		addr.Bytes(), owner.Bytes(), string(n.policy),
	)
	if err != nil {
		return id.Address{}, unavailable("", err)
	}
	if tag.RowsAffected() == 0 {
		return id.Address{}, fmt.Errorf("registry %s: %w", addr, sentinel.ErrConflict)
	}
	n.logger.InfoContext(ctx, "registry published", "registry", addr.String(), "owner", owner.String())
	return addr, nil
}

// Registry returns the ledger client bound to a published registry.
func (n *Network) Registry(ctx context.Context, address id.Address) (*Ledger, error) {
	var exists bool
	err := n.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM registries WHERE address = $1)`, address.Bytes()).Scan(&exists)
	if err != nil {
		return nil, unavailable("", err)
	}
	if !exists {
		return nil, fmt.Errorf("registry %s: %w", address, sentinel.ErrNotFound)
	}
	return &Ledger{network: n, address: address}, nil
}

// Run listens for notifications and sequences pending transactions until
// ctx ends.
func (n *Network) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.listen(ctx) })
	g.Go(func() error { return n.sequence(ctx) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (n *Network) submit(ctx context.Context, registry, from id.Address, cmd models.Command) (ledger.TxHash, error) {
	nonce := uuid.New()
	hash := ledger.NewTxHash(from, cmd, binary.BigEndian.Uint64(nonce[:8]))
	var name string
	if add, ok := cmd.(models.AddStudentCommand); ok {
		name = add.Name
	}
	target := cmd.Target()

	err := pgx.BeginFunc(ctx, n.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO ledger_transactions (hash, registry, sender, method, target, name, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			hash[:], registry.Bytes(), from.Bytes(), string(cmd.Method()), target.Bytes(), name, n.now(),
		)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, channelSubmitted, hash.String())
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return ledger.TxHash{}, ledger.NewError(ledger.CategoryRejected, cmd.Method(), "no registry at "+registry.String(), sentinel.ErrNotFound)
		}
		return ledger.TxHash{}, unavailable(cmd.Method(), err)
	}
	return hash, nil
}

func (n *Network) waitReceipt(ctx context.Context, hash ledger.TxHash) (*ledger.Receipt, error) {
	ticker := time.NewTicker(n.poll)
	defer ticker.Stop()
	for {
		notified, cancel := n.waiters.add(hash)
		r, err := n.receipt(ctx, hash)
		if err != nil || r.Status.IsTerminal() {
			cancel()
			return r, err
		}
		select {
		case <-notified:
		case <-ticker.C:
		case <-ctx.Done():
			cancel()
			return nil, ctx.Err()
		}
		cancel()
	}
}

func (n *Network) receipt(ctx context.Context, hash ledger.TxHash) (*ledger.Receipt, error) {
	var (
		from, target                 []byte
		method, status, reason       string
		studentName                  *string
		studentAttendance, count, seq *int64
		registered                   *bool
		confirmedAt                  *time.Time
	)
	err := n.pool.QueryRow(ctx, `
		SELECT sender, method, target, status, reason, student_name, student_attendance,
		       registered, student_count, sequence, confirmed_at
		FROM ledger_transactions WHERE hash = $1`, hash[:]).
		Scan(&from, &method, &target, &status, &reason, &studentName, &studentAttendance,
			&registered, &count, &seq, &confirmedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.NewError(ledger.CategoryRejected, "", "unknown transaction "+hash.Short(), sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("", err)
	}

	r := &ledger.Receipt{
		Hash:   hash,
		From:   id.AddressFromBytes(from),
		Method: models.Method(method),
		Target: id.AddressFromBytes(target),
		Status: ledger.Status(status),
		Reason: reason,
	}
	if studentName != nil {
		r.Student = models.Student{Address: r.Target, Name: *studentName}
		if studentAttendance != nil {
			r.Student.AttendanceCount = uint64(*studentAttendance)
		}
	}
	if registered != nil {
		r.Registered = *registered
	}
	if count != nil {
		r.StudentCount = uint64(*count)
	}
	if seq != nil {
		r.Sequence = uint64(*seq)
	}
	if confirmedAt != nil {
		r.ConfirmedAt = *confirmedAt
	}
	return r, nil
}

// unavailable classifies a database failure. Context errors pass through
// so callers can tell abandonment from connectivity loss.
func unavailable(method models.Method, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return ledger.Unavailable(method, err)
}

// waiters fans receipt notifications out to WaitReceipt callers.
type waiters struct {
	mu      sync.Mutex
	pending map[ledger.TxHash]map[chan struct{}]struct{}
}

func newWaiters() *waiters {
	return &waiters{pending: make(map[ledger.TxHash]map[chan struct{}]struct{})}
}

func (w *waiters) add(hash ledger.TxHash) (<-chan struct{}, func()) {
	ch := make(chan struct{})
	w.mu.Lock()
	set := w.pending[hash]
	if set == nil {
		set = make(map[chan struct{}]struct{})
		w.pending[hash] = set
	}
	set[ch] = struct{}{}
	w.mu.Unlock()

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if set, ok := w.pending[hash]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(w.pending, hash)
			}
		}
	}
}

func (w *waiters) notify(hash ledger.TxHash) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.pending[hash] {
		close(ch)
	}
	delete(w.pending, hash)
}
