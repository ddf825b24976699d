package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Notification channels.
const (
	channelSubmitted = "ledger_submitted"
	channelReceipts  = "ledger_receipts"
)

// sequencerLock is the advisory lock key held while a transaction is
// applied, so concurrent sequencers still produce one total order.
const sequencerLock int64 = 0x726f6c6c63616c6c

var schema = []string{
	`CREATE TABLE IF NOT EXISTS registries (
		address    BYTEA PRIMARY KEY,
		owner      BYTEA NOT NULL,
		policy     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		registry         BYTEA NOT NULL REFERENCES registries (address),
		address          BYTEA NOT NULL,
		name             TEXT NOT NULL,
		attendance_count BIGINT NOT NULL DEFAULT 0,
		position         BIGINT NOT NULL,
		PRIMARY KEY (registry, address),
		UNIQUE (registry, position)
	)`,
	`CREATE SEQUENCE IF NOT EXISTS ledger_confirmation_seq`,
	`CREATE TABLE IF NOT EXISTS ledger_transactions (
		id                 BIGSERIAL PRIMARY KEY,
		hash               BYTEA NOT NULL UNIQUE,
		registry           BYTEA NOT NULL REFERENCES registries (address),
		sender             BYTEA NOT NULL,
		method             TEXT NOT NULL,
		target             BYTEA NOT NULL,
		name               TEXT NOT NULL DEFAULT '',
		status             TEXT NOT NULL DEFAULT 'pending',
		reason             TEXT NOT NULL DEFAULT '',
		student_name       TEXT,
		student_attendance BIGINT,
		registered         BOOLEAN,
		student_count      BIGINT,
		sequence           BIGINT,
		submitted_at       TIMESTAMPTZ NOT NULL,
		confirmed_at       TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_transactions_pending
		ON ledger_transactions (id) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS ledger_transactions_sequence
		ON ledger_transactions (registry, sequence) WHERE sequence IS NOT NULL`,
}

// Migrate creates the ledger tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate ledger schema: %w", err)
		}
	}
	return nil
}
