// Package postgres mirrors committed ledger entries into a Postgres table for
// audit. It never loads state back.
package postgres

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"fairtrace/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ domain.ArchiveSink = (*Sink)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/fairtrace?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

const schema = `CREATE TABLE IF NOT EXISTS ledger_archive (
	session_id     UUID          NOT NULL,
	sequence       BIGINT        NOT NULL,
	recorded_at    TIMESTAMPTZ   NOT NULL,
	product_id     TEXT          NOT NULL,
	product_name   TEXT          NOT NULL,
	owner          TEXT          NOT NULL,
	owner_category TEXT          NOT NULL,
	price          NUMERIC(14,2) NOT NULL,
	action         TEXT          NOT NULL,
	previous_owner TEXT          NOT NULL,
	PRIMARY KEY (session_id, sequence)
)`

const insertStmt = `INSERT INTO ledger_archive (session_id, sequence, recorded_at, product_id, product_name, owner, owner_category, price, action, previous_owner) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) ON CONFLICT (session_id, sequence) DO NOTHING`

// Sink appends ledger entries to Postgres.
type Sink struct {
	db      *sql.DB
	mu      sync.Mutex
	session string
}

// NewSink connects to dsn (falling back to a local default) and ensures the
// archive table exists.
func NewSink(ctx context.Context, dsn string) (*Sink, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ensure ledger_archive table")
	}
	return &Sink{db: db, session: uuid.NewString()}, nil
}

// Archive inserts records inside one transaction.
func (s *Sink) Archive(ctx context.Context, records []domain.TransferRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, insertStmt,
			s.session,
			int64(rec.Sequence),
			rec.Timestamp.UTC(),
			rec.ProductID,
			rec.ProductName,
			rec.Owner,
			string(rec.OwnerCategory),
			rec.Price.StringFixed(2),
			string(rec.Action),
			rec.PreviousOwner,
		); err != nil {
			return errors.Wrapf(err, "insert ledger entry %d", rec.Sequence)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	committed = true
	return nil
}

// Close releases the connection pool.
func (s *Sink) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Sink) DB() *sql.DB { return s.db }

// SessionID identifies the rows written by this sink.
func (s *Sink) SessionID() string { return s.session }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
