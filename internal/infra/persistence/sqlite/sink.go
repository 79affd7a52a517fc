// Package sqlite mirrors committed ledger entries into a local SQLite file.
// The file is an audit copy only: nothing is read back into the service.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"fairtrace/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.ArchiveSink = (*Sink)(nil)

// DefaultPath is used when no archive path is configured.
const DefaultPath = "fairtrace-ledger.db"

const schema = `CREATE TABLE IF NOT EXISTS ledger_archive (
	session_id     TEXT    NOT NULL,
	sequence       INTEGER NOT NULL,
	recorded_at    TEXT    NOT NULL,
	product_id     TEXT    NOT NULL,
	product_name   TEXT    NOT NULL,
	owner          TEXT    NOT NULL,
	owner_category TEXT    NOT NULL,
	price          TEXT    NOT NULL,
	action         TEXT    NOT NULL,
	previous_owner TEXT    NOT NULL,
	PRIMARY KEY (session_id, sequence)
)`

const insertStmt = `INSERT OR IGNORE INTO ledger_archive
	(session_id, sequence, recorded_at, product_id, product_name, owner, owner_category, price, action, previous_owner)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Sink appends ledger entries to the ledger_archive table. Each process run
// writes under its own session id, since sequences restart with the service.
type Sink struct {
	db      *sql.DB
	mu      sync.Mutex
	path    string
	session string
}

// NewSink opens (creating when needed) the SQLite archive at path.
func NewSink(ctx context.Context, path string) (*Sink, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, errors.Wrap(err, "create archive dir")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create ledger_archive table")
	}
	return &Sink{db: db, path: path, session: uuid.NewString()}, nil
}

// Archive inserts records in one database transaction. Re-archiving the
// same sequence within a session is a no-op.
func (s *Sink) Archive(ctx context.Context, records []domain.TransferRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin archive tx")
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
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			rec.ProductID,
			rec.ProductName,
			rec.Owner,
			string(rec.OwnerCategory),
			rec.Price.StringFixed(2),
			string(rec.Action),
			rec.PreviousOwner,
		); err != nil {
			return errors.Wrapf(err, "archive entry %d", rec.Sequence)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit archive tx")
	}
	committed = true
	return nil
}

// Close releases the database handle.
func (s *Sink) Close() error { return s.db.Close() }

// DB exposes the underlying handle for inspection in tests and tooling.
func (s *Sink) DB() *sql.DB { return s.db }

// Path returns the archive file path.
func (s *Sink) Path() string { return s.path }

// SessionID identifies the rows written by this sink.
func (s *Sink) SessionID() string { return s.session }
