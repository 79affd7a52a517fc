package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubDBHonoursConflictKeysAndTransactions(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	insert := "INSERT INTO ledger (session_id, sequence, owner) VALUES ($1,$2,$3) ON CONFLICT (session_id, sequence) DO NOTHING"
	args := []driver.NamedValue{{Value: "s1"}, {Value: int64(1)}, {Value: "Ram"}}

	tx, err := conn.BeginTx(ctx, driver.TxOptions{})
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := conn.ExecContext(ctx, insert, args); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(conn.Rows("ledger")) != 0 {
		t.Fatalf("expected rows hidden until commit")
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := conn.ExecContext(ctx, insert, args); err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if got := len(conn.Rows("ledger")); got != 1 {
		t.Fatalf("expected conflicting insert to be ignored, got %d rows", got)
	}

	rows, err := conn.QueryContext(ctx, "select owner, sequence from ledger", nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "Ram" || dest[1] != int64(1) {
		t.Fatalf("unexpected row values: %v", dest)
	}
}

func TestStubDBRollbackDiscardsPending(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	tx, err := conn.BeginTx(ctx, driver.TxOptions{})
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := conn.ExecContext(ctx, "INSERT INTO ledger (id) VALUES ($1)", []driver.NamedValue{{Value: "x"}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if got := len(conn.Rows("ledger")); got != 0 {
		t.Fatalf("expected rollback to discard rows, got %d", got)
	}
}
