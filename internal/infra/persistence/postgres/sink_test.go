package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fairtrace/internal/infra/persistence/postgres/testutil"
	"fairtrace/pkg/domain"
)

func ledgerEntries() []domain.TransferRecord {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return []domain.TransferRecord{
		{Sequence: 1, Timestamp: at, ProductID: "PROD-0001", ProductName: "Organic Coffee Beans", Owner: "Ram Singh",
			OwnerCategory: domain.CategoryFarmer, Price: decimal.RequireFromString("100"), Action: domain.ActionRegistered, PreviousOwner: domain.GenesisOwner},
		{Sequence: 2, Timestamp: at.Add(time.Hour), ProductID: "PROD-0001", ProductName: "Organic Coffee Beans", Owner: domain.DistributorOwner,
			OwnerCategory: domain.CategoryDistributor, Price: decimal.RequireFromString("150"), Action: domain.ActionPurchasedByDistributor, PreviousOwner: "Ram Singh"},
	}
}

func openStub(t *testing.T) (*testutil.StubConn, func()) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != defaultDriver {
			t.Errorf("expected driver %s, got %s", defaultDriver, driverName)
		}
		if dsn != defaultDSN {
			t.Errorf("expected default dsn, got %s", dsn)
		}
		return db, nil
	})
	return conn, restore
}

func TestNewSinkEnsuresSchema(t *testing.T) {
	conn, restore := openStub(t)
	defer restore()

	sink, err := NewSink(context.Background(), "")
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	defer func() { _ = sink.Close() }()
	if sink.SessionID() == "" || sink.DB() == nil {
		t.Fatalf("expected session id and db handle")
	}
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS ledger_archive") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected archive DDL, got %v", conn.Execs)
	}
}

func TestArchiveInsertsRowsOnce(t *testing.T) {
	conn, restore := openStub(t)
	defer restore()
	sink, err := NewSink(context.Background(), "")
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	ctx := context.Background()
	if err := sink.Archive(ctx, ledgerEntries()); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := sink.Archive(ctx, ledgerEntries()); err != nil {
		t.Fatalf("Archive replay: %v", err)
	}
	rows := conn.Rows("ledger_archive")
	if len(rows) != 2 {
		t.Fatalf("expected 2 archived rows, got %d", len(rows))
	}
	if rows[1]["previous_owner"] != "Ram Singh" || rows[1]["price"] != "150.00" || rows[1]["session_id"] != sink.SessionID() {
		t.Fatalf("unexpected row: %v", rows[1])
	}
}

func TestArchiveRollsBackOnFailure(t *testing.T) {
	conn, restore := openStub(t)
	defer restore()
	sink, err := NewSink(context.Background(), "")
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	conn.FailCommit = true
	if err := sink.Archive(context.Background(), ledgerEntries()); err == nil {
		t.Fatalf("expected commit failure")
	}
	if got := len(conn.Rows("ledger_archive")); got != 0 {
		t.Fatalf("expected no rows after failed commit, got %d", got)
	}
	conn.FailCommit = false
	conn.FailTables = map[string]bool{"ledger_archive": true}
	if err := sink.Archive(context.Background(), ledgerEntries()); err == nil || !strings.Contains(err.Error(), "insert ledger entry 1") {
		t.Fatalf("expected wrapped insert error, got %v", err)
	}
}

func TestNewSinkPropagatesOpenAndPingErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("boom") })
	if _, err := NewSink(context.Background(), "postgres://x"); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewSink(context.Background(), "postgres://x"); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

// TestSinkAgainstLiveDatabase runs only when a real server is available.
func TestSinkAgainstLiveDatabase(t *testing.T) {
	dsn := os.Getenv("FAIRTRACE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FAIRTRACE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	sink, err := NewSink(ctx, dsn)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	defer func() { _ = sink.Close() }()
	if err := sink.Archive(ctx, ledgerEntries()); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	var count int
	if err := sink.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_archive WHERE session_id = $1`, sink.SessionID()).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}
}
