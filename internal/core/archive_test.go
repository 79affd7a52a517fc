package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairtrace/internal/infra/persistence/sqlite"
	"fairtrace/pkg/domain"
)

func TestOpenArchiveNone(t *testing.T) {
	sink, err := OpenArchive(context.Background(), ArchiveConfig{})
	require.NoError(t, err)
	assert.Nil(t, sink)

	sink, err = OpenArchive(context.Background(), ArchiveConfig{Drivers: []ArchiveDriver{ArchiveNone}})
	require.NoError(t, err)
	assert.Nil(t, sink)
}

func TestOpenArchiveUnknownDriver(t *testing.T) {
	_, err := OpenArchive(context.Background(), ArchiveConfig{Drivers: []ArchiveDriver{"mongo"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown archive driver")
}

func TestOpenArchiveSQLiteMirrorsService(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.db")
	sink, err := OpenArchive(ctx, ArchiveConfig{Drivers: []ArchiveDriver{ArchiveSQLite}, SQLitePath: path})
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()
	sq, ok := sink.(*sqlite.Sink)
	require.True(t, ok, "a single driver is returned unwrapped")

	svc := newTestService(t, WithArchive(sink))
	p := registerCoffee(t, svc)
	_, err = svc.TransferToDistributor(ctx, p.ID, price("150"))
	require.NoError(t, err)

	var count int
	require.NoError(t, sq.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_archive`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestMultiArchiveFansOut(t *testing.T) {
	a, b := &recordingArchive{}, &recordingArchive{}
	sink := MultiArchive(a, b)
	records := []domain.TransferRecord{{Sequence: 1, ProductID: "PROD-0001"}}
	require.NoError(t, sink.Archive(context.Background(), records))
	assert.Len(t, a.batches, 1)
	assert.Len(t, b.batches, 1)

	b.err = errors.New("unreachable")
	err := sink.Archive(context.Background(), records)
	require.EqualError(t, err, "unreachable")
	assert.Len(t, a.batches, 2, "healthy sinks still receive the batch")

	require.NoError(t, sink.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

// cancelOnEnd cancels the caller's context as soon as an operation's span
// closes, i.e. right after the in-memory commit.
type cancelOnEnd struct{ cancel context.CancelFunc }

func (c cancelOnEnd) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, c
}

func (c cancelOnEnd) End(error) { c.cancel() }

func TestArchiveSurvivesCallerCancellationAfterCommit(t *testing.T) {
	sink, err := sqlite.NewSink(context.Background(), filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := &captureLogger{}
	svc := newTestService(t, WithArchive(sink), WithTracer(cancelOnEnd{cancel: cancel}), WithLogger(logger))

	p, err := svc.Register(ctx, RegisterInput{FarmerName: "Ram Singh", ProductName: "Organic Coffee Beans", Price: price("100")})
	require.NoError(t, err)
	require.Error(t, ctx.Err(), "caller context is cancelled before the mirror write")
	assert.Equal(t, "PROD-0001", p.ID)

	var count int
	require.NoError(t, sink.DB().QueryRow(`SELECT COUNT(*) FROM ledger_archive`).Scan(&count))
	assert.Equal(t, 1, count)
	assert.False(t, logger.has("error", "archive ledger entries"))
}
