package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairtrace/internal/blob/core"
)

func TestMemoryStorePutGetList(t *testing.T) {
	ctx := context.Background()
	s := New()
	assert.Equal(t, core.DriverMemory, s.Driver())

	md := map[string]string{"records": "3"}
	info, err := s.Put(ctx, "ledger-exports/a.json", strings.NewReader(`[]`), core.PutOptions{ContentType: "application/json", Metadata: md})
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Size)
	assert.NotEmpty(t, info.ETag)
	md["records"] = "mutated"

	_, err = s.Put(ctx, "ledger-exports/a.json", strings.NewReader(`x`), core.PutOptions{})
	require.ErrorIs(t, err, core.ErrExists)
	_, err = s.Put(ctx, "", strings.NewReader(`x`), core.PutOptions{})
	require.Error(t, err)

	got, rc, err := s.Get(ctx, "ledger-exports/a.json")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "[]", string(data))
	assert.Equal(t, "3", got.Metadata["records"], "stored metadata is isolated from the caller's map")

	head, err := s.Head(ctx, "ledger-exports/a.json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", head.ContentType)

	_, err = s.Put(ctx, "ledger-exports/0.csv", strings.NewReader("a"), core.PutOptions{})
	require.NoError(t, err)
	_, err = s.Put(ctx, "other", strings.NewReader("b"), core.PutOptions{})
	require.NoError(t, err)
	list, err := s.List(ctx, "ledger-exports/")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ledger-exports/0.csv", list[0].Key)

	_, _, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.Head(ctx, "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
}
