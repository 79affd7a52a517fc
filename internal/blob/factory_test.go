package blob

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairtrace/internal/blob/core"
	"fairtrace/internal/infra/blob/fs"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, Config{Driver: core.DriverMemory})
	require.NoError(t, err)
	assert.Equal(t, core.DriverMemory, mem.Driver())

	root := filepath.Join(t.TempDir(), "exports")
	store, err := Open(ctx, Config{FSRoot: root})
	require.NoError(t, err)
	assert.Equal(t, core.DriverFilesystem, store.Driver())
	fsStore, ok := store.(*fs.Store)
	require.True(t, ok)
	assert.Equal(t, root, fsStore.Root())
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "ftp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown blob driver ftp")

	_, err = Open(context.Background(), Config{Driver: core.DriverS3})
	require.Error(t, err, "s3 without a bucket is rejected")
}
