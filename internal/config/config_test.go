package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blobcore "fairtrace/internal/blob/core"
	"fairtrace/internal/core"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "PROD", cfg.IDPrefix)
	assert.Equal(t, []core.ArchiveDriver{core.ArchiveNone}, cfg.Archive().Drivers)
	assert.Equal(t, blobcore.DriverMemory, cfg.Blob().Driver)
	assert.Equal(t, "us-east-1", cfg.Blob().S3.Region)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FAIRTRACE_HTTP_ADDR", "127.0.0.1:9090")
	t.Setenv("FAIRTRACE_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("FAIRTRACE_LOG_FORMAT", "TEXT")
	t.Setenv("FAIRTRACE_ARCHIVE_DRIVER", "sqlite, Postgres")
	t.Setenv("FAIRTRACE_ARCHIVE_SQLITE_PATH", "/tmp/ledger.db")
	t.Setenv("FAIRTRACE_ARCHIVE_POSTGRES_DSN", "postgres://db/ledger")
	t.Setenv("FAIRTRACE_BLOB_DRIVER", "s3")
	t.Setenv("FAIRTRACE_BLOB_S3_BUCKET", "exports")
	t.Setenv("FAIRTRACE_BLOB_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("FAIRTRACE_BLOB_S3_PATH_STYLE", "true")
	t.Setenv("FAIRTRACE_ID_PREFIX", "LOT")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTPAddr)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "LOT", cfg.IDPrefix)

	archive := cfg.Archive()
	assert.Equal(t, []core.ArchiveDriver{core.ArchiveSQLite, core.ArchivePostgres}, archive.Drivers)
	assert.Equal(t, "/tmp/ledger.db", archive.SQLitePath)
	assert.Equal(t, "postgres://db/ledger", archive.PostgresDSN)

	b := cfg.Blob()
	assert.Equal(t, blobcore.DriverS3, b.Driver)
	assert.Equal(t, "exports", b.S3.Bucket)
	assert.Equal(t, "http://minio:9000", b.S3.Endpoint)
	assert.True(t, b.S3.PathStyle)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"log format":        {"FAIRTRACE_LOG_FORMAT": "xml"},
		"archive driver":    {"FAIRTRACE_ARCHIVE_DRIVER": "sqlite,mongo"},
		"blob driver":       {"FAIRTRACE_BLOB_DRIVER": "gcs"},
		"s3 without bucket": {"FAIRTRACE_BLOB_DRIVER": "s3"},
		"bad duration":      {"FAIRTRACE_SHUTDOWN_TIMEOUT": "soon"},
		"zero timeout":      {"FAIRTRACE_SHUTDOWN_TIMEOUT": "0s"},
		"blank prefix":      {"FAIRTRACE_ID_PREFIX": " "},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
