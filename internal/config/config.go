// Package config loads runtime settings from FAIRTRACE_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"fairtrace/internal/blob"
	blobcore "fairtrace/internal/blob/core"
	"fairtrace/internal/core"
	"fairtrace/internal/infra/blob/s3"
)

// Prefix is prepended to every environment variable name.
const Prefix = "FAIRTRACE"

// Config holds every knob of the fairtrace server.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	IDPrefix        string        `envconfig:"ID_PREFIX" default:"PROD"`

	// ArchiveDrivers is a comma separated list, e.g. "sqlite,postgres".
	ArchiveDrivers     []string `envconfig:"ARCHIVE_DRIVER" default:"none"`
	ArchiveSQLitePath  string   `envconfig:"ARCHIVE_SQLITE_PATH" default:"fairtrace-ledger.db"`
	ArchivePostgresDSN string   `envconfig:"ARCHIVE_POSTGRES_DSN"`

	BlobDriver            string `envconfig:"BLOB_DRIVER" default:"memory"`
	BlobFSRoot            string `envconfig:"BLOB_FS_ROOT" default:"./blobdata"`
	BlobS3Bucket          string `envconfig:"BLOB_S3_BUCKET"`
	BlobS3Region          string `envconfig:"BLOB_S3_REGION" default:"us-east-1"`
	BlobS3Endpoint        string `envconfig:"BLOB_S3_ENDPOINT"`
	BlobS3PathStyle       bool   `envconfig:"BLOB_S3_PATH_STYLE"`
	BlobS3AccessKeyID     string `envconfig:"BLOB_S3_ACCESS_KEY_ID"`
	BlobS3SecretAccessKey string `envconfig:"BLOB_S3_SECRET_ACCESS_KEY"`
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "load config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return errors.Errorf("invalid %s_LOG_FORMAT %q (want json or text)", Prefix, c.LogFormat)
	}
	for _, d := range c.Archive().Drivers {
		switch d {
		case core.ArchiveNone, core.ArchiveSQLite, core.ArchivePostgres:
		default:
			return errors.Errorf("invalid %s_ARCHIVE_DRIVER entry %q", Prefix, d)
		}
	}
	switch blobcore.Driver(strings.ToLower(c.BlobDriver)) {
	case blobcore.DriverMemory, blobcore.DriverFilesystem:
	case blobcore.DriverS3:
		if c.BlobS3Bucket == "" {
			return errors.Errorf("%s_BLOB_S3_BUCKET is required when the blob driver is s3", Prefix)
		}
	default:
		return errors.Errorf("invalid %s_BLOB_DRIVER %q", Prefix, c.BlobDriver)
	}
	if strings.TrimSpace(c.IDPrefix) == "" {
		return errors.Errorf("%s_ID_PREFIX must not be empty", Prefix)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.Errorf("%s_SHUTDOWN_TIMEOUT must be positive", Prefix)
	}
	return nil
}

// Archive returns the ledger archive settings.
func (c Config) Archive() core.ArchiveConfig {
	out := core.ArchiveConfig{SQLitePath: c.ArchiveSQLitePath, PostgresDSN: c.ArchivePostgresDSN}
	for _, raw := range c.ArchiveDrivers {
		if d := strings.ToLower(strings.TrimSpace(raw)); d != "" {
			out.Drivers = append(out.Drivers, core.ArchiveDriver(d))
		}
	}
	return out
}

// Blob returns the export blob store settings.
func (c Config) Blob() blob.Config {
	return blob.Config{
		Driver: blobcore.Driver(strings.ToLower(c.BlobDriver)),
		FSRoot: c.BlobFSRoot,
		S3: s3.Config{
			Region:          c.BlobS3Region,
			Bucket:          c.BlobS3Bucket,
			Endpoint:        c.BlobS3Endpoint,
			AccessKeyID:     c.BlobS3AccessKeyID,
			SecretAccessKey: c.BlobS3SecretAccessKey,
			PathStyle:       c.BlobS3PathStyle,
		},
	}
}
