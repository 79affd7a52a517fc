// Package blob selects the blob store used for ledger export artifacts.
package blob

import (
	"context"

	"github.com/pkg/errors"

	"fairtrace/internal/blob/core"
	"fairtrace/internal/infra/blob/fs"
	"fairtrace/internal/infra/blob/memory"
	"fairtrace/internal/infra/blob/s3"
)

// Config selects and parameterises a blob driver.
//
//	Driver: fs|s3|memory (default fs)
//	FSRoot: directory root when Driver is fs (default ./blobdata)
type Config struct {
	Driver core.Driver
	FSRoot string
	S3     s3.Config
}

// Open returns the core.Store implementation named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (core.Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = core.DriverFilesystem
	}
	switch driver {
	case core.DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case core.DriverS3:
		return s3.New(ctx, cfg.S3)
	case core.DriverMemory:
		return memory.New(), nil
	default:
		return nil, errors.Errorf("unknown blob driver %s", driver)
	}
}
