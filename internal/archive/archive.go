// Package archive exposes the ledger archive abstraction and selects a
// backend from configuration.
package archive

import (
	"context"
	"fmt"

	"stockcore/internal/archive/core"
	"stockcore/internal/config"
	"stockcore/internal/infra/archive/fs"
	"stockcore/internal/infra/archive/memory"
	"stockcore/internal/infra/archive/s3"
)

type (
	// Store aliases core.Store.
	Store = core.Store
	// Info aliases core.Info.
	Info = core.Info
	// PutOptions aliases core.PutOptions.
	PutOptions = core.PutOptions
	// Driver aliases core.Driver.
	Driver = core.Driver
)

// Driver identifiers re-exported for callers.
const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// Sentinel errors re-exported for callers.
var (
	ErrExists   = core.ErrExists
	ErrNotFound = core.ErrNotFound
)

// Open constructs the configured archive backend. Static S3 credentials
// are read from the AWS default chain.
func Open(ctx context.Context, cfg config.ArchiveConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem, "":
		return fs.New(cfg.FSRoot)
	case DriverMemory:
		return memory.New(), nil
	case DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown archive driver %s", cfg.Driver)
	}
}
