// Package blob selects the export artifact storage backend.
package blob

import (
	"context"
	"fmt"
	"os"

	"carbonscope/internal/blob/core"
	"carbonscope/internal/infra/blob/fs"
	"carbonscope/internal/infra/blob/memory"
	"carbonscope/internal/infra/blob/s3"
)

// Options holds explicit construction parameters. Fields not used by the
// selected driver are ignored.
type Options struct {
	Driver core.Driver
	Root   string // fs: directory root
	Bucket string // s3: bucket name
}

// Open constructs the artifact store described by opts. An empty driver
// falls back to the filesystem.
func Open(ctx context.Context, opts Options) (core.Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = core.DriverFilesystem
	}
	switch driver {
	case core.DriverFilesystem:
		return fs.New(opts.Root)
	case core.DriverS3:
		cfg := s3.ConfigFromEnv()
		if opts.Bucket != "" {
			cfg.Bucket = opts.Bucket
		}
		return s3.New(ctx, cfg)
	case core.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown artifact driver %s", driver)
	}
}

// OpenFromEnv selects a backend using environment variables.
//
//	CARBONSCOPE_BLOB_DRIVER: fs|s3|memory (default fs)
//	CARBONSCOPE_BLOB_FS_ROOT: directory root when driver=fs (default ./exportdata)
//	(S3 specific variables documented in s3.ConfigFromEnv)
func OpenFromEnv(ctx context.Context) (core.Store, error) {
	return Open(ctx, Options{
		Driver: core.Driver(os.Getenv("CARBONSCOPE_BLOB_DRIVER")),
		Root:   os.Getenv("CARBONSCOPE_BLOB_FS_ROOT"),
	})
}
