// Package core defines the abstractions shared by the export artifact
// storage backends.
package core

import (
	"context"
	"errors"
	"io"
	"path"
	"time"
)

// Driver identifies a concrete artifact storage backend implementation.
type Driver string

const (
	// DriverFilesystem stores artifacts under a local directory root.
	DriverFilesystem Driver = "fs" // local filesystem (default, dev)
	// DriverS3 stores artifacts in an S3 / MinIO compatible bucket.
	DriverS3 Driver = "s3"
	// DriverMemory keeps artifacts in process memory, for tests.
	DriverMemory Driver = "memory"
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions holds options for generating a download URL.
type SignedURLOptions struct {
	Method string        // GET only; other methods are unsupported
	Expiry time.Duration // default 15m
}

// Info describes a stored artifact.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is the thin S3-like surface the export worker writes artifacts
// through. Put is create-only: export keys embed the job ID and are never
// rewritten.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

// ExportKeyPrefix is the directory all export artifacts live under.
const ExportKeyPrefix = "exports"

// ExportKey returns the canonical object key for an export job artifact.
func ExportKey(jobID, filename string) string {
	return path.Join(ExportKeyPrefix, jobID, filename)
}

// ErrUnsupported is returned when an optional capability is not available.
var ErrUnsupported = errors.New("artifact store: unsupported operation")
