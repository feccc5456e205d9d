// Package blob is the entry point for artifact storage. Callers depend on
// Store; the driver packages under internal/infra/blob are reached only
// through the constructors here.
package blob

import (
	"context"
	"fmt"
	"os"

	"worklistcore/internal/blob/core"
	fsstore "worklistcore/internal/infra/blob/fs"
	memorystore "worklistcore/internal/infra/blob/memory"
	s3store "worklistcore/internal/infra/blob/s3"
)

type (
	Driver     = core.Driver
	PutOptions = core.PutOptions
	Info       = core.Info
	Store      = core.Store
	S3Config   = s3store.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrExists   = core.ErrExists
	ErrNotFound = core.ErrNotFound
)

// Environment variables read by Open.
const (
	EnvDriver    = "WORKLIST_BLOB_DRIVER"
	EnvFSRoot    = "WORKLIST_BLOB_FS_ROOT"
	EnvS3Bucket  = "WORKLIST_BLOB_S3_BUCKET"
	EnvS3Region  = "WORKLIST_BLOB_S3_REGION"
	EnvS3Endpt   = "WORKLIST_BLOB_S3_ENDPOINT"
	EnvPathStyle = "WORKLIST_BLOB_S3_PATH_STYLE"
)

// Open picks a driver from the environment:
//
//	WORKLIST_BLOB_DRIVER     fs|s3|memory (default fs)
//	WORKLIST_BLOB_FS_ROOT    root directory for fs (default ./artifacts)
//	WORKLIST_BLOB_S3_*       bucket, region, endpoint, path style for s3
func Open(ctx context.Context) (Store, error) {
	return OpenDriver(ctx, Driver(os.Getenv(EnvDriver)))
}

// OpenDriver is Open with an explicit driver; the empty driver means fs.
func OpenDriver(ctx context.Context, driver Driver) (Store, error) {
	switch driver {
	case "", DriverFilesystem:
		return NewFilesystem(os.Getenv(EnvFSRoot))
	case DriverS3:
		bucket := os.Getenv(EnvS3Bucket)
		if bucket == "" {
			return nil, fmt.Errorf("%s required for s3 driver", EnvS3Bucket)
		}
		return NewS3(ctx, S3Config{
			Bucket:    bucket,
			Region:    os.Getenv(EnvS3Region),
			Endpoint:  os.Getenv(EnvS3Endpt),
			PathStyle: os.Getenv(EnvPathStyle) == "true",
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", driver)
	}
}

// NewFilesystem returns a store rooted at dir.
func NewFilesystem(dir string) (Store, error) { return fsstore.New(dir) }

// NewMemory returns a process-local store.
func NewMemory() Store { return memorystore.New() }

// NewS3 returns a store backed by an S3-compatible bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return s3store.New(ctx, cfg) }
