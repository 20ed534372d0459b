// Package storage abstracts the object store holding sandbox image templates.
package storage

import (
	"context"
	"io"
)

// ObjectStorage is the minimal object-store surface the judge needs:
// read-only access to published sandbox image archives.
type ObjectStorage interface {
	// GetObject opens a reader for an object. Caller must close it.
	GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error)

	// StatObject returns object metadata, used to detect missing images
	// before any download starts.
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)
}

// ObjectStat contains object metadata.
type ObjectStat struct {
	SizeBytes   int64
	ETag        string
	ContentType string
}
