// Package storage defines the object storage connection used by the file document store:
// the local filesystem for development exports and Google Cloud Storage for shared ones.
package storage

import (
	"context"
	"io"
)

// StorageConnection is an object storage connection. Buckets are directories for the local
// adapter; an empty bucket means the configured default.
type StorageConnection interface {
	// Upload writes data to bucket/objectName, replacing any existing object.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens bucket/objectName. The caller closes the reader. A missing object
	// yields an error matching ErrObjectNotFound.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object name under prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes bucket/objectName. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error

	// Type returns the adapter type ("local", "gcs").
	Type() string
	// Name returns the configured connection name.
	Name() string
	Close() error
}
