// Package blobstore stores whole, immutable-per-write blobs (index snapshots) on a local
// directory or an S3-compatible bucket.
package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies `errors.Is(err, ErrNotFound)`.
var ErrNotFound = os.ErrNotExist

// Store reads and replaces named blobs. Put replaces the blob as a whole; readers
// never observe a partially written blob.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
	// Location describes where blobs live, for logs.
	Location() string
}
