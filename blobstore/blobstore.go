// Package blobstore abstracts where snapshots live. A Store holds named,
// immutable blobs that are written and read in one piece.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Store is a named blob container.
type Store interface {
	// Put writes the contents of r under name, replacing any existing blob.
	Put(ctx context.Context, name string, r io.Reader) error

	// Get opens the blob stored under name for reading. The caller closes
	// the returned reader.
	Get(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes the blob stored under name. Deleting a blob that does
	// not exist is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs whose name starts with prefix,
	// sorted lexicographically.
	List(ctx context.Context, prefix string) ([]string, error)
}
