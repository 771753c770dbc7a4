// Package storage defines interfaces for blob storage backends.
// The storage layer is responsible for persisting and retrieving raw file
// content. Metadata and ownership live in the repository layer; the backend
// only knows opaque keys.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	// ErrBlobNotFound indicates no content is stored under the key.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidKey indicates the key cannot be mapped to a storage location.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Backend defines the interface for storage backends.
// Implementations include the local filesystem and S3-compatible services.
type Backend interface {
	// Put streams content from reader and stores it under key.
	// Returns the number of bytes written.
	Put(ctx context.Context, key string, reader io.Reader) (int64, error)

	// Get returns a ReadCloser for the content under key.
	// Returns ErrBlobNotFound if nothing is stored there. Caller must close.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks whether content is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// ValidateKey rejects keys that are empty or could escape the storage root.
func ValidateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
