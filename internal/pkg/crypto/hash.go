// Package crypto provides hashing and token utilities for Vaultbox.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
)

// ErrSizeLimitExceeded is returned by a HashReader that read past its limit.
var ErrSizeLimitExceeded = errors.New("size limit exceeded")

// HashReader wraps an io.Reader and computes a SHA-256 digest and byte
// count while reading, so content can be checksummed in a single pass.
type HashReader struct {
	reader   io.Reader
	sha256   hash.Hash
	size     int64
	limit    int64
	finished bool
}

// NewHashReader creates a new HashReader with no size limit.
func NewHashReader(r io.Reader) *HashReader {
	return NewLimitedHashReader(r, 0)
}

// NewLimitedHashReader creates a HashReader that fails with
// ErrSizeLimitExceeded once more than limit bytes have been read.
// A limit of zero or less disables the check.
func NewLimitedHashReader(r io.Reader, limit int64) *HashReader {
	return &HashReader{
		reader: r,
		sha256: sha256.New(),
		limit:  limit,
	}
}

// Read implements io.Reader and updates the digest.
func (h *HashReader) Read(p []byte) (n int, err error) {
	n, err = h.reader.Read(p)
	if n > 0 {
		h.sha256.Write(p[:n])
		h.size += int64(n)
	}
	if h.limit > 0 && h.size > h.limit {
		return n, ErrSizeLimitExceeded
	}
	if err == io.EOF {
		h.finished = true
	}
	return n, err
}

// SHA256 returns the hex-encoded SHA-256 hash.
// Should only be called after reading is complete.
func (h *HashReader) SHA256() string {
	return hex.EncodeToString(h.sha256.Sum(nil))
}

// Size returns the total number of bytes read.
func (h *HashReader) Size() int64 {
	return h.size
}

// IsFinished returns true if EOF was reached.
func (h *HashReader) IsFinished() bool {
	return h.finished
}

// ComputeSHA256 computes the SHA-256 hash of a byte slice.
func ComputeSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
