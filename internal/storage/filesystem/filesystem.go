// Package filesystem implements storage.Backend on a local directory tree.
// Content is written to a temp file first and renamed into its sharded
// location, so a partially written blob is never visible under its key.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/rs/zerolog"

	"github.com/prn-tf/vaultbox/internal/storage"
)

// Backend stores blobs as files under a base directory.
type Backend struct {
	paths   storage.PathConfig
	tempDir string
	logger  zerolog.Logger
}

// NewBackend creates the data and temp directories and returns a Backend.
// An empty tempDir places temp files in dataDir.
func NewBackend(dataDir, tempDir string, logger zerolog.Logger) (*Backend, error) {
	if tempDir == "" {
		tempDir = dataDir
	}

	for _, dir := range []string{dataDir, tempDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}

	logger.Info().
		Str("data_dir", dataDir).
		Str("temp_dir", tempDir).
		Msg("filesystem storage initialized")

	return &Backend{
		paths:   storage.DefaultPathConfig(dataDir),
		tempDir: tempDir,
		logger:  logger.With().Str("storage", "filesystem").Logger(),
	}, nil
}

// Put streams reader into a temp file and moves it to the key's location.
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader) (int64, error) {
	if err := storage.ValidateKey(key); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(b.tempDir, "upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	written, err := io.Copy(tmp, &contextReader{ctx: ctx, r: reader})
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write blob: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close blob: %w", err)
	}

	if err := os.MkdirAll(storage.GetShardPath(b.paths, key), 0o750); err != nil {
		return 0, fmt.Errorf("failed to create shard directory: %w", err)
	}

	if err := os.Rename(tmpName, storage.ComputePath(b.paths, key)); err != nil {
		return 0, fmt.Errorf("failed to move blob into place: %w", err)
	}
	committed = true

	b.logger.Debug().Str("key", key).Int64("size", written).Msg("blob stored")

	return written, nil
}

// Get opens the file stored under key.
func (b *Backend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}

	f, err := os.Open(storage.ComputePath(b.paths, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}

	return f, nil
}

// Delete removes the file stored under key.
func (b *Backend) Delete(_ context.Context, key string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	err := os.Remove(storage.ComputePath(b.paths, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	return nil
}

// Exists checks whether a file is stored under key.
func (b *Backend) Exists(_ context.Context, key string) (bool, error) {
	if err := storage.ValidateKey(key); err != nil {
		return false, err
	}

	_, err := os.Stat(storage.ComputePath(b.paths, key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat blob: %w", err)
}

// contextReader stops a copy once the context is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ storage.Backend = (*Backend)(nil)
