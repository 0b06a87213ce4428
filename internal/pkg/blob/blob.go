// Package blob keeps the raw bytes of uploaded files.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	storageopts "github.com/kart-io/moktashif/pkg/options/storage"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("blob not found")

// Store is a flat key/value store for upload payloads.
type Store interface {
	// Put stores the content of r under key, replacing any previous value.
	Put(ctx context.Context, key string, r io.Reader) error
	// Get opens the content stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Name returns the backend name.
	Name() string
}

// New creates the Store selected by opts.
func New(ctx context.Context, opts *storageopts.Options) (Store, error) {
	switch opts.Backend {
	case storageopts.BackendLocal:
		return NewLocal(opts.Dir)
	case storageopts.BackendS3:
		return NewS3(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", opts.Backend)
	}
}

// ValidateKey rejects keys that could escape the store root.
func ValidateKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}

var _ Store = (*Local)(nil)

// Local stores blobs as files in one directory.
type Local struct {
	root string
}

// NewLocal creates the directory when missing.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Local{root: root}, nil
}

// Name returns the backend name.
func (l *Local) Name() string { return storageopts.BackendLocal }

// Put writes to a temporary file and renames it into place.
func (l *Local) Put(_ context.Context, key string, r io.Reader) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(l.root, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close blob: %w", err)
	}
	return os.Rename(tmp.Name(), filepath.Join(l.root, key))
}

// Get opens the file stored under key.
func (l *Local) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(l.root, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return f, err
}
