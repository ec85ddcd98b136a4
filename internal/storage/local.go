package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kbukum/medscribe/internal/logger"
)

// Local stores blobs under a base directory on the local filesystem.
type Local struct {
	basePath string
	log      *logger.Logger
}

// NewLocal creates a local storage backend rooted at basePath, creating the
// directory if it does not exist.
func NewLocal(basePath string, log *logger.Logger) (*Local, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage base path %s: %w", abs, err)
	}
	return &Local{
		basePath: abs,
		log:      log.WithComponent("storage-local"),
	}, nil
}

// resolve joins path onto the base directory and rejects references that
// would escape it.
func (l *Local) resolve(path string) (string, error) {
	cleaned := filepath.Clean(path)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid storage path %q", path)
	}
	return filepath.Join(l.basePath, cleaned), nil
}

// Upload writes the blob to disk via a temp file and rename, so readers never
// see a partial write.
func (l *Local) Upload(_ context.Context, path string, r io.Reader) error {
	target, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("finalize %s: %w", path, err)
	}

	l.log.Debug("Blob stored", map[string]interface{}{"path": path, "bytes": written})
	return nil
}

// Download opens the blob for reading.
func (l *Local) Download(_ context.Context, path string) (io.ReadCloser, error) {
	target, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// Delete removes the blob. A missing blob is treated as already deleted.
func (l *Local) Delete(_ context.Context, path string) error {
	target, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Exists reports whether the blob is present on disk.
func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	target, err := l.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return true, nil
}

// FullPath returns the absolute filesystem path for the reference. The path
// is not checked for existence.
func (l *Local) FullPath(path string) string {
	full, err := l.resolve(path)
	if err != nil {
		return filepath.Join(l.basePath, filepath.Base(path))
	}
	return full
}
