// Package storage abstracts blob storage for session audio. The local
// filesystem backend is the only one wired today; the interface keeps the
// session layer ignorant of where bytes live.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/kbukum/medscribe/internal/logger"
)

// Storage stores and retrieves audio blobs by a relative reference path.
type Storage interface {
	// Upload writes the blob at path, creating parent directories as needed.
	Upload(ctx context.Context, path string, r io.Reader) error
	// Download opens the blob for reading. The caller closes it.
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, path string) error
	// Exists reports whether the blob is present.
	Exists(ctx context.Context, path string) (bool, error)
	// FullPath resolves the reference to an absolute filesystem path for
	// consumers that read files directly, such as the transcription engine.
	FullPath(path string) string
}

// Config selects and configures the storage backend.
type Config struct {
	// Provider names the backend. Only "local" is supported.
	Provider string `yaml:"provider" mapstructure:"provider"`

	// BasePath is the root directory for the local backend.
	BasePath string `yaml:"base_path" mapstructure:"base_path"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "local"
	}
	if c.BasePath == "" {
		c.BasePath = "data/audio"
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Provider != "local" {
		return fmt.Errorf("unsupported storage provider %q", c.Provider)
	}
	if c.BasePath == "" {
		return fmt.Errorf("storage base_path is required")
	}
	return nil
}

// New builds the configured storage backend.
func New(cfg Config, log *logger.Logger) (Storage, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewLocal(cfg.BasePath, log)
}
