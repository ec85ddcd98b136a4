// Package config loads the application configuration from config.yml, the
// process environment, and an optional .env file.
package config

import (
	"fmt"

	"github.com/kbukum/medscribe/internal/database"
	"github.com/kbukum/medscribe/internal/llm/ollama"
	"github.com/kbukum/medscribe/internal/logger"
	"github.com/kbukum/medscribe/internal/server"
	"github.com/kbukum/medscribe/internal/session"
	"github.com/kbukum/medscribe/internal/storage"
	"github.com/kbukum/medscribe/internal/summary"
	"github.com/kbukum/medscribe/internal/transcription/whisper"
)

// ServiceName is used for config file discovery and log tagging.
const ServiceName = "medscribe"

// Config is the full application configuration.
type Config struct {
	Logger        logger.Config         `yaml:"logger" mapstructure:"logger"`
	Server        server.Config         `yaml:"server" mapstructure:"server"`
	Database      database.Config       `yaml:"database" mapstructure:"database"`
	Storage       storage.Config        `yaml:"storage" mapstructure:"storage"`
	Transcription TranscriptionConfig   `yaml:"transcription" mapstructure:"transcription"`
	Pipeline      session.ServiceConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Summary       summary.Config        `yaml:"summary" mapstructure:"summary"`
	Ollama        ollama.Config         `yaml:"ollama" mapstructure:"ollama"`
}

// TranscriptionConfig selects and configures the transcription backend.
type TranscriptionConfig struct {
	// Provider names the backend: "whisper" or "mock".
	Provider string         `yaml:"provider" mapstructure:"provider"`
	Whisper  whisper.Config `yaml:"whisper" mapstructure:"whisper"`
}

// ApplyDefaults fills unset fields across all sections.
func (c *Config) ApplyDefaults() {
	c.Server.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Storage.ApplyDefaults()
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = "whisper"
	}
	c.Transcription.Whisper.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.Summary.ApplyDefaults()
	c.Ollama.ApplyDefaults()
}

// Validate checks all sections for invalid values.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	switch c.Transcription.Provider {
	case "whisper", "mock":
	default:
		return fmt.Errorf("unknown transcription provider %q", c.Transcription.Provider)
	}
	return nil
}

// Load reads the configuration, applies defaults, and validates it.
func Load(opts ...LoaderOption) (*Config, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}

	cfg := &Config{}
	if err := load(ServiceName, cfg, lc); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
