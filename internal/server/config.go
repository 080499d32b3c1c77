// Package server implements the HTTP API: session and message persistence,
// file uploads, and model provider dispatch.
package server

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"

	"github.com/avoronov/converse/internal/config"
)

// Config is the server configuration read from the environment.
type Config struct {
	Addr      string `env:"CONVERSE_ADDR" envDefault:":5000"`
	DBPath    string `env:"CONVERSE_DB_PATH"`
	UploadDir string `env:"CONVERSE_UPLOAD_DIR"`

	GeminiKey     string `env:"GEMINI_API_KEY"`
	OpenRouterKey string `env:"OPENROUTER_API_KEY"`
	ExaKey        string `env:"EXA_API_KEY"`
}

// LoadConfig reads the configuration from the environment, filling path
// defaults from the XDG data directory.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	dataDir := config.DataDir(nil)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(dataDir, "converse.db")
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = filepath.Join(dataDir, "uploads")
	}
	return cfg, nil
}
