package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const configFile = "config.json"

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, configFile)
}

// DataDir returns the directory for application data (debug logs, caches).
func DataDir(cfg *Config) string {
	if cfg != nil && cfg.Options != nil && cfg.Options.DataDir != "" {
		return cfg.Options.DataDir
	}
	return filepath.Join(xdg.DataHome, appName)
}

// Load reads the configuration from the global config file. A missing file is
// not an error; it yields an empty config with defaults applied on access.
func Load() (*Config, error) {
	return LoadFromFile(GlobalConfigPath())
}

// LoadFromFile reads the configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is derived from XDG.
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.ModelBindings == nil {
		cfg.ModelBindings = make(map[string]string)
	}
	if cfg.Options == nil {
		cfg.Options = &Options{}
	}

	return cfg, nil
}

// Save writes the configuration to the global config file.
func Save(cfg *Config) error {
	return SaveToFile(cfg, GlobalConfigPath())
}

// SaveToFile writes the configuration to a specific file path.
func SaveToFile(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil { //nolint:gosec // Restrictive permissions for API keys.
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
