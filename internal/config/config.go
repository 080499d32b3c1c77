// Package config provides configuration management for the converse CLI.
package config

import (
	"fmt"
	"os"

	"github.com/tidwall/sjson"
)

const appName = "converse"

// Default session parameters applied when the user has not chosen otherwise.
const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = 1.0
	DefaultServerURL   = "http://localhost:5000/api"
)

// ProviderKeys holds API keys for the built-in providers.
type ProviderKeys struct {
	Gemini     string `json:"gemini,omitempty"`
	OpenRouter string `json:"openrouter,omitempty"`
	Exa        string `json:"exa,omitempty"`
}

// Options holds optional configuration settings.
type Options struct {
	DataDir string `json:"data_directory,omitempty"`
	Debug   bool   `json:"debug,omitempty"`
}

// Config is the top-level configuration structure.
type Config struct {
	ServerURL string `json:"server_url,omitempty"`
	Model     string `json:"model,omitempty"`
	// Temperature is a pointer so an explicit 0 survives the JSON round trip.
	Temperature *float64     `json:"temperature,omitempty"`
	Keys        ProviderKeys `json:"keys,omitempty"`
	// ModelBindings maps a custom model name to the provider that serves it
	// (gemini, openrouter, exa, or a custom provider ID). Consulted only for
	// models not recognized as built-in identifiers.
	ModelBindings map[string]string `json:"model_bindings,omitempty"`
	Options       *Options          `json:"options,omitempty"`
}

// NewConfig creates a new Config with initialized maps.
func NewConfig() *Config {
	return &Config{
		ModelBindings: make(map[string]string),
		Options:       &Options{},
	}
}

// EffectiveModel returns the configured default model.
func (c *Config) EffectiveModel() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel
}

// EffectiveTemperature returns the configured default temperature.
func (c *Config) EffectiveTemperature() float64 {
	if c.Temperature != nil {
		return *c.Temperature
	}
	return DefaultTemperature
}

// EffectiveServerURL returns the configured boundary base URL.
func (c *Config) EffectiveServerURL() string {
	if c.ServerURL != "" {
		return c.ServerURL
	}
	return DefaultServerURL
}

// Set updates a single key in the config file using a JSON path expression
// and persists the result. The in-memory Config is not modified; callers
// should reload after a successful Set.
func Set(key string, value any) error {
	path := GlobalConfigPath()

	data, err := os.ReadFile(path) //nolint:gosec // Path is derived from XDG.
	if err != nil {
		if os.IsNotExist(err) {
			data = []byte("{}")
		} else {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	newData, err := sjson.Set(string(data), key, value)
	if err != nil {
		return fmt.Errorf("setting config key %q: %w", key, err)
	}

	if err := os.WriteFile(path, []byte(newData), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
