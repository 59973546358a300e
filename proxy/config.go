// Package proxy serves an origin site through an instrumenting reverse
// proxy: HTML responses pass through the full engine pass before reaching
// the client, so discovery links, schema, and pushes happen at the edge
// without touching the origin.
package proxy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/galuli/snippet/engine"
)

// Config is the top-level proxy configuration.
type Config struct {
	// Listen is the address to bind. Default ":8432".
	Listen string `yaml:"listen"`
	// Upstream is the origin base URL to proxy.
	Upstream string `yaml:"upstream"`
	// HistoryPath enables fingerprint dedupe when set (SQLite file path).
	HistoryPath string        `yaml:"history_path"`
	Snippet     SnippetConfig `yaml:"snippet"`
}

// SnippetConfig mirrors the script-URL parameters in file form. The
// disable_* spelling keeps the zero value meaning "on", matching the
// script-URL defaults.
type SnippetConfig struct {
	Key           string `yaml:"key"`
	API           string `yaml:"api"`
	Debug         bool   `yaml:"debug"`
	DisableSchema bool   `yaml:"disable_schema"`
	DisablePush   bool   `yaml:"disable_push"`
}

// Engine converts the file form into an engine configuration.
func (s SnippetConfig) Engine() engine.Config {
	cfg := engine.Config{
		Key:        s.Key,
		APIBase:    s.API,
		Debug:      s.Debug,
		AutoSchema: !s.DisableSchema,
		AutoPush:   !s.DisablePush,
	}
	if cfg.APIBase == "" {
		cfg.APIBase = engine.DefaultAPIBase
	}
	return cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("proxy: parse config: %w", err)
	}
	cfg.applyDefaults()
	if cfg.Upstream == "" {
		return nil, fmt.Errorf("proxy: upstream is required")
	}
	if cfg.Snippet.Key == "" {
		return nil, engine.ErrNoKey
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8432"
	}
}
