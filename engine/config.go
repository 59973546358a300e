package engine

import (
	"errors"
	"fmt"
	"net/url"
)

// DefaultAPIBase is the product's own origin, used when no override is
// given.
const DefaultAPIBase = "https://galuli.io"

// ErrNoKey aborts initialization: without a tenant credential the engine
// must produce no side effects at all.
var ErrNoKey = errors.New("engine: no tenant key provided")

// Config is the resolved engine configuration.
type Config struct {
	// Key is the tenant credential. Required.
	Key string `yaml:"key"`
	// APIBase overrides the backend base URL.
	APIBase string `yaml:"api"`
	// Debug enables verbose diagnostic logging.
	Debug bool `yaml:"debug"`
	// AutoSchema controls structured-data injection. Default on.
	AutoSchema bool `yaml:"auto_schema"`
	// AutoPush controls backend transmission. Default on; off means
	// analytics-only mode.
	AutoPush bool `yaml:"auto_push"`
}

// ParseScriptURL resolves configuration from a snippet script URL of the
// form .../snippet.js?key=K&api=...&debug=1&schema=0&push=0. Pure: no side
// effects beyond the returned configuration.
func ParseScriptURL(src string) (Config, error) {
	u, err := url.Parse(src)
	if err != nil {
		return Config{}, fmt.Errorf("engine: parse script url: %w", err)
	}
	q := u.Query()

	cfg := Config{
		Key:        q.Get("key"),
		APIBase:    DefaultAPIBase,
		Debug:      q.Get("debug") == "1",
		AutoSchema: q.Get("schema") != "0",
		AutoPush:   q.Get("push") != "0",
	}
	if cfg.Key == "" {
		return Config{}, ErrNoKey
	}
	if api := q.Get("api"); api != "" {
		cfg.APIBase = api
	}
	return cfg, nil
}

// applyDefaults fills zero values for configs built directly (YAML, env).
func (c *Config) applyDefaults() {
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
}
