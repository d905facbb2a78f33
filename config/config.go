// Package config provides application configuration for the dashboard
// daemon. Configuration files may be JSON or YAML; connection credentials
// may additionally be supplied through environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skeeeon/nats-dashboard-sub001/errors"
)

// Config represents the complete application configuration.
type Config struct {
	LogLevel string     `json:"log_level" yaml:"log_level"` // debug, info, warn, error
	HTTP     HTTPConfig `json:"http" yaml:"http"`
	NATS     NATSConfig `json:"nats" yaml:"nats"`
	Mux      MuxConfig  `json:"mux" yaml:"mux"`
}

// HTTPConfig configures the diagnostics HTTP server.
type HTTPConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g. ":8222"
}

// NATSConfig configures the transport connection.
type NATSConfig struct {
	URL            string        `json:"url" yaml:"url"`
	Name           string        `json:"name,omitempty" yaml:"name,omitempty"`
	Username       string        `json:"username,omitempty" yaml:"username,omitempty"`
	Password       string        `json:"password,omitempty" yaml:"password,omitempty"`
	Token          string        `json:"token,omitempty" yaml:"token,omitempty"`
	MaxReconnects  int           `json:"max_reconnects" yaml:"max_reconnects"` // -1 for infinite
	ReconnectWait  time.Duration `json:"reconnect_wait" yaml:"reconnect_wait"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
}

// MuxConfig configures the subscription multiplexer core.
type MuxConfig struct {
	MaxQueueSize   int     `json:"max_queue_size" yaml:"max_queue_size"`
	DrainBudget    int     `json:"drain_budget" yaml:"drain_budget"`
	OverflowPolicy string  `json:"overflow_policy" yaml:"overflow_policy"` // drop_oldest, drop_newest
	MemoryBudget   int64   `json:"memory_budget_bytes" yaml:"memory_budget_bytes"`
	MemoryWarn     float64 `json:"memory_warn_percent" yaml:"memory_warn_percent"`         // 0-100
	MemoryCritical float64 `json:"memory_critical_percent" yaml:"memory_critical_percent"` // 0-100
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Addr: ":8222",
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			Name:           "nats-dashboard",
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			ConnectTimeout: 5 * time.Second,
		},
		Mux: MuxConfig{
			MaxQueueSize:   1000,
			DrainBudget:    256,
			OverflowPolicy: "drop_oldest",
			MemoryBudget:   64 << 20, // 64 MiB
			MemoryWarn:     70,
			MemoryCritical: 90,
		},
	}
}

// Load reads configuration from path, layered over defaults, then applies
// environment overrides and validates the result. The file format is
// selected by extension: .yaml/.yml for YAML, anything else is JSON.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "read config file")
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, cfg)
		default:
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "parse config file")
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides connection settings from the environment so
// credentials can stay out of config files.
func (c *Config) applyEnv() {
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("NATS_USERNAME"); v != "" {
		c.NATS.Username = v
	}
	if v := os.Getenv("NATS_PASSWORD"); v != "" {
		c.NATS.Password = v
	}
	if v := os.Getenv("NATS_TOKEN"); v != "" {
		c.NATS.Token = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "nats.url")
	}
	if c.HTTP.Addr == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "http.addr")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown log level %q: %w", c.LogLevel, errors.ErrInvalidConfig),
			"config", "Validate", "log_level")
	}

	if c.Mux.MaxQueueSize <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("max_queue_size must be positive, got %d: %w", c.Mux.MaxQueueSize, errors.ErrInvalidConfig),
			"config", "Validate", "mux.max_queue_size")
	}
	if c.Mux.DrainBudget <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("drain_budget must be positive, got %d: %w", c.Mux.DrainBudget, errors.ErrInvalidConfig),
			"config", "Validate", "mux.drain_budget")
	}

	switch c.Mux.OverflowPolicy {
	case "drop_oldest", "drop_newest":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown overflow policy %q: %w", c.Mux.OverflowPolicy, errors.ErrInvalidConfig),
			"config", "Validate", "mux.overflow_policy")
	}

	if c.Mux.MemoryBudget <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("memory_budget_bytes must be positive: %w", errors.ErrInvalidConfig),
			"config", "Validate", "mux.memory_budget_bytes")
	}
	if c.Mux.MemoryWarn <= 0 || c.Mux.MemoryWarn > 100 ||
		c.Mux.MemoryCritical <= 0 || c.Mux.MemoryCritical > 100 ||
		c.Mux.MemoryWarn >= c.Mux.MemoryCritical {
		return errors.WrapInvalid(
			fmt.Errorf("memory thresholds must satisfy 0 < warn < critical <= 100: %w", errors.ErrInvalidConfig),
			"config", "Validate", "mux memory thresholds")
	}

	return nil
}
