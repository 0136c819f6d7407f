// Package config loads the engine's yaml configuration: storage path,
// connector definitions, confidence thresholds, cache and batch tuning.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/strata/internal/connector"
	"github.com/roach88/strata/internal/drift"
	"github.com/roach88/strata/internal/mapping"
	"github.com/roach88/strata/internal/stream"
)

// Thresholds are the drift router's confidence cut points as configured.
type Thresholds struct {
	AutoApply float64 `yaml:"auto_apply"`
	Review    float64 `yaml:"review"`
}

// Config is the full engine configuration.
type Config struct {
	DBPath          string             `yaml:"db_path"`
	CacheTTLSeconds int                `yaml:"cache_ttl_seconds"`
	BatchSize       int                `yaml:"batch_size"`
	StreamCap       int                `yaml:"stream_cap"`
	Thresholds      Thresholds         `yaml:"thresholds"`
	Connectors      []connector.Config `yaml:"connectors"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		DBPath:          "strata.db",
		CacheTTLSeconds: int(mapping.DefaultTTL / time.Second),
		BatchSize:       stream.DefaultBatchSize,
		StreamCap:       stream.DefaultMaxStreamLength,
		Thresholds: Thresholds{
			AutoApply: drift.DefaultThresholds.AutoApply,
			Review:    drift.DefaultThresholds.Review,
		},
	}
}

// Load reads and validates a yaml config file. Absent fields keep their
// defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.CacheTTLSeconds < 0 || c.BatchSize < 0 || c.StreamCap < 0 {
		return fmt.Errorf("cache_ttl_seconds, batch_size and stream_cap must not be negative")
	}
	t := c.DriftThresholds()
	if t.Review < 0 || t.AutoApply > 1 || t.Review > t.AutoApply {
		return fmt.Errorf("thresholds: need 0 <= review <= auto_apply <= 1, got review=%v auto_apply=%v",
			t.Review, t.AutoApply)
	}
	seen := make(map[string]bool, len(c.Connectors))
	for _, cc := range c.Connectors {
		if cc.ID == "" {
			return fmt.Errorf("connector without id")
		}
		if seen[cc.ID] {
			return fmt.Errorf("duplicate connector id %q", cc.ID)
		}
		seen[cc.ID] = true
	}
	return nil
}

// CacheTTL returns the mapping cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	if c.CacheTTLSeconds <= 0 {
		return mapping.DefaultTTL
	}
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// DriftThresholds returns the configured confidence cut points, falling
// back to the defaults when unset.
func (c *Config) DriftThresholds() drift.Thresholds {
	t := drift.Thresholds{AutoApply: c.Thresholds.AutoApply, Review: c.Thresholds.Review}
	if t.AutoApply == 0 && t.Review == 0 {
		return drift.DefaultThresholds
	}
	return t
}

// BuildConnectors constructs every configured adapter.
func (c *Config) BuildConnectors() ([]connector.Connector, error) {
	out := make([]connector.Connector, 0, len(c.Connectors))
	for _, cc := range c.Connectors {
		conn, err := connector.New(cc)
		if err != nil {
			return nil, err
		}
		out = append(out, conn)
	}
	return out, nil
}
