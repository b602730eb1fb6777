// Package config loads runner configuration from a YAML file with
// environment overrides for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"timeframe-lab/internal/domain"
)

// Config is the DB-backed runner configuration.
type Config struct {
	Postgres struct {
		DSN      string `yaml:"dsn"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"postgres"`

	Clickhouse struct {
		DSN string `yaml:"dsn"`
	} `yaml:"clickhouse"`

	// Timeframes to maintain. Labels must exist in the timeframe
	// dimension; entries here only select which ones a run computes.
	Timeframes []string `yaml:"timeframes"`

	// Periods is the EMA period set computed per timeframe.
	Periods []int `yaml:"periods"`

	// AlphaMode selects the continuous family's intrabar smoothing
	// constant: "bar" (default) or "daily_equivalent".
	AlphaMode domain.AlphaMode `yaml:"alpha_mode"`

	Workers int `yaml:"workers"`

	// OpenBars controls whether the in-progress period is aggregated as a
	// partial-end bar.
	OpenBars bool `yaml:"open_bars"`

	Recompute struct {
		// CadenceStr bounds drift between incremental and full paths; a
		// full recompute is due whenever the last one is older than this.
		CadenceStr string        `yaml:"cadence"`
		Cadence    time.Duration `yaml:"-"`

		// DriftTolerance is the absolute EMA tolerance before a drift
		// warning is raised.
		DriftTolerance float64 `yaml:"drift_tolerance"`
	} `yaml:"recompute"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Recompute.CadenceStr != "" {
		if cfg.Recompute.Cadence, err = time.ParseDuration(cfg.Recompute.CadenceStr); err != nil {
			return nil, fmt.Errorf("parse recompute cadence: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Clickhouse.DSN = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.AlphaMode == "" {
		cfg.AlphaMode = domain.AlphaModeBar
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if len(cfg.Periods) == 0 {
		cfg.Periods = []int{10, 21, 50, 100, 200}
	}
	if cfg.Recompute.DriftTolerance <= 0 {
		cfg.Recompute.DriftTolerance = 1e-6
	}
	if cfg.Recompute.CadenceStr == "" {
		cfg.Recompute.CadenceStr = "2160h" // 90 days
	}
}

func (c *Config) validate() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("config: postgres.dsn is required")
	}
	if c.Clickhouse.DSN == "" {
		return fmt.Errorf("config: clickhouse.dsn is required")
	}
	if !c.AlphaMode.IsValid() {
		return fmt.Errorf("config: invalid alpha_mode %q", c.AlphaMode)
	}
	for _, p := range c.Periods {
		if p < 1 {
			return fmt.Errorf("config: invalid period %d", p)
		}
	}
	return nil
}
