// Package config loads and validates the pipeline configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Version   string    `yaml:"version"`
	Region    string    `yaml:"region"`
	Analyzers Analyzers `yaml:"analyzers,omitempty"`
	Pipeline  Pipeline  `yaml:"pipeline,omitempty"`
	Cost      Cost      `yaml:"cost,omitempty"`
	Store     Store     `yaml:"store,omitempty"`
}

// Analyzers toggles each analyzer independently.
type Analyzers struct {
	Network  bool `yaml:"network"`
	Security bool `yaml:"security"`
	Cost     bool `yaml:"cost"`
}

// Pipeline tunes the enrichment run.
type Pipeline struct {
	Sequential bool          `yaml:"sequential"`
	Workers    int           `yaml:"workers"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Cost carries the cost analyzer thresholds.
type Cost struct {
	ExpensiveThreshold float64 `yaml:"expensive_threshold"`
	HighCostThreshold  float64 `yaml:"high_cost_threshold"`
	InactivityDays     int     `yaml:"inactivity_days"`
	TrendAlertPercent  float64 `yaml:"trend_alert_percent"`
	UseCloudWatch      bool    `yaml:"use_cloudwatch"`
}

// Store configures the dataset store (results cache).
type Store struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns a configuration with every analyzer enabled
// and the standard thresholds.
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Region:  "us-east-1",
		Analyzers: Analyzers{
			Network:  true,
			Security: true,
			Cost:     true,
		},
		Pipeline: Pipeline{
			Workers: 4,
			Timeout: 5 * time.Minute,
		},
		Cost: Cost{
			ExpensiveThreshold: 100,
			HighCostThreshold:  500,
			InactivityDays:     30,
			TrendAlertPercent:  25,
		},
	}
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.Pipeline.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.Cost.InactivityDays < 0 {
		return fmt.Errorf("inactivity_days must not be negative")
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store.path is required when the store is enabled")
	}
	return nil
}
