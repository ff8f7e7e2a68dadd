package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rikasta.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	content := `
version: v1
region: eu-west-1

analyzers:
  network: true
  security: true
  cost: false

pipeline:
  sequential: false
  workers: 8
  timeout: 2m

cost:
  expensive_threshold: 250
  inactivity_days: 45

store:
  enabled: true
  path: /tmp/rikasta.db
`
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Version != "v1" {
		t.Errorf("Version = %v, want v1", cfg.Version)
	}
	if cfg.Region != "eu-west-1" {
		t.Errorf("Region = %v, want eu-west-1", cfg.Region)
	}
	if cfg.Analyzers.Cost {
		t.Error("Analyzers.Cost = true, want false")
	}
	if cfg.Pipeline.Workers != 8 {
		t.Errorf("Workers = %v, want 8", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v, want 2m", cfg.Pipeline.Timeout)
	}
	if cfg.Cost.ExpensiveThreshold != 250 {
		t.Errorf("ExpensiveThreshold = %v, want 250", cfg.Cost.ExpensiveThreshold)
	}
	// unset fields keep their defaults
	if cfg.Cost.HighCostThreshold != 500 {
		t.Errorf("HighCostThreshold = %v, want default 500", cfg.Cost.HighCostThreshold)
	}
	if !cfg.Store.Enabled || cfg.Store.Path != "/tmp/rikasta.db" {
		t.Errorf("Store = %+v, want enabled with path", cfg.Store)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/rikasta.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"missing version", func(c *Config) { c.Version = "" }, true},
		{"missing region", func(c *Config) { c.Region = "" }, true},
		{"negative workers", func(c *Config) { c.Pipeline.Workers = -1 }, true},
		{"negative inactivity", func(c *Config) { c.Cost.InactivityDays = -1 }, true},
		{"store without path", func(c *Config) { c.Store.Enabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
