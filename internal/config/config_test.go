package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/newthinker/alphalab/internal/core"
)

func TestLoad_FromFile(t *testing.T) {
	content := []byte(`
server:
  host: "127.0.0.1"
  port: 9090

data:
  dir: "/srv/prices"

backtest:
  truncation: 0.05
  decay: 4

archive:
  enabled: true
  type: localfs
  path: "/tmp/alphalab/archive"
`)

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Data.Dir != "/srv/prices" {
		t.Errorf("expected data dir /srv/prices, got %s", cfg.Data.Dir)
	}
	if cfg.Backtest.Decay != 4 || cfg.Backtest.Truncation != 0.05 {
		t.Errorf("unexpected backtest config %+v", cfg.Backtest)
	}
	// keys missing from the file keep their defaults
	if cfg.Backtest.Delay != 1 {
		t.Errorf("expected default delay 1, got %d", cfg.Backtest.Delay)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("expected default metrics path, got %s", cfg.Metrics.Path)
	}
	if cfg.Archive.Type != "localfs" {
		t.Errorf("expected localfs, got %s", cfg.Archive.Type)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ALPHALAB_SERVER_PORT", "7070")
	t.Setenv("ALPHALAB_BACKTEST_NEUTRALIZATION", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("expected port 7070, got %d", cfg.Server.Port)
	}
	if !cfg.Backtest.Neutralization {
		t.Error("expected neutralization from environment")
	}
}

func TestLoad_ExpandsEnvReferences(t *testing.T) {
	t.Setenv("TEST_ALPHALAB_KEY", "s3cret")
	content := []byte("server:\n  api_key: \"${TEST_ALPHALAB_KEY}\"\n")
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.APIKey != "s3cret" {
		t.Errorf("expected expanded api key, got %q", cfg.Server.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Backtest.Decay != 1 || cfg.Backtest.Delay != 1 || cfg.Backtest.Truncation != 0 {
		t.Errorf("unexpected backtest defaults %+v", cfg.Backtest)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	m := cfg.Backtest.Map()
	if m["delay"] != 1 || m["neutralization"] != false {
		t.Errorf("unexpected settings map %v", m)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr *core.Error
	}{
		{"valid config", func(c *Config) {}, nil},
		{"invalid port - zero", func(c *Config) { c.Server.Port = 0 }, core.ErrConfigInvalid},
		{"invalid port - too high", func(c *Config) { c.Server.Port = 70000 }, core.ErrConfigInvalid},
		{"truncation too large", func(c *Config) { c.Backtest.Truncation = 0.5 }, core.ErrConfigInvalid},
		{"zero decay", func(c *Config) { c.Backtest.Decay = 0 }, core.ErrConfigInvalid},
		{"negative delay", func(c *Config) { c.Backtest.Delay = -1 }, core.ErrConfigInvalid},
		{"s3 without bucket", func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.Type = "s3"
		}, core.ErrConfigMissing},
		{"localfs without path", func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.Path = ""
		}, core.ErrConfigMissing},
		{"unknown archive type", func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.Type = "ftp"
		}, core.ErrConfigInvalid},
		{"disabled archive is not checked", func(c *Config) { c.Archive.Type = "ftp" }, nil},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }, core.ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
