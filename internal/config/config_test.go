package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adamscao/permitserver/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /var/lib/permitserver/data.db
credential:
  expiry_days: 7
logging:
  level: debug
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Path != "/var/lib/permitserver/data.db" {
		t.Errorf("unexpected database path %q", cfg.Database.Path)
	}
	if cfg.Credential.ExpiryDays != 7 {
		t.Errorf("expected expiry_days 7, got %d", cfg.Credential.ExpiryDays)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %q", cfg.Logging.Level)
	}
	// Untouched keys keep their defaults.
	if cfg.Credential.QRSize != 256 {
		t.Errorf("expected default qr_size, got %d", cfg.Credential.QRSize)
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `
credential:
  expiry_days: -1
`)

	if _, err := config.Load(path); err == nil {
		t.Fatal("expected a validation error for a negative expiry")
	}
}

func TestLoadWithEnv_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if cfg.Database.Path != "permitserver.db" {
		t.Errorf("expected defaults, got path %q", cfg.Database.Path)
	}
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	t.Setenv("PERMIT_DB_PATH", "/tmp/env.db")
	t.Setenv("PERMIT_QR_EXPIRY_DAYS", "0")
	t.Setenv("PERMIT_LOG_LEVEL", "warn")

	cfg, err := config.LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}

	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("expected env override, got %q", cfg.Database.Path)
	}
	if cfg.Credential.ExpiryDays != 0 {
		t.Errorf("expected expiry disabled, got %d", cfg.Credential.ExpiryDays)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected level warn, got %q", cfg.Logging.Level)
	}
}

func TestLoadWithEnv_InvalidExpiry(t *testing.T) {
	t.Setenv("PERMIT_QR_EXPIRY_DAYS", "soon")

	if _, err := config.LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a non-numeric expiry override")
	}
}

func TestExpiryWindow(t *testing.T) {
	cfg := config.Default()
	cfg.Credential.ExpiryDays = 30
	if cfg.ExpiryWindow() != 30*24*time.Hour {
		t.Errorf("unexpected window %v", cfg.ExpiryWindow())
	}

	cfg.Credential.ExpiryDays = 0
	if cfg.ExpiryWindow() != 0 {
		t.Errorf("expected a zero window, got %v", cfg.ExpiryWindow())
	}
}

func TestValidate(t *testing.T) {
	breakages := map[string]func(*config.Config){
		"empty db path":       func(c *config.Config) { c.Database.Path = "" },
		"negative expiry":     func(c *config.Config) { c.Credential.ExpiryDays = -1 },
		"empty artifact dir":  func(c *config.Config) { c.Credential.ArtifactDir = "" },
		"zero qr size":        func(c *config.Config) { c.Credential.QRSize = 0 },
		"negative open cap":   func(c *config.Config) { c.Policy.MaxOpenRequests = -1 },
		"unknown log level":   func(c *config.Config) { c.Logging.Level = "loud" },
		"unknown log format":  func(c *config.Config) { c.Logging.Format = "xml" },
	}

	for name, corrupt := range breakages {
		cfg := config.Default()
		corrupt(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected a validation error", name)
		}
	}

	if err := config.Default().Validate(); err != nil {
		t.Errorf("defaults must validate, got %v", err)
	}
}
