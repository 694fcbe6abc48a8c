package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment
// variable overrides. A missing file falls back to defaults so the CLI can
// run against a fresh checkout.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = Default()
	}

	// Apply environment variable overrides
	if dbPath := os.Getenv("PERMIT_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if artifactDir := os.Getenv("PERMIT_ARTIFACT_DIR"); artifactDir != "" {
		cfg.Credential.ArtifactDir = artifactDir
	}

	if expiryDays := os.Getenv("PERMIT_QR_EXPIRY_DAYS"); expiryDays != "" {
		days, err := strconv.Atoi(expiryDays)
		if err != nil {
			return nil, fmt.Errorf("PERMIT_QR_EXPIRY_DAYS is invalid: %w", err)
		}
		cfg.Credential.ExpiryDays = days
	}

	if level := os.Getenv("PERMIT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	// Validate again after env overrides
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration after env overrides: %w", err)
	}

	return cfg, nil
}
