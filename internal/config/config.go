package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Credential CredentialConfig `yaml:"credential"`
	Policy     PolicyConfig     `yaml:"policy"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CredentialConfig contains credential issuance configuration
type CredentialConfig struct {
	// ExpiryDays is the retention window for issued credentials.
	// 0 means credentials never expire.
	ExpiryDays int `yaml:"expiry_days"`
	// ArtifactDir is where rendered QR images and permit documents are
	// written.
	ArtifactDir string `yaml:"artifact_dir"`
	// QRSize is the rendered QR image width/height in pixels.
	QRSize int `yaml:"qr_size"`
}

// PolicyConfig contains request submission policy
type PolicyConfig struct {
	// MaxOpenRequests caps the number of non-terminal requests one
	// requester may have at a time. 0 disables the cap.
	MaxOpenRequests int `yaml:"max_open_requests"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Credential.ExpiryDays < 0 {
		return fmt.Errorf("credential.expiry_days must not be negative")
	}
	if c.Credential.ArtifactDir == "" {
		return fmt.Errorf("credential.artifact_dir is required")
	}
	if c.Credential.QRSize <= 0 {
		return fmt.Errorf("credential.qr_size must be positive")
	}

	if c.Policy.MaxOpenRequests < 0 {
		return fmt.Errorf("policy.max_open_requests must not be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be 'json' or 'text'")
	}

	return nil
}

// ExpiryWindow returns the credential retention window as a duration.
// A zero duration means credentials never expire.
func (c *Config) ExpiryWindow() time.Duration {
	return time.Duration(c.Credential.ExpiryDays) * 24 * time.Hour
}

// Default returns a configuration with development-friendly defaults.
func Default() *Config {
	return &Config{
		Database:   DatabaseConfig{Path: "permitserver.db"},
		Credential: CredentialConfig{ExpiryDays: 30, ArtifactDir: "artifacts", QRSize: 256},
		Policy:     PolicyConfig{MaxOpenRequests: 3},
		Logging:    LoggingConfig{Level: "info", Format: "text"},
	}
}
