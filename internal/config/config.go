// Package config loads the drive-go configuration from a TOML file with
// environment-variable overrides. Precedence: CLI flags > environment >
// config file > defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variable names for overrides.
const (
	EnvConfig         = "DRIVEGO_CONFIG"
	EnvDestination    = "DRIVEGO_DESTINATION"
	EnvTokenFile      = "DRIVEGO_TOKEN_FILE"
	EnvCredentialsDir = "DRIVEGO_CREDENTIALS_DIR"
	EnvLedgerPath     = "DRIVEGO_LEDGER_PATH"
	EnvLogLevel       = "DRIVEGO_LOG_LEVEL"
)

// Default values — the base layer of the override chain.
const (
	defaultConfigName       = "drive-go.toml"
	defaultTokenFile        = "token.json"
	defaultCredentialsDir   = "accounts"
	defaultLedgerName       = "uploads.db"
	defaultChunkSizeMiB     = 100
	defaultProgressInterval = 3
	defaultLogLevel         = "info"
)

// Config is the on-disk configuration shape.
type Config struct {
	// Destination is the default remote parent folder ID, optionally
	// carrying a credential-mode prefix ("sa:", "tp:", "mtp:").
	Destination string `toml:"destination"`

	// SharedDrive marks the destination as a fully shared drive.
	SharedDrive bool `toml:"shared_drive"`

	// UseServiceAccounts selects the pooled-identity mode for unprefixed
	// destinations.
	UseServiceAccounts bool `toml:"use_service_accounts"`

	// TokenFile is the path of the saved OAuth token (single-token modes).
	TokenFile string `toml:"token_file"`

	// CredentialsDir holds the service-account *.json key files.
	CredentialsDir string `toml:"credentials_dir"`

	// LedgerPath is the upload ledger database path.
	LedgerPath string `toml:"ledger_path"`

	// ChunkSizeMiB is the resumable upload chunk size in MiB.
	ChunkSizeMiB int `toml:"chunk_size_mib"`

	// ProgressIntervalSec is the progress reporting interval in seconds.
	ProgressIntervalSec int `toml:"progress_interval_sec"`

	// ExcludedExtensions are filename suffixes never transferred.
	ExcludedExtensions []string `toml:"excluded_extensions"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns a Config populated with defaults. Used as the
// starting point for TOML decoding so unset fields retain defaults.
func DefaultConfig() *Config {
	return &Config{
		TokenFile:           defaultTokenFile,
		CredentialsDir:      defaultCredentialsDir,
		LedgerPath:          defaultLedgerName,
		ChunkSizeMiB:        defaultChunkSizeMiB,
		ProgressIntervalSec: defaultProgressInterval,
		LogLevel:            defaultLogLevel,
	}
}

// DefaultPath returns the default config file location,
// $XDG_CONFIG_HOME/drive-go/drive-go.toml or the home-dir equivalent.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "drive-go", defaultConfigName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return defaultConfigName
	}

	return filepath.Join(home, ".config", "drive-go", defaultConfigName)
}

// Load reads the config file at path (or the default location when empty),
// applies environment overrides, and validates the result. A missing config
// file is not an error — defaults plus environment apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	if path == "" {
		path = DefaultPath()
	}

	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: decoding %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides layers environment variables over the file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvDestination); v != "" {
		cfg.Destination = v
	}

	if v := os.Getenv(EnvTokenFile); v != "" {
		cfg.TokenFile = v
	}

	if v := os.Getenv(EnvCredentialsDir); v != "" {
		cfg.CredentialsDir = v
	}

	if v := os.Getenv(EnvLedgerPath); v != "" {
		cfg.LedgerPath = v
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
}

// validate rejects values that would misbehave deep inside the engine.
func (c *Config) validate() error {
	if c.ChunkSizeMiB <= 0 {
		return fmt.Errorf("config: chunk_size_mib must be positive, got %d", c.ChunkSizeMiB)
	}

	if c.ProgressIntervalSec <= 0 {
		return fmt.Errorf("config: progress_interval_sec must be positive, got %d", c.ProgressIntervalSec)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}

	return nil
}

// ChunkSize returns the chunk size in bytes.
func (c *Config) ChunkSize() int64 {
	return int64(c.ChunkSizeMiB) * 1024 * 1024
}

// ProgressInterval returns the reporting interval as a duration.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.ProgressIntervalSec) * time.Second
}
