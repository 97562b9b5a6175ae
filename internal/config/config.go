package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk configuration for wake.
type Config struct {
	DeviceID   string           `toml:"device_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Platform   PlatformConfig   `toml:"platform"`
	Database   DatabaseConfig   `toml:"database"`
	Vaults     []VaultConfig    `toml:"vaults"`
	Encryption EncryptionConfig `toml:"encryption"`
	Alarms     AlarmsConfig     `toml:"alarms"`
	Boot       BootConfig       `toml:"boot"`
}

// PlatformConfig selects the OS scheduler variant. Type decides which
// fields apply.
type PlatformConfig struct {
	Type     string `toml:"type"`                // "android", "ios" or "memory"
	StateDir string `toml:"state_dir,omitempty"` // where simulated OS state lives; empty keeps it in memory
	APILevel int    `toml:"api_level,omitempty"` // android only
}

// DatabaseConfig selects the alarm store.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // sqlite only
}

// VaultConfig describes a backup destination. Type decides which fields apply.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "filesystem" or "s3"
	Name string `toml:"name"`

	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds the age key pair used to seal backups.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// AlarmsConfig tunes alarm behaviour.
type AlarmsConfig struct {
	SnoozeMinutes     int    `toml:"snooze_minutes"`
	RouteRetries      int    `toml:"route_retries"`
	DefaultDifficulty string `toml:"default_difficulty"`
}

// Snooze returns the snooze interval, defaulting to five minutes.
func (c AlarmsConfig) Snooze() time.Duration {
	if c.SnoozeMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.SnoozeMinutes) * time.Minute
}

// BootConfig controls start-at-login registration.
type BootConfig struct {
	Autostart bool `toml:"autostart"`
}

// NewConfig returns a Config with defaults rooted at baseDir.
func NewConfig(deviceID, baseDir string) *Config {
	return &Config{
		DeviceID: deviceID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Platform: PlatformConfig{
			Type:     "android",
			StateDir: filepath.Join(baseDir, "os"),
			APILevel: 34,
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Vaults: []VaultConfig{
			{Type: "filesystem", Name: "local", FSVaultRoot: filepath.Join(baseDir, "vault")},
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "wake.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "wake.key"),
		},
		Alarms: AlarmsConfig{
			SnoozeMinutes:     5,
			RouteRetries:      5,
			DefaultDifficulty: "medium",
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from r.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes cfg to w.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := (&Manager{}).Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Save overwrites the config at path, going through a temp file so a
// failed write leaves the old config intact.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".wake-config-*")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpPath := tmp.Name()

	if err := (&Manager{}).Write(tmp, cfg); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := Save(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
