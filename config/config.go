// Package config provides configuration management for the inspector.
// It handles loading, saving, and validating settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yllada/ovpn-mgmt/common"
	"github.com/yllada/ovpn-mgmt/mgmt"
)

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// LogLevel is the minimum level logged: debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`
	// LogToFile tees log output into the rotated log file.
	LogToFile bool `yaml:"log_to_file"`
	// ExtraNotificationPrefixes are recognized in addition to the built-in tags.
	ExtraNotificationPrefixes []string `yaml:"extra_notification_prefixes,omitempty"`
	// ArchivePath is the SQLite file used by --archive and --history.
	// Empty means the default location in the data directory.
	ArchivePath string `yaml:"archive_path,omitempty"`
	// Color controls styled output: "auto", "always", or "never".
	Color string `yaml:"color"`

	path string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "warn",
		LogToFile: false,
		Color:     common.ColorAuto,
	}
}

// Load loads the configuration from the default config file.
// If the file doesn't exist, it creates one with default values.
func Load() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from path, writing defaults there when
// the file does not exist yet.
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		cfg.path = path
		if err := cfg.Save(); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: error opening configuration: %w", common.ErrConfigLoad, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	config := *DefaultConfig()
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("%w: error parsing configuration: %w", common.ErrConfigLoad, err)
	}
	config.path = path

	config.validate()
	return &config, nil
}

// validate replaces out-of-range values with their defaults.
func (c *Config) validate() {
	if _, ok := common.ParseLogLevel(c.LogLevel); !ok {
		common.LogWarn("Unknown log level %q, using info", c.LogLevel)
		c.LogLevel = "info"
	}

	validColors := []string{common.ColorAuto, common.ColorAlways, common.ColorNever}
	if !common.StringInSlice(c.Color, validColors) {
		c.Color = common.ColorAuto
	}

	c.ExtraNotificationPrefixes = common.UniqueUpper(c.ExtraNotificationPrefixes)
}

// Level returns the configured log level.
func (c *Config) Level() common.LogLevel {
	level, _ := common.ParseLogLevel(c.LogLevel)
	return level
}

// Prefixes returns the notification prefix set to use for this run: the
// built-in tags plus any configured extras.
func (c *Config) Prefixes() mgmt.PrefixSet {
	if len(c.ExtraNotificationPrefixes) == 0 {
		return mgmt.DefaultPrefixes
	}
	return mgmt.DefaultPrefixes.With(c.ExtraNotificationPrefixes...)
}

// ResolveArchivePath returns ArchivePath, or the default archive location.
func (c *Config) ResolveArchivePath() (string, error) {
	if c.ArchivePath != "" {
		return c.ArchivePath, nil
	}
	dataDir, err := common.GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, common.ArchiveFileName), nil
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Save saves the configuration to the file it was loaded from, or to the
// default location.
func (c *Config) Save() error {
	configPath := c.path
	if configPath == "" {
		p, err := getConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("%w: error creating config directory: %w", common.ErrConfigSave, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: error serializing configuration: %w", common.ErrConfigSave, err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("%w: error saving configuration: %w", common.ErrConfigSave, err)
	}

	c.path = configPath
	return nil
}

func getConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", common.ConfigDirName, common.ConfigFileName), nil
}
