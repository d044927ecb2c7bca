// Package config handles configuration management for janus: the viper-backed
// application settings file and the WatchConfig model persisted by the store.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application settings.
type Config struct {
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`
	Watcher WatcherConfig `mapstructure:"watcher" yaml:"watcher"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// StoreConfig holds configuration-store settings.
type StoreConfig struct {
	// Path of the binary store file. Empty means the default
	// OS-profile-relative location.
	Path string `mapstructure:"path" yaml:"path"`
}

// JournalConfig holds sync-history journal settings.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// WatcherConfig holds defaults applied to new watches.
type WatcherConfig struct {
	DefaultDebounceMS      int      `mapstructure:"default_debounce_ms" yaml:"default_debounce_ms"`
	DefaultExcludePatterns []string `mapstructure:"default_exclude_patterns" yaml:"default_exclude_patterns"`
	EventBufferSize        int      `mapstructure:"event_buffer_size" yaml:"event_buffer_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.janus")
		v.AddConfigPath("/etc/janus")
	}

	v.SetEnvPrefix("JANUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks application settings for basic sanity.
func Validate(cfg *Config) error {
	switch strings.ToLower(cfg.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "":
	default:
		return fmt.Errorf("invalid logging level %q", cfg.Logging.Level)
	}
	if cfg.Watcher.DefaultDebounceMS < 0 {
		return fmt.Errorf("watcher.default_debounce_ms must not be negative")
	}
	if cfg.Watcher.EventBufferSize <= 0 {
		return fmt.Errorf("watcher.event_buffer_size must be positive")
	}
	return nil
}

// GetConfigDir returns the janus configuration directory, creating it if
// needed.
func GetConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", fmt.Errorf("failed to resolve config directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}

	dir := filepath.Join(base, "janus")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}
