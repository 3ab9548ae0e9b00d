// Package config loads the client configuration from an optional YAML file
// and REPERTO_-prefixed environment variables using Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete client configuration.
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Storage StorageConfig `mapstructure:"storage"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// BackendConfig configures the Reperto backend HTTP client.
type BackendConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      int           `mapstructure:"rate_limit"` // requests per second
	BreakerEnabled bool          `mapstructure:"breaker_enabled"`
}

// StorageConfig configures the local persistent key-value store.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig configures the in-memory analysis cache.
type CacheConfig struct {
	Size int `mapstructure:"size"`
}

// LoggingConfig configures logrus output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// Manager loads and holds the configuration.
type Manager struct {
	config *Config
}

// NewManager creates a configuration manager, loading from file and
// environment immediately.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("$HOME/.reperto")

	viper.SetEnvPrefix("REPERTO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars suffice.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	viper.SetDefault("backend.base_url", "http://localhost:8000")
	viper.SetDefault("backend.timeout", "8s")
	viper.SetDefault("backend.rate_limit", 10)
	viper.SetDefault("backend.breaker_enabled", true)

	viper.SetDefault("storage.path", "$HOME/.reperto/reperto.db")

	viper.SetDefault("cache.size", 32)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// GetBackendConfig returns the backend client configuration.
func (m *Manager) GetBackendConfig() *BackendConfig {
	return &m.config.Backend
}

// GetStorageConfig returns the local storage configuration.
func (m *Manager) GetStorageConfig() *StorageConfig {
	return &m.config.Storage
}

// Validate validates the loaded configuration.
func (m *Manager) Validate() error {
	cfg := m.config

	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend base URL is required")
	}
	if !strings.HasPrefix(cfg.Backend.BaseURL, "http://") && !strings.HasPrefix(cfg.Backend.BaseURL, "https://") {
		return fmt.Errorf("invalid backend base URL: %s", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}
	if cfg.Backend.RateLimit <= 0 {
		return fmt.Errorf("backend rate limit must be positive")
	}
	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	if cfg.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	return nil
}
