/*
Package config handles loading and saving search-tracker configuration.

Configuration is stored in ~/.search-tracker.json. Paths ending in .yaml or
.yml are read and written as YAML instead. Environment variables prefixed
with SEARCH_TRACKER_ override file values; .env and .env.local in the
working directory are loaded first.

Schema:
  {
    "collector": {
      "endpoint": "https://search.example.com",
      "collection": "products",
      "accountId": "acme",
      "timeoutSeconds": 10
    },
    "storage": {
      "backend": "sqlite",
      "path": "~/.search-tracker/events.db",
      "key": "search-tracker-events",
      "redis": {"address": "localhost:6379"}
    },
    "tracking": {
      "retentionDays": 30,
      "maxInFlight": 0,
      "flushIntervalSeconds": 60,
      "purgeIntervalSeconds": 3600
    },
    "logging": {"level": "info"},
    "metrics": {"address": ":9464"}
  }
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/khanglvm/search-tracker/internal/logger"
	"github.com/khanglvm/search-tracker/internal/storage"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

const (
	defaultStorageKey           = "search-tracker-events"
	defaultTimeoutSeconds       = 10
	defaultRetentionDays        = 30
	defaultFlushIntervalSeconds = 60
	defaultPurgeIntervalSeconds = 3600
)

// Config represents the root configuration structure.
type Config struct {
	Collector CollectorConfig `json:"collector" yaml:"collector"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Tracking  TrackingConfig  `json:"tracking" yaml:"tracking"`
	Logging   logger.Config   `json:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// CollectorConfig describes the remote event collector.
type CollectorConfig struct {
	// Endpoint is the base URL of the search service.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Collection is the collection events are recorded against.
	Collection string `json:"collection" yaml:"collection"`

	// AccountID is sent in the Account-Id header.
	AccountID string `json:"accountId" yaml:"accountId"`

	// TimeoutSeconds bounds a single delivery request.
	TimeoutSeconds int `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`
}

// StorageConfig selects and configures the durable store.
type StorageConfig struct {
	// Backend is one of sqlite, redis or memory.
	Backend string `json:"backend" yaml:"backend"`

	// Path is the SQLite database file. Empty means the default location.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Key is the storage key holding the event backlog.
	Key string `json:"key" yaml:"key"`

	Redis storage.RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// TrackingConfig tunes delivery and retention.
type TrackingConfig struct {
	// RetentionDays is how long submitted events are kept.
	RetentionDays int `json:"retentionDays" yaml:"retentionDays"`

	// MaxInFlight caps concurrent deliveries per flush. Zero means unlimited.
	MaxInFlight int `json:"maxInFlight,omitempty" yaml:"maxInFlight,omitempty"`

	// FlushIntervalSeconds is the retry period used by serve.
	FlushIntervalSeconds int `json:"flushIntervalSeconds,omitempty" yaml:"flushIntervalSeconds,omitempty"`

	// PurgeIntervalSeconds is how often serve drops expired events.
	PurgeIntervalSeconds int `json:"purgeIntervalSeconds,omitempty" yaml:"purgeIntervalSeconds,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint used by serve.
type MetricsConfig struct {
	// Address to listen on, e.g. ":9464". Empty disables the endpoint.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
}

// NewConfig creates a configuration populated with defaults.
func NewConfig() *Config {
	return &Config{
		Collector: CollectorConfig{
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Key:     defaultStorageKey,
		},
		Tracking: TrackingConfig{
			RetentionDays:        defaultRetentionDays,
			FlushIntervalSeconds: defaultFlushIntervalSeconds,
			PurgeIntervalSeconds: defaultPurgeIntervalSeconds,
		},
		Logging: logger.Config{
			Level: "info",
		},
	}
}

// GetDefaultConfigPath returns the path to ~/.search-tracker.json
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".search-tracker.json"), nil
}

// Load reads the configuration from the default path.
func Load() (*Config, error) {
	configPath, err := GetDefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// Timeout returns the delivery timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Collector.TimeoutSeconds) * time.Second
}

// Retention returns the retention window for submitted events.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Tracking.RetentionDays) * 24 * time.Hour
}

// FlushInterval returns the periodic flush interval.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Tracking.FlushIntervalSeconds) * time.Second
}

// PurgeInterval returns the periodic purge interval.
func (c *Config) PurgeInterval() time.Duration {
	return time.Duration(c.Tracking.PurgeIntervalSeconds) * time.Second
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
