package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SEARCH_TRACKER_"

// LoadFrom reads config with enhanced error handling, then applies
// environment overrides. Fields missing from the file keep their defaults.
func LoadFrom(path string) (*Config, error) {
	// Check file existence first
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigNotFoundError{
				Path: path,
				Hint: "Run 'search-tracker init' to create configuration",
			}
		}
		return nil, fmt.Errorf("failed to access config: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, &PermissionError{
				Path:    path,
				Op:      "read",
				Fix:     getReadPermissionFix(path),
				Details: getPermissionDetails(path),
			}
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := NewConfig()
	if err := decode(path, data, cfg); err != nil {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: fmt.Sprintf("parse error: %v", err),
			Hint:    "Restore from .bak file if available",
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to defaults plus environment
// overrides when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := LoadFrom(path)
	if err == nil {
		return cfg, nil
	}

	var notFound *ConfigNotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	cfg = NewConfig()
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrCreate loads path, writing a default configuration first if the
// file does not exist. created reports whether a new file was written.
func LoadOrCreate(path string) (cfg *Config, created bool, err error) {
	cfg, err = LoadFrom(path)
	if err == nil {
		return cfg, false, nil
	}

	var notFound *ConfigNotFoundError
	if !errors.As(err, &notFound) {
		return nil, false, err
	}

	cfg = NewConfig()
	if err := Save(cfg, path); err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

// loadEnvFiles loads .env files in priority order:
// 1. SEARCH_TRACKER_ENV_FILE (if set, loads only this file)
// 2. .env.local (if exists, overrides .env)
// 3. .env
// Variables already present in the environment are never replaced.
func loadEnvFiles() error {
	if envFile := os.Getenv(EnvPrefix + "ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}

	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

// ApplyEnv loads .env files and overrides cfg with SEARCH_TRACKER_*
// variables. Empty variables are ignored.
func ApplyEnv(cfg *Config) error {
	if err := loadEnvFiles(); err != nil {
		return fmt.Errorf("load environment files: %w", err)
	}

	stringVars := map[string]*string{
		"ENDPOINT":        &cfg.Collector.Endpoint,
		"COLLECTION":      &cfg.Collector.Collection,
		"ACCOUNT_ID":      &cfg.Collector.AccountID,
		"STORAGE_BACKEND": &cfg.Storage.Backend,
		"STORAGE_PATH":    &cfg.Storage.Path,
		"STORAGE_KEY":     &cfg.Storage.Key,
		"REDIS_ADDRESS":   &cfg.Storage.Redis.Address,
		"REDIS_PASSWORD":  &cfg.Storage.Redis.Password,
		"LOG_LEVEL":       &cfg.Logging.Level,
		"METRICS_ADDRESS": &cfg.Metrics.Address,
	}
	for name, field := range stringVars {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*field = v
		}
	}

	intVars := map[string]*int{
		"TIMEOUT_SECONDS":        &cfg.Collector.TimeoutSeconds,
		"REDIS_DB":               &cfg.Storage.Redis.DB,
		"RETENTION_DAYS":         &cfg.Tracking.RetentionDays,
		"MAX_IN_FLIGHT":          &cfg.Tracking.MaxInFlight,
		"FLUSH_INTERVAL_SECONDS": &cfg.Tracking.FlushIntervalSeconds,
		"PURGE_INTERVAL_SECONDS": &cfg.Tracking.PurgeIntervalSeconds,
	}
	for name, field := range intVars {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return &InvalidConfigError{
				Message: fmt.Sprintf("%s%s: %q is not an integer", EnvPrefix, name, v),
			}
		}
		*field = n
	}

	return nil
}

// getReadPermissionFix returns platform-specific fix command
func getReadPermissionFix(path string) string {
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Right-click %s → Properties → Security → Edit permissions", path)
	default: // unix-like
		return fmt.Sprintf("Run: chmod 644 %s", path)
	}
}

// getPermissionDetails checks file ownership and permissions
func getPermissionDetails(path string) string {
	if runtime.GOOS == "windows" {
		return ""
	}

	info, err := os.Stat(path)
	if err != nil {
		return ""
	}

	return fmt.Sprintf("Current permissions: %04o", info.Mode().Perm())
}
