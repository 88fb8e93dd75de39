/*
Package cli implements the search-tracker commands.

Every command resolves configuration from --config (default
~/.search-tracker.json) plus SEARCH_TRACKER_* environment overrides, then
builds the store, collector client and tracker from it.
*/
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/khanglvm/search-tracker/internal/collector"
	"github.com/khanglvm/search-tracker/internal/config"
	"github.com/khanglvm/search-tracker/internal/logger"
	"github.com/khanglvm/search-tracker/internal/metrics"
	"github.com/khanglvm/search-tracker/internal/storage"
	"github.com/khanglvm/search-tracker/internal/tracking"
)

const configFlag = "config"

// AddConfigFlag registers the global --config flag on the root command.
func AddConfigFlag(root *cobra.Command) {
	root.PersistentFlags().String(configFlag, "", "config file (default ~/.search-tracker.json)")
}

// configPath returns the --config value or the default location.
func configPath(cmd *cobra.Command) (string, error) {
	if f := cmd.Flag(configFlag); f != nil && f.Value.String() != "" {
		return f.Value.String(), nil
	}
	return config.GetDefaultConfigPath()
}

// loadConfig reads the configuration for cmd. A missing file is not an
// error: defaults and environment overrides still apply.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// app bundles everything a command needs to record and deliver events.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	store   storage.BlobStore
	tracker *tracking.Tracker
	metrics *metrics.Collector
	closers []func() error
}

// appOptions tunes newApp.
type appOptions struct {
	// Registry receives the tracking metrics when non-nil.
	Registry prometheus.Registerer

	// ManualStartup leaves the startup flush and purge to the command.
	ManualStartup bool
}

// newApp builds a tracker from cfg. Unless opts.ManualStartup is set it
// waits for the startup flush and purge to finish.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &config.InvalidConfigError{
			Message: err.Error(),
			Hint:    "Run 'search-tracker init' or set SEARCH_TRACKER_* variables",
		}
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	var observer tracking.Observer
	if opts.Registry != nil {
		a.metrics = metrics.NewCollector(opts.Registry)
		observer = a.metrics
	}

	client := collector.NewClient(collector.Config{
		Endpoint:   cfg.Collector.Endpoint,
		Collection: cfg.Collector.Collection,
		AccountID:  cfg.Collector.AccountID,
		Timeout:    cfg.Timeout(),
	})

	tracker, err := tracking.New(ctx, tracking.Options{
		Store:         store,
		Sender:        client,
		StorageKey:    cfg.Storage.Key,
		Logger:        log,
		Observer:      observer,
		Retention:     cfg.Retention(),
		MaxInFlight:   cfg.Tracking.MaxInFlight,
		ManualStartup: opts.ManualStartup,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tracker = tracker
	tracker.Wait()

	return a, nil
}

// Close stops the tracker, waiting for in-flight deliveries, then releases
// the store.
func (a *app) Close() error {
	if a.tracker != nil {
		a.tracker.Stop()
	}

	var errs []error
	for _, c := range a.closers {
		if c == nil {
			continue
		}
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.log.Sync()
	return errors.Join(errs...)
}

// openStore opens the configured backend. An unusable SQLite file or an
// unreachable Redis server degrades to a store that does not survive the
// process instead of failing the command.
func openStore(cfg *config.Config, log logger.Logger) (storage.BlobStore, func() error, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return storage.NewMemoryStorage(), nil, nil

	case config.BackendRedis:
		client, err := storage.NewRedisClient(cfg.Storage.Redis)
		if err != nil {
			log.Warn("redis unavailable, event backlog kept in memory only",
				logger.String("address", cfg.Storage.Redis.Address),
				logger.Error(err),
			)
			return storage.NewMemoryStorage(), nil, nil
		}
		store := storage.NewRedisStorage(client)
		return store, store.Close, nil

	case config.BackendSQLite, "":
		store := storage.NewStorage(cfg.Storage.Path, log)
		// Init disables the store on failure; the tracker then runs on its
		// in-memory ledger alone.
		_ = store.Init()
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// formatJSON pretty-prints v.
func formatJSON(v any) (string, error) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
