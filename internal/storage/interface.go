/*
Package storage implements the durable blob stores backing the event backlog.

The tracking layer persists its whole ledger as one serialized string under a
fixed key, so every backend only needs get/set of a single value. Three
backends are provided:

  - SQLiteStorage: a local file at ~/.search-tracker/events.db using
    modernc.org/sqlite (a pure Go, CGo-free implementation)
  - RedisStorage: a shared Redis instance
  - MemoryStorage: process-local, for tests and throwaway runs

There is no cross-process locking. Two writers against the same key simply
overwrite each other and the last SetItem wins.
*/
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/khanglvm/search-tracker/internal/logger"

	_ "modernc.org/sqlite"
)

// ErrStorageDisabled is returned by writes on a store whose initialization failed.
var ErrStorageDisabled = errors.New("storage disabled")

// BlobStore is the get/set port used to persist the event backlog.
type BlobStore interface {
	// GetItem returns the value stored under key. found is false when the key
	// has never been written.
	GetItem(ctx context.Context, key string) (value string, found bool, err error)

	// SetItem overwrites the value stored under key.
	SetItem(ctx context.Context, key, value string) error
}

// SQLiteStorage implements BlobStore using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	log      logger.Logger
	mu       sync.Mutex
	initOnce sync.Once
}

// DefaultDBPath returns ~/.search-tracker/events.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".search-tracker", "events.db"), nil
}

// NewStorage creates a SQLite storage instance for dbPath.
//
// An empty dbPath resolves to DefaultDBPath. If that cannot be resolved the
// storage is created disabled, and operations degrade instead of failing hard.
func NewStorage(dbPath string, log logger.Logger) *SQLiteStorage {
	if log == nil {
		log = logger.NewNop()
	}

	if dbPath == "" {
		p, err := DefaultDBPath()
		if err != nil {
			log.Warn("sqlite storage disabled", logger.Error(err))
			return &SQLiteStorage{enabled: false, log: log}
		}
		dbPath = p
	}

	return &SQLiteStorage{
		dbPath:  dbPath,
		enabled: true,
		log:     log,
	}
}

// Init opens the database and runs migrations.
//
// If initialization fails, storage is disabled: reads report nothing stored
// and writes return ErrStorageDisabled.
func (s *SQLiteStorage) Init() error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
			initErr = fmt.Errorf("failed to create db directory: %w", err)
			s.enabled = false
			s.log.Warn("sqlite storage disabled", logger.Error(initErr))
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			s.enabled = false
			s.log.Warn("sqlite storage disabled", logger.Error(initErr))
			return
		}
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = fmt.Errorf("failed to ping database: %w", err)
			s.enabled = false
			s.log.Warn("sqlite storage disabled", logger.Error(initErr))
			return
		}

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			s.enabled = false
			s.log.Warn("sqlite storage disabled", logger.Error(initErr))
			return
		}
	})

	return initErr
}

// Enabled reports whether the store is usable.
func (s *SQLiteStorage) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled && s.db != nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	return nil
}
