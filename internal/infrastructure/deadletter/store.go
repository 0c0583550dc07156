package deadletter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/streamflux/streamflux-core/internal/infrastructure/config"
)

// Store configuration constants.
const (
	// dirPermissions is the permission mode for the store directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the store file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying store connectivity.
	connectionTimeout = 5 * time.Second
)

// schema creates the dead-letter table. Kept inline since the store has a
// single table and no migration history.
const schema = `
CREATE TABLE IF NOT EXISTS dead_letters (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    topic       TEXT    NOT NULL,
    "partition" INTEGER NOT NULL,
    "offset"    INTEGER NOT NULL,
    "key"       BLOB,
    "value"     TEXT,
    reason      TEXT    NOT NULL,
    created_at  TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_dead_letters_topic ON dead_letters(topic, "partition");
`

// Store persists records the sink rejected, so operators can inspect and
// replay them. Backed by SQLite with WAL mode for a single writer.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one dead-lettered record.
type Entry struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte

	// Value is the rejected record body, stored as JSON.
	Value any

	// Reason is the sink's rejection, e.g. a value-type error.
	Reason string
}

// Open creates the dead-letter store with the specified configuration.
//
// It performs the following setup:
//  1. Creates the store directory if it doesn't exist
//  2. Opens the database file with busy timeout and optional WAL mode
//  3. Creates the dead_letters table if not present
//  4. Verifies the connection with a ping
//
// Parameters:
//   - ctx: Context for the connectivity check
//   - cfg: Dead-letter configuration from config.yaml
//
// Returns:
//   - *Store: Ready store
//   - error: ErrDisabled when dead-lettering is off, or the open failure
func Open(ctx context.Context, cfg config.DeadLetterConfig) (*Store, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	// Ensure directory exists
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating dead-letter directory: %w", err)
	}

	// Build connection string with pragmas
	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening dead-letter store: %w", err)
	}

	// SQLite only supports one writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying dead-letter store: %w", err)
	}

	if _, err := sqlDB.ExecContext(pingCtx, schema); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("creating dead-letter schema: %w", err)
	}

	// Set file permissions (owner read/write only)
	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Intentional: file may appear on first write

	return &Store{db: sqlDB, path: cfg.Path}, nil
}

// Record persists one rejected record. The value is stored as JSON; values
// that cannot be marshalled are stored via their Go string rendering so the
// row is never lost to a serialisation error.
func (s *Store) Record(ctx context.Context, e Entry) error {
	value, err := json.Marshal(e.Value)
	if err != nil {
		value = []byte(fmt.Sprintf("%q", fmt.Sprint(e.Value)))
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dead_letters (topic, "partition", "offset", "key", "value", reason)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Topic, e.Partition, e.Offset, e.Key, string(value), e.Reason,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRecordFailed, err)
	}
	return nil
}

// Count returns the number of dead-lettered records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dead_letters").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting dead letters: %w", err)
	}
	return n, nil
}

// Path returns the filesystem path to the store file.
func (s *Store) Path() string {
	return s.path
}

// HealthCheck verifies the store is accessible and functioning.
func (s *Store) HealthCheck(ctx context.Context) error {
	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("dead-letter health check failed: %w", err)
	}
	return nil
}

// Close closes the store gracefully.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing dead-letter store: %w", err)
	}
	return nil
}
