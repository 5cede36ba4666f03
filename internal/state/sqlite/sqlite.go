// Package sqlite provides the SQLite dedup store backend.
//
// The database runs in embedded mode with WAL journaling and
// synchronous=FULL, so a committed mark survives a crash.
//
// Schema:
//   - processed_items: one row per synchronized item key
//   - sync_meta: key/value metadata (last_sync)
//
// Reads and resets go through a single transaction each, so callers always
// observe a whole record.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zotero2craft/zotero2craft/internal/state"
)

func init() {
	state.Register(state.KindSQLite, func(path string, logger *log.Logger) (state.Store, error) {
		return Open(path, logger)
	})
}

const metaLastSync = "last_sync"

// Store wraps the database connection.
type Store struct {
	// mu guards conn: operations hold it shared, Close exclusively.
	mu     sync.RWMutex
	conn   *sql.DB
	path   string
	logger *log.Logger
	now    func() time.Time
}

// Open creates a new database connection at the specified path and
// initializes the schema.
//
// The caller MUST call Close() when done to ensure proper cleanup.
//
// Example:
//
//	store, err := sqlite.Open(".zotero2craft/state.db", nil)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(path string, logger *log.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite backend requires a path")
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[state] ", log.LstdFlags)
	}

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Per-connection pragmas go in the DSN so every pooled connection gets them.
	connStr := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=synchronous(full)", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn:   conn,
		path:   path,
		logger: logger,
		now:    time.Now,
	}

	// Enable WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := s.InitSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// InitSchema creates the tables if they don't exist. Idempotent.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS processed_items (
		item_key TEXT PRIMARY KEY,
		processed_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_meta (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Load implements state.Store. Query failures are logged and yield an empty
// record.
func (s *Store) Load(ctx context.Context) *state.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, err := s.load(ctx)
	if err != nil {
		s.logger.Printf("WARNING: cannot read state from %s, starting from empty state: %v", s.path, err)
		return state.NewRecord()
	}
	return record
}

func (s *Store) load(ctx context.Context) (*state.Record, error) {
	if s.conn == nil {
		return nil, state.ErrClosed
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT item_key FROM processed_items ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query processed items: %w", err)
	}
	defer rows.Close()

	record := state.NewRecord()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan processed item: %w", err)
		}
		record.ProcessedKeys = append(record.ProcessedKeys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate processed items: %w", err)
	}

	var lastSync string
	err = tx.QueryRowContext(ctx, `SELECT value FROM sync_meta WHERE name = ?`, metaLastSync).Scan(&lastSync)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("failed to read last sync: %w", err)
	default:
		ts, err := time.Parse(time.RFC3339Nano, lastSync)
		if err != nil {
			s.logger.Printf("WARNING: ignoring unparseable last sync %q: %v", lastSync, err)
		} else {
			record.LastSync = &ts
		}
	}

	return record, nil
}

// MarkProcessed implements state.Store.
func (s *Store) MarkProcessed(ctx context.Context, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return state.ErrClosed
	}

	now := s.now().UTC().Format(time.RFC3339Nano)

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO processed_items (item_key, processed_at) VALUES (?, ?)
		 ON CONFLICT(item_key) DO NOTHING`, key, now); err != nil {
		return fmt.Errorf("failed to mark %s processed: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sync_meta (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`, metaLastSync, now); err != nil {
		return fmt.Errorf("failed to update last sync: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reset implements state.Store.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return state.ErrClosed
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM processed_items"); err != nil {
		return fmt.Errorf("failed to clear processed items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sync_meta"); err != nil {
		return fmt.Errorf("failed to clear sync metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Count returns the number of processed items.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return 0, state.ErrClosed
	}

	var count int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count processed items: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
// Close waits for operations in flight; later ones return state.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}
