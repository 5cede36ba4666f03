// Package file provides the JSON-file dedup store backend.
//
// The whole record is read and written as one document:
//
//	{"processedKeys": ["ABCD1234", ...], "lastSync": "2024-05-10T12:00:00Z"}
//
// Writes go to a temp file that is synced and renamed over the record, so a
// crash leaves either the old or the new record on disk, never a torn one.
// A missing or unparseable record loads as empty.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zotero2craft/zotero2craft/internal/state"
)

func init() {
	state.Register(state.KindFile, func(path string, logger *log.Logger) (state.Store, error) {
		if path == "" {
			return nil, fmt.Errorf("file backend requires a path")
		}
		return New(path, logger), nil
	})
}

// Store is a state.Store backed by a single JSON file.
type Store struct {
	path   string
	logger *log.Logger
	now    func() time.Time

	// mu serializes read-modify-write cycles within the process.
	mu sync.Mutex
}

// New creates a store at path. The file is created on the first write.
// If logger is nil, a default logger writing to stderr is used.
func New(path string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[state] ", log.LstdFlags)
	}
	return &Store{
		path:   path,
		logger: logger,
		now:    time.Now,
	}
}

// Path returns the record file location.
func (s *Store) Path() string {
	return s.path
}

// Load implements state.Store.
func (s *Store) Load(ctx context.Context) *state.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// MarkProcessed implements state.Store.
func (s *Store) MarkProcessed(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.read()
	record.Add(key, s.now())
	return s.write(record)
}

// Reset implements state.Store.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(state.NewRecord())
}

// Close is a no-op; every write is already durable.
func (s *Store) Close() error { return nil }

func (s *Store) read() *state.Record {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return state.NewRecord()
	}
	if err != nil {
		s.logger.Printf("WARNING: cannot read %s, starting from empty state: %v", s.path, err)
		return state.NewRecord()
	}

	var record state.Record
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Printf("WARNING: corrupt state file %s, starting from empty state: %v", s.path, err)
		return state.NewRecord()
	}
	if record.ProcessedKeys == nil {
		record.ProcessedKeys = []string{}
	}
	return &record
}

func (s *Store) write(record *state.Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write atomically via temp file
	tmpPath := s.path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
