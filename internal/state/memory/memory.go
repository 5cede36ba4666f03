// Package memory provides the ephemeral dedup store backend.
//
// State lives in the Store value: it starts empty when the Store is created,
// changes only through the state.Store methods, and is gone when the process
// exits. Use it only where re-processing duplicates after a restart is
// acceptable. Each caller creates its own instance; there is no package-level
// singleton.
package memory

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/zotero2craft/zotero2craft/internal/state"
)

func init() {
	state.Register(state.KindMemory, func(string, *log.Logger) (state.Store, error) {
		return New(), nil
	})
}

// Store is an in-process state.Store.
type Store struct {
	mu     sync.Mutex
	record *state.Record
	now    func() time.Time
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		record: state.NewRecord(),
		now:    time.Now,
	}
}

// Load returns a copy of the current record.
func (s *Store) Load(ctx context.Context) *state.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone()
}

// MarkProcessed implements state.Store.
func (s *Store) MarkProcessed(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Add(key, s.now())
	return nil
}

// Reset implements state.Store.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = state.NewRecord()
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
