// Package state provides the dedup store: the durable record of which
// source items have already been synchronized to the Sink.
//
// The orchestrator is written against the Store interface only. Backends
// register themselves from init() in their own packages:
//
//	state/memory  in-process, discarded when the process exits
//	state/file    whole-record JSON file, replaced atomically
//	state/sqlite  SQLite database in WAL mode
//
// Ordering contract: MarkProcessed is called only after the Sink confirmed
// creation, and it returns only once the mark is durable.
package state

import (
	"context"
	"errors"
	"slices"
	"time"
)

// ErrClosed is returned by operations on a store after Close.
var ErrClosed = errors.New("state: store closed")

// Record is the persisted dedup state.
type Record struct {
	ProcessedKeys []string   `json:"processedKeys"`
	LastSync      *time.Time `json:"lastSync,omitempty"`
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{ProcessedKeys: []string{}}
}

// Has reports whether key was already processed.
func (r *Record) Has(key string) bool {
	if r == nil {
		return false
	}
	return slices.Contains(r.ProcessedKeys, key)
}

// Add inserts key if absent and refreshes LastSync.
// It returns false if the key was already present.
func (r *Record) Add(key string, now time.Time) bool {
	now = now.UTC()
	r.LastSync = &now
	if slices.Contains(r.ProcessedKeys, key) {
		return false
	}
	r.ProcessedKeys = append(r.ProcessedKeys, key)
	return true
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return NewRecord()
	}
	c := &Record{ProcessedKeys: slices.Clone(r.ProcessedKeys)}
	if c.ProcessedKeys == nil {
		c.ProcessedKeys = []string{}
	}
	if r.LastSync != nil {
		ts := *r.LastSync
		c.LastSync = &ts
	}
	return c
}

// Store is the dedup store contract.
type Store interface {
	// Load returns the current record. It never fails: missing or corrupt
	// storage yields an empty record.
	Load(ctx context.Context) *Record

	// MarkProcessed adds key to the record. Adding a present key leaves the
	// set unchanged but refreshes LastSync. The mark is durable when this
	// returns nil.
	MarkProcessed(ctx context.Context, key string) error

	// Reset atomically replaces the record with an empty one.
	Reset(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
