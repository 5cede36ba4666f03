package state

import (
	"fmt"
	"log"
	"sort"
	"sync"
)

// Kind names a dedup store backend.
type Kind string

const (
	KindMemory Kind = "memory"
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
)

// Constructor opens a backend at path. Backends that keep no files ignore it.
// The backend reports recoverable problems, such as a corrupt record, to
// logger.
type Constructor func(path string, logger *log.Logger) (Store, error)

// registry maps backend kinds to their constructors
var (
	registry      = make(map[Kind]Constructor)
	registryMutex sync.RWMutex
)

// Register registers a backend constructor.
// This is called from init() functions in backend packages.
//
// Example:
//
//	func init() {
//	    state.Register(state.KindFile, func(path string, logger *log.Logger) (state.Store, error) {
//	        return New(path, logger), nil
//	    })
//	}
func Register(k Kind, constructor Constructor) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if constructor == nil {
		panic(fmt.Sprintf("state: Register constructor is nil for kind %s", k))
	}

	if _, exists := registry[k]; exists {
		panic(fmt.Sprintf("state: Register called twice for kind %s", k))
	}

	registry[k] = constructor
}

// Open opens the backend registered for k. A nil logger leaves the choice
// to the backend.
func Open(k Kind, path string, logger *log.Logger) (Store, error) {
	registryMutex.RLock()
	constructor := registry[k]
	registryMutex.RUnlock()

	if constructor == nil {
		return nil, fmt.Errorf("state: unknown backend %q (registered: %v)", k, RegisteredKinds())
	}

	store, err := constructor(path, logger)
	if err != nil {
		return nil, fmt.Errorf("state: open %s backend: %w", k, err)
	}
	return store, nil
}

// IsRegistered returns true if a constructor is registered for k.
func IsRegistered(k Kind) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, exists := registry[k]
	return exists
}

// RegisteredKinds returns all registered backend kinds, sorted.
func RegisteredKinds() []Kind {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// UnregisterAll clears all registered constructors.
// This is primarily useful for testing.
func UnregisterAll() {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	registry = make(map[Kind]Constructor)
}
