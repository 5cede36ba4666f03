package sync

import (
	"errors"
	stdsync "sync"
)

// ErrRunInProgress is returned by Run when a run with the same identity is
// already in flight. The requested run is dropped, not queued.
var ErrRunInProgress = errors.New("sync run already in progress")

// Guard is a single-flight token set keyed on configuration identity.
// One Guard is shared by every Syncer of a process so that the scheduler,
// the dashboard and the CLI cannot overlap on the same configuration.
type Guard struct {
	mu      stdsync.Mutex
	running map[string]struct{}
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{running: make(map[string]struct{})}
}

// TryAcquire takes the token for key. It returns false if the token is held.
// The returned release func is safe to call more than once.
func (g *Guard) TryAcquire(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.running[key]; busy {
		return func() {}, false
	}
	g.running[key] = struct{}{}

	var once stdsync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, key)
			g.mu.Unlock()
		})
	}, true
}

// Running reports whether a run holds the token for key.
func (g *Guard) Running(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.running[key]
	return busy
}
