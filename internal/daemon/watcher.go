package daemon

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reports changes to a single config file.
//
// The parent directory is watched rather than the file itself: editors and
// config.Save replace the file by rename, which drops a watch on the file's
// inode.
type ConfigWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	changes chan struct{}
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewConfigWatcher creates a watcher for path. Start must be called before
// it emits anything.
func NewConfigWatcher(path string) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &ConfigWatcher{
		watcher: watcher,
		path:    abs,
		changes: make(chan struct{}, 1),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Path returns the absolute path of the watched file.
func (cw *ConfigWatcher) Path() string {
	return cw.path
}

// Start begins watching.
func (cw *ConfigWatcher) Start() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.running {
		return fmt.Errorf("watcher already running")
	}

	dir := filepath.Dir(cw.path)
	if err := cw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}

	cw.running = true
	cw.wg.Add(1)
	go cw.processEvents()

	return nil
}

// Stop stops watching and closes the channels. It is safe to call on a
// watcher that was never started.
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	wasRunning := cw.running
	cw.running = false
	cw.mu.Unlock()

	if !wasRunning {
		return cw.watcher.Close()
	}

	close(cw.done)
	if err := cw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	cw.wg.Wait()

	close(cw.changes)
	close(cw.errors)
	return nil
}

// Changes emits once per burst of writes to the file. Bursts that arrive
// before the receiver catches up are coalesced.
func (cw *ConfigWatcher) Changes() <-chan struct{} {
	return cw.changes
}

// Errors emits watcher errors.
func (cw *ConfigWatcher) Errors() <-chan error {
	return cw.errors
}

// IsRunning reports whether the watcher is started.
func (cw *ConfigWatcher) IsRunning() bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.running
}

func (cw *ConfigWatcher) processEvents() {
	defer cw.wg.Done()

	for {
		select {
		case <-cw.done:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !cw.relevant(event) {
				continue
			}
			select {
			case cw.changes <- struct{}{}:
			default:
				// A change is already pending.
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case cw.errors <- err:
			case <-cw.done:
				return
			}
		}
	}
}

// relevant keeps create, write and rename-into events for the config file.
func (cw *ConfigWatcher) relevant(event fsnotify.Event) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != cw.path {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write)
}
