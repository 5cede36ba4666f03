// Package daemon runs sync on a fixed wall-clock interval.
//
// The daemon:
//  1. Optionally runs once at startup
//  2. Starts a run on every tick, whether or not the previous run finished
//  3. Reloads the configuration when its file changes
//  4. Shuts down gracefully, waiting for the run in flight
//
// Ticks never wait for a run. If the previous run is still in flight the
// orchestrator's run guard drops the new one and the tick is logged as
// skipped.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	stdsync "sync"
	"time"

	"github.com/zotero2craft/zotero2craft/internal/sync"
)

// Runner performs one sync run.
type Runner interface {
	Sync(ctx context.Context, opts sync.RunOptions) (*sync.Report, error)
	RunOptions() sync.RunOptions
}

// ReloadFunc re-reads the configuration after its file changed and returns
// the interval to use from now on.
type ReloadFunc func() (time.Duration, error)

// Config holds configuration for the daemon.
type Config struct {
	// Interval is the time between run starts.
	Interval time.Duration

	// RunOnStart triggers a run immediately on Start.
	RunOnStart bool

	// ConfigFile is watched for changes when Reload is set.
	ConfigFile string
	Reload     ReloadFunc

	// DebounceInterval is how long the config file must be quiet before a
	// reload. Editors often write a file in several steps.
	DebounceInterval time.Duration

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns a five minute interval with a run at startup.
func DefaultConfig() *Config {
	return &Config{
		Interval:         5 * time.Minute,
		RunOnStart:       true,
		DebounceInterval: 250 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon schedules sync runs.
type Daemon struct {
	runner Runner
	config *Config

	watcher  *ConfigWatcher
	interval chan time.Duration

	mu      stdsync.Mutex
	runs    int
	skipped int

	ctx    context.Context
	cancel context.CancelFunc
	wg     stdsync.WaitGroup
	runWG  stdsync.WaitGroup
}

// New creates a daemon with the default configuration.
func New(runner Runner) (*Daemon, error) {
	return NewWithConfig(runner, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(runner Runner, config *Config) (*Daemon, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", config.Interval)
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 250 * time.Millisecond
	}

	d := &Daemon{
		runner:   runner,
		config:   config,
		interval: make(chan time.Duration, 1),
	}

	if config.ConfigFile != "" && config.Reload != nil {
		w, err := NewConfigWatcher(config.ConfigFile)
		if err != nil {
			return nil, err
		}
		d.watcher = w
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d, nil
}

// Start runs the scheduler. It blocks until ctx is cancelled, then stops.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Printf("Starting daemon (interval %s)", d.config.Interval)

	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
		d.config.Logger.Printf("Watching: %s", d.watcher.Path())
		d.wg.Add(1)
		go d.watchConfig()
	}

	if d.config.RunOnStart {
		d.trigger("startup")
	}

	d.wg.Add(1)
	go d.schedule()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop cancels runs in flight and waits for every goroutine.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			d.config.Logger.Printf("Error closing watcher: %v", err)
		}
	}

	d.wg.Wait()
	d.runWG.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// SetInterval changes the interval. The next tick is one new interval from
// now.
func (d *Daemon) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	select {
	case <-d.interval:
	default:
	}
	d.interval <- interval
}

// Stats returns the number of runs started and ticks skipped because a run
// was still in flight.
func (d *Daemon) Stats() (runs, skipped int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runs, d.skipped
}

func (d *Daemon) schedule() {
	defer d.wg.Done()

	interval := d.config.Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case next := <-d.interval:
			if next != interval {
				d.config.Logger.Printf("Interval changed: %s -> %s", interval, next)
				interval = next
				ticker.Reset(interval)
			}

		case <-ticker.C:
			d.trigger("tick")
		}
	}
}

// trigger starts a run in its own goroutine so the schedule never waits.
func (d *Daemon) trigger(reason string) {
	d.runWG.Add(1)
	go func() {
		defer d.runWG.Done()

		report, err := d.runner.Sync(d.ctx, d.runner.RunOptions())
		switch {
		case errors.Is(err, sync.ErrRunInProgress):
			d.mu.Lock()
			d.skipped++
			d.mu.Unlock()
			d.config.Logger.Printf("Skipped %s run: previous run still in progress", reason)
		case err != nil:
			d.count()
			d.config.Logger.Printf("Error: %s run failed: %v", reason, err)
		default:
			d.count()
			d.config.Logger.Printf("%s run complete: created=%d skipped=%d failed=%d",
				reason, report.Created, report.Skipped, report.Failed)
		}
	}()
}

func (d *Daemon) count() {
	d.mu.Lock()
	d.runs++
	d.mu.Unlock()
}

// watchConfig debounces config file changes and reloads.
func (d *Daemon) watchConfig() {
	defer d.wg.Done()

	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-d.ctx.Done():
			return

		case _, ok := <-d.watcher.Changes():
			if !ok {
				return
			}
			if debounce == nil {
				debounce = time.NewTimer(d.config.DebounceInterval)
			} else {
				debounce.Reset(d.config.DebounceInterval)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			d.reload()

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

func (d *Daemon) reload() {
	interval, err := d.config.Reload()
	if err != nil {
		d.config.Logger.Printf("Error reloading config, keeping previous: %v", err)
		return
	}
	d.config.Logger.Printf("Config reloaded from %s", d.watcher.Path())
	d.SetInterval(interval)
}
