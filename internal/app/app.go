// Package app wires the configuration to the adapters, the dedup store and
// the orchestrator. The CLI, the scheduler and the HTTP API all drive the
// bridge through an *App.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdsync "sync"

	"github.com/zotero2craft/zotero2craft/internal/bridge"
	"github.com/zotero2craft/zotero2craft/internal/bridge/craft"
	"github.com/zotero2craft/zotero2craft/internal/bridge/enrich"
	"github.com/zotero2craft/zotero2craft/internal/bridge/zotero"
	"github.com/zotero2craft/zotero2craft/internal/config"
	"github.com/zotero2craft/zotero2craft/internal/logging"
	"github.com/zotero2craft/zotero2craft/internal/state"
	"github.com/zotero2craft/zotero2craft/internal/sync"

	// Dedup store backends register themselves.
	_ "github.com/zotero2craft/zotero2craft/internal/state/file"
	_ "github.com/zotero2craft/zotero2craft/internal/state/memory"
	_ "github.com/zotero2craft/zotero2craft/internal/state/sqlite"
)

// Connections is the result of probing every service.
type Connections struct {
	Zotero bool `json:"zotero"`
	Craft  bool `json:"craft"`
	AI     bool `json:"ai"`
}

// App holds the live configuration and the dedup store.
type App struct {
	mu        stdsync.Mutex
	cfg       *config.Config
	store     *storeHandle
	observers sync.Observers

	guard  *sync.Guard
	logs   *logging.Logging
	logger *log.Logger
}

// New creates an App. Nothing is opened or dialed until first use, so an
// incomplete configuration is enough for connection tests and collection
// listings.
func New(cfg *config.Config, logs *logging.Logging) *App {
	if logs == nil {
		logs = logging.Discard()
	}
	return &App{
		cfg:    cfg,
		guard:  sync.NewGuard(),
		logs:   logs,
		logger: logs.Logger("app"),
	}
}

// Config returns the current configuration.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Reload swaps in a new configuration. The dedup store is reopened on next
// use if its backend or location changed. Runs in flight keep the
// collaborators they started with, including the old store, which closes
// when the last of them finishes.
func (a *App) Reload(cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cfg = cfg
	if a.store != nil && a.store.key != storeKey(cfg) {
		if err := a.retire(); err != nil {
			a.logger.Printf("WARNING: Failed to close dedup store: %v", err)
		}
	}
	a.logger.Printf("Configuration reloaded")
}

// Observe registers an observer for every subsequent run.
func (a *App) Observe(o sync.Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

// RunOptions returns the configured run parameters.
func (a *App) RunOptions() sync.RunOptions {
	cfg := a.Config()
	return sync.RunOptions{MaxItems: cfg.Sync.MaxItems, SkipProcessed: cfg.Sync.SkipProcessed}
}

// Sync validates the configuration and performs one run.
func (a *App) Sync(ctx context.Context, opts sync.RunOptions) (*sync.Report, error) {
	cfg := a.Config()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, release, err := a.lease()
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := a.syncer(cfg, store)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, opts)
}

// Running reports whether a run for the current configuration is in flight.
func (a *App) Running() bool {
	return a.guard.Running(a.Config().Identity())
}

func (a *App) syncer(cfg *config.Config, store state.Store) (*sync.Syncer, error) {
	source, err := a.source(cfg)
	if err != nil {
		return nil, err
	}
	sink, err := a.sink(cfg)
	if err != nil {
		return nil, err
	}
	enricher, err := a.enricher(cfg)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	observers := append(sync.Observers(nil), a.observers...)
	a.mu.Unlock()

	return sync.New(sync.Config{
		Source:   source,
		Sink:     sink,
		Enricher: enricher,
		Store:    store,
		Placement: sync.Placement{
			CollectionID:     cfg.Craft.TargetCollectionID,
			ParentDocumentID: cfg.Craft.ParentDocumentID,
		},
		Identity: cfg.Identity(),
		Guard:    a.guard,
		Observer: observers,
		Logger:   a.logs.Logger("sync"),
	})
}

func (a *App) source(cfg *config.Config) (*zotero.Client, error) {
	return zotero.New(zotero.Config{
		UserID:       cfg.Zotero.UserID,
		APIKey:       cfg.Zotero.APIKey,
		CollectionID: cfg.Zotero.CollectionID,
		BaseURL:      cfg.Zotero.BaseURL,
		Logger:       a.logs.Logger("zotero"),
		Debug:        a.logs.Debug("zotero"),
	})
}

func (a *App) sink(cfg *config.Config) (*craft.Client, error) {
	return craft.New(craft.Config{
		LinkID:           cfg.Craft.LinkID,
		APIKey:           cfg.Craft.APIKey,
		ParentDocumentID: cfg.Craft.ParentDocumentID,
		BaseURL:          cfg.Craft.BaseURL,
		Logger:           a.logs.Logger("craft"),
		Debug:            a.logs.Debug("craft"),
	})
}

func (a *App) enricher(cfg *config.Config) (*enrich.Enricher, error) {
	return enrich.New(enrich.Config{
		Enabled:  cfg.AI.Enabled,
		Provider: enrich.Provider(cfg.AI.Provider),
		Endpoint: cfg.AI.Endpoint,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
		Logger:   a.logs.Logger("enrich"),
		Debug:    a.logs.Debug("enrich"),
	})
}

// TestConnections probes the three services. A service whose configuration
// is incomplete reports false without a network call.
func (a *App) TestConnections(ctx context.Context) Connections {
	cfg := a.Config()
	var c Connections

	if source, err := a.source(cfg); err == nil {
		c.Zotero = source.TestConnection(ctx)
	}
	if sink, err := a.sink(cfg); err == nil {
		c.Craft = sink.TestConnection(ctx)
	}
	if enricher, err := a.enricher(cfg); err == nil {
		c.AI = enricher.TestConnection(ctx)
	}

	a.logger.Printf("Connection test: zotero=%t craft=%t ai=%t", c.Zotero, c.Craft, c.AI)
	return c
}

// SourceCollections lists the Zotero collections.
func (a *App) SourceCollections(ctx context.Context) ([]bridge.Collection, error) {
	source, err := a.source(a.Config())
	if err != nil {
		return nil, err
	}
	return source.Collections(ctx)
}

// SinkCollections lists the Craft collections.
func (a *App) SinkCollections(ctx context.Context) ([]bridge.SinkCollection, error) {
	sink, err := a.sink(a.Config())
	if err != nil {
		return nil, err
	}
	return sink.Collections(ctx)
}

// storeHandle is an open dedup store and the number of callers using it.
// A retired handle is closed when its last lease is released.
type storeHandle struct {
	store   state.Store
	key     string
	refs    int
	retired bool
}

// lease returns the dedup store, opening it on first use. The store stays
// open until release is called, even across Reload and Close.
func (a *App) lease() (store state.Store, release func(), err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store == nil {
		path, err := a.cfg.StatePath()
		if err != nil {
			return nil, nil, err
		}
		opened, err := state.Open(state.Kind(a.cfg.State.Backend), path, a.logs.Logger("state"))
		if err != nil {
			return nil, nil, err
		}
		a.store = &storeHandle{store: opened, key: storeKey(a.cfg)}
	}

	h := a.store
	h.refs++
	var once stdsync.Once
	return h.store, func() { once.Do(func() { a.release(h) }) }, nil
}

func (a *App) release(h *storeHandle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	h.refs--
	if h.retired && h.refs == 0 {
		if err := h.store.Close(); err != nil {
			a.logger.Printf("WARNING: Failed to close dedup store: %v", err)
		}
	}
}

// retire detaches the current store. It is closed now if unused, otherwise
// by the last release. Callers hold a.mu.
func (a *App) retire() error {
	h := a.store
	if h == nil {
		return nil
	}
	a.store = nil
	h.retired = true
	if h.refs > 0 {
		a.logger.Printf("Dedup store in use, closing it when the current run finishes")
		return nil
	}
	return h.store.Close()
}

// State returns the current dedup record.
func (a *App) State(ctx context.Context) (*state.Record, error) {
	store, release, err := a.lease()
	if err != nil {
		return nil, err
	}
	defer release()
	return store.Load(ctx), nil
}

// ResetState empties the dedup record. It refuses while a run is in flight.
func (a *App) ResetState(ctx context.Context) error {
	if a.Running() {
		return sync.ErrRunInProgress
	}
	store, release, err := a.lease()
	if err != nil {
		return err
	}
	defer release()
	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset dedup store: %w", err)
	}
	a.logger.Printf("Dedup record reset")
	return nil
}

// Close releases the dedup store. A run still in flight keeps it open
// until the run returns.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.retire()
}

func storeKey(cfg *config.Config) string {
	path, err := cfg.StatePath()
	if err != nil {
		path = ""
	}
	return cfg.State.Backend + "\x00" + path
}

// IsConfigError reports whether err stems from missing configuration.
func IsConfigError(err error) bool {
	return errors.Is(err, bridge.ErrConfigInvalid)
}
