package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/zotero2craft/zotero2craft/internal/bridge"
	"github.com/zotero2craft/zotero2craft/internal/bridge/enrich"
	"github.com/zotero2craft/zotero2craft/internal/state"
)

// DefaultMaxItems is the batch size used when none is configured.
const DefaultMaxItems = 10

// RunOptions are the per-run parameters.
type RunOptions struct {
	// MaxItems bounds the batch fetched from the Source. Must be positive.
	MaxItems int `json:"maxItems"`

	// SkipProcessed skips items whose key is already in the dedup record.
	SkipProcessed bool `json:"skipProcessed"`
}

// DefaultRunOptions returns MaxItems 10 with SkipProcessed on.
func DefaultRunOptions() RunOptions {
	return RunOptions{MaxItems: DefaultMaxItems, SkipProcessed: true}
}

// Placement selects where notes are created. With CollectionID set every
// note becomes an entry of that collection; otherwise a sub-page of
// ParentDocumentID.
type Placement struct {
	CollectionID     string
	ParentDocumentID string
}

// UsesCollection reports whether notes go into a collection.
func (p Placement) UsesCollection() bool {
	return p.CollectionID != ""
}

func (p Placement) String() string {
	if p.UsesCollection() {
		return "collection " + p.CollectionID
	}
	return "document " + p.ParentDocumentID
}

// Config holds the collaborators of a Syncer.
type Config struct {
	Source bridge.Source
	Sink   bridge.Sink
	Store  state.Store

	// Enricher is optional; nil behaves like a disabled enricher.
	Enricher bridge.Enricher

	Placement Placement

	// Identity keys the run guard. Defaults to a key derived from the
	// placement.
	Identity string

	// Guard defaults to a guard private to this Syncer.
	Guard *Guard

	// Observer is optional.
	Observer Observer

	// Logger defaults to stderr with a "[sync] " prefix.
	Logger *log.Logger
}

// Syncer runs the sync pipeline for one configuration.
type Syncer struct {
	source    bridge.Source
	sink      bridge.Sink
	store     state.Store
	enricher  bridge.Enricher
	placement Placement
	identity  string
	guard     *Guard
	observer  Observer
	logger    *log.Logger

	now   func() time.Time
	newID func() string
}

// New validates cfg and creates a Syncer. Missing collaborators or an empty
// placement fail with bridge.ErrConfigInvalid; nothing touches the network.
func New(cfg Config) (*Syncer, error) {
	switch {
	case cfg.Source == nil:
		return nil, fmt.Errorf("sync: source is required: %w", bridge.ErrConfigInvalid)
	case cfg.Sink == nil:
		return nil, fmt.Errorf("sync: sink is required: %w", bridge.ErrConfigInvalid)
	case cfg.Store == nil:
		return nil, fmt.Errorf("sync: dedup store is required: %w", bridge.ErrConfigInvalid)
	case cfg.Placement.CollectionID == "" && cfg.Placement.ParentDocumentID == "":
		return nil, fmt.Errorf("sync: a target collection or a parent document is required: %w", bridge.ErrConfigInvalid)
	}

	if cfg.Enricher == nil {
		cfg.Enricher = enrich.Disabled()
	}
	if cfg.Identity == "" {
		cfg.Identity = cfg.Placement.String()
	}
	if cfg.Guard == nil {
		cfg.Guard = NewGuard()
	}
	if cfg.Observer == nil {
		cfg.Observer = Observers(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	return &Syncer{
		source:    cfg.Source,
		sink:      cfg.Sink,
		store:     cfg.Store,
		enricher:  cfg.Enricher,
		placement: cfg.Placement,
		identity:  cfg.Identity,
		guard:     cfg.Guard,
		observer:  cfg.Observer,
		logger:    cfg.Logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// Identity returns the run guard key.
func (s *Syncer) Identity() string {
	return s.identity
}

// Placement returns the placement target.
func (s *Syncer) Placement() Placement {
	return s.placement
}

// Running reports whether a run with this Syncer's identity is in flight.
func (s *Syncer) Running() bool {
	return s.guard.Running(s.identity)
}

// Run executes one sync run.
//
// It returns ErrRunInProgress if a run with the same identity is in flight,
// an error wrapping bridge.ErrConfigInvalid for non-positive MaxItems, and an
// error wrapping bridge.ErrSourceUnavailable if the batch cannot be fetched.
// In all three cases the report is nil and the dedup record is untouched.
// Otherwise the report holds one outcome per fetched item, in fetch order.
func (s *Syncer) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	if opts.MaxItems <= 0 {
		return nil, fmt.Errorf("sync: max items must be positive, got %d: %w", opts.MaxItems, bridge.ErrConfigInvalid)
	}

	release, ok := s.guard.TryAcquire(s.identity)
	if !ok {
		s.logger.Printf("Run dropped: another run for %s is in progress", s.placement)
		return nil, ErrRunInProgress
	}
	defer release()

	report := newReport(s.newID(), s.now())
	s.observer.RunStarted(report.RunID, opts)
	s.logger.Printf("Run %s started: max=%d skipProcessed=%t target=%s",
		report.RunID, opts.MaxItems, opts.SkipProcessed, s.placement)

	record := s.store.Load(ctx)

	items, err := s.source.CollectionItems(ctx, opts.MaxItems)
	if err != nil {
		err = fmt.Errorf("sync: fetch items: %w", err)
		s.logger.Printf("Run %s failed: %v", report.RunID, err)
		s.observer.RunFailed(report.RunID, err)
		return nil, err
	}
	if len(items) > opts.MaxItems {
		items = items[:opts.MaxItems]
	}

	for i := range items {
		outcome := s.process(ctx, &items[i], record, opts)
		report.add(outcome)
		s.observer.ItemProcessed(report.RunID, i, len(items), outcome)
	}

	report.Duration = s.now().Sub(report.StartedAt)
	s.logger.Printf("Run %s complete: created=%d skipped=%d failed=%d (%s)",
		report.RunID, report.Created, report.Skipped, report.Failed, report.Duration.Round(time.Millisecond))
	s.observer.RunCompleted(report)

	return report, nil
}

// process takes one item to a terminal outcome. It never aborts the batch:
// errors and panics from the collaborators become StatusError outcomes.
func (s *Syncer) process(ctx context.Context, item *bridge.Item, record *state.Record, opts RunOptions) (outcome Outcome) {
	title := DisplayTitle(item.Title)

	if opts.SkipProcessed && record.Has(item.Key) {
		return skipped(item.Key, title)
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("ERROR: panic while processing item %s: %v", item.Key, r)
			outcome = failed(item.Key, title, fmt.Errorf("panic: %v", r))
		}
	}()

	fields := Transform(item)
	note := Render(fields, s.summarize(ctx, fields))

	if err := s.submit(ctx, note); err != nil {
		s.logger.Printf("ERROR: Failed to create note for item %s: %v", item.Key, err)
		return failed(item.Key, title, err)
	}

	// The note exists now. Record it even if the run was cancelled while the
	// sink call was in flight, or the next run creates it again.
	if err := s.store.MarkProcessed(context.WithoutCancel(ctx), item.Key); err != nil {
		s.logger.Printf("ERROR: Note for item %s created but not recorded: %v", item.Key, err)
		return failed(item.Key, title, fmt.Errorf("note created but not recorded as processed: %w", err))
	}
	record.Add(item.Key, s.now())

	s.logger.Printf("Created note for item %s (%s)", item.Key, title)
	return created(item.Key, title)
}

func (s *Syncer) summarize(ctx context.Context, f Fields) string {
	if !s.enricher.Enabled() {
		return DisabledSummaryPlaceholder
	}
	return s.enricher.GenerateSummary(ctx, f.Title, f.Abstract)
}

// submit applies the placement policy. There is no fallback to the other
// mode.
func (s *Syncer) submit(ctx context.Context, note Note) error {
	if s.placement.UsesCollection() {
		return s.sink.CreateCollectionItem(ctx, s.placement.CollectionID, note.Title, note.Body)
	}
	return s.sink.CreateNote(ctx, note.Title, note.Body, note.Tags)
}
