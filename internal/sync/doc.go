// Package sync is the orchestration engine of the Zotero to Craft bridge.
//
// Overview
//
// One run pulls a bounded batch of items from the Source, skips the ones the
// dedup store already knows, renders each remaining item as a markdown note
// (optionally with a generated summary) and creates it in the Sink. The key of
// every created item is recorded immediately after the Sink confirms creation.
//
//	Source.CollectionItems(maxItems)
//	     │
//	     ▼
//	for each item, in fetch order:
//	     dedup check ──► skipped
//	     transform ─► enrich ─► render ─► submit ──► error
//	                                        │
//	                                        ▼
//	                             Store.MarkProcessed ──► created
//
// Failure model
//
// Only a failed fetch aborts a run: Run returns the error (wrapping
// bridge.ErrSourceUnavailable), no report and no state change. Everything that
// goes wrong for a single item becomes an Outcome with StatusError and the run
// continues with the next item.
//
// Placement
//
// Placement is fixed per Syncer. With a target collection the note is created
// as a collection entry, otherwise as a sub-page of the parent document. A
// failure of the chosen mode is terminal for the item; the other mode is
// never tried.
//
// Overlapping runs
//
// Runs are serialized per configuration identity by a Guard. A run requested
// while another run with the same identity is in flight is dropped and Run
// returns ErrRunInProgress without touching any collaborator.
//
// Usage
//
//	syncer, err := sync.New(sync.Config{
//	    Source:    zoteroClient,
//	    Sink:      craftClient,
//	    Enricher:  enricher,
//	    Store:     store,
//	    Placement: sync.Placement{CollectionID: "col-1"},
//	})
//	if err != nil {
//	    return err
//	}
//	report, err := syncer.Run(ctx, sync.DefaultRunOptions())
package sync
