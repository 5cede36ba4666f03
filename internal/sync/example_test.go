package sync_test

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/zotero2craft/zotero2craft/internal/bridge"
	"github.com/zotero2craft/zotero2craft/internal/state/memory"
	"github.com/zotero2craft/zotero2craft/internal/sync"
)

type library []bridge.Item

func (l library) TestConnection(context.Context) bool { return true }

func (l library) Collections(context.Context) ([]bridge.Collection, error) { return nil, nil }

func (l library) CollectionItems(_ context.Context, limit int) ([]bridge.Item, error) {
	if limit < len(l) {
		return l[:limit], nil
	}
	return l, nil
}

type notebook struct{}

func (notebook) TestConnection(context.Context) bool { return true }

func (notebook) Collections(context.Context) ([]bridge.SinkCollection, error) { return nil, nil }

func (notebook) CreateCollectionItem(context.Context, string, string, string) error { return nil }

func (notebook) CreateNote(_ context.Context, title, _ string, tags []string) error {
	fmt.Printf("note %q %v\n", title, tags)
	return nil
}

// This example runs the same batch twice against an in-memory dedup store.
// The second run skips both items.
func ExampleSyncer_Run() {
	syncer, err := sync.New(sync.Config{
		Source: library{
			{Key: "AAAA1111", Title: "Attention Is All You Need", Tags: []bridge.Tag{{Tag: "deep learning"}}},
			{Key: "BBBB2222"},
		},
		Sink:      notebook{},
		Store:     memory.New(),
		Placement: sync.Placement{ParentDocumentID: "reading-notes"},
		Logger:    log.New(io.Discard, "", 0),
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		report, err := syncer.Run(ctx, sync.DefaultRunOptions())
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("created=%d skipped=%d failed=%d\n", report.Created, report.Skipped, report.Failed)
	}

	// Output:
	// note "Attention Is All You Need" [#deep_learning]
	// note "Untitled" []
	// created=2 skipped=0 failed=0
	// created=0 skipped=2 failed=0
}
