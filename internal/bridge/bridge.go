// Package bridge defines the shared vocabulary of the Zotero to Craft sync
// bridge: the item model pulled from the reference manager, the collection
// descriptors of both services, and the adapter interfaces the orchestrator
// drives.
//
// Implementations live in subpackages:
//
//	bridge/zotero  Source (Zotero Web API v3)
//	bridge/craft   Sink (Craft Connect API)
//	bridge/enrich  Enricher (OpenAI-compatible or Anthropic summaries)
//
// Every adapter method takes a context.Context and performs at most the
// network round trips it documents. Adapters never call back into the
// orchestrator.
package bridge

import "context"

// Creator is a single author/editor entry of a source item.
// Either Name is set (single-field creators such as institutions),
// or FirstName/LastName.
type Creator struct {
	CreatorType string `json:"creatorType,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"`
}

// Tag is a free-text tag attached to a source item.
type Tag struct {
	Tag  string `json:"tag"`
	Type int    `json:"type,omitempty"`
}

// Item is a bibliographic item fetched from the Source.
// Items are immutable once fetched; the orchestrator only reads them.
type Item struct {
	// Key is the stable identifier of the item within the Source library.
	Key string

	Title            string
	Creators         []Creator
	Date             string
	PublicationTitle string
	URL              string
	DOI              string
	AbstractNote     string
	Tags             []Tag
}

// Link returns the item URL, falling back to the DOI.
func (i *Item) Link() string {
	if i.URL != "" {
		return i.URL
	}
	return i.DOI
}

// Collection is a Source collection descriptor.
type Collection struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// SinkCollection is a Sink collection descriptor.
// ContainerID is the document that holds the collection.
type SinkCollection struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContainerID string `json:"containerId"`
}

// Source fetches candidate items from the reference manager.
type Source interface {
	// TestConnection issues a minimal read. It never returns an error;
	// any failure is reported as false.
	TestConnection(ctx context.Context) bool

	// Collections lists all collections visible to the credentials.
	// Failures wrap ErrSourceUnavailable.
	Collections(ctx context.Context) ([]Collection, error)

	// CollectionItems returns up to limit top-level items of the configured
	// collection, most recently modified first. Failures wrap
	// ErrSourceUnavailable.
	CollectionItems(ctx context.Context, limit int) ([]Item, error)
}

// Sink creates documents in the note-taking service.
type Sink interface {
	// TestConnection issues a read-only probe and reports success.
	TestConnection(ctx context.Context) bool

	// Collections lists the Sink collections. Failures wrap ErrSinkUnavailable.
	Collections(ctx context.Context) ([]SinkCollection, error)

	// CreateCollectionItem creates a structured entry inside collectionID.
	// Failures wrap ErrSinkWriteFailed.
	CreateCollectionItem(ctx context.Context, collectionID, title, body string) error

	// CreateNote creates a sub-page under the configured parent document,
	// tagged with tags. Failures wrap ErrSinkWriteFailed.
	CreateNote(ctx context.Context, title, body string, tags []string) error
}

// Enricher produces generated summaries for items.
type Enricher interface {
	// Enabled reports whether enrichment is configured on.
	Enabled() bool

	// TestConnection is vacuously true when disabled.
	TestConnection(ctx context.Context) bool

	// GenerateSummary never fails: disabled enrichers return "", and
	// failures degrade to a fixed placeholder string.
	GenerateSummary(ctx context.Context, title, abstract string) string
}
