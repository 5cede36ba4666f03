package zotero

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zotero2craft/zotero2craft/internal/bridge"
)

const itemsJSON = `[
  {
    "key": "AAAA1111",
    "version": 12,
    "data": {
      "key": "AAAA1111",
      "itemType": "journalArticle",
      "title": "Attention Is All You Need",
      "creators": [
        {"creatorType": "author", "firstName": "Ashish", "lastName": "Vaswani"},
        {"creatorType": "author", "name": "Google Brain"}
      ],
      "date": "2017-06-12",
      "publicationTitle": "NeurIPS",
      "url": "",
      "DOI": "10.48550/arXiv.1706.03762",
      "abstractNote": "The dominant sequence transduction models...",
      "tags": [{"tag": "machine learning"}, {"tag": "nlp", "type": 1}]
    }
  },
  {
    "key": "BBBB2222",
    "data": {"title": "", "creators": []}
  }
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{
		UserID:       "42",
		APIKey:       "secret",
		CollectionID: "COLL",
		BaseURL:      server.URL,
		Logger:       log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRequiresCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing user", Config{APIKey: "k"}},
		{"missing key", Config{UserID: "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if !errors.Is(err, bridge.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestCollectionItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/42/collections/COLL/items/top" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("limit") != "5" || q.Get("sort") != "dateModified" || q.Get("direction") != "desc" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("Zotero-API-Key") != "secret" {
			t.Error("missing API key header")
		}
		if r.Header.Get("Zotero-API-Version") != "3" {
			t.Error("missing API version header")
		}
		_, _ = io.WriteString(w, itemsJSON)
	})

	items, err := c.CollectionItems(context.Background(), 5)
	if err != nil {
		t.Fatalf("CollectionItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Key != "AAAA1111" || first.Title != "Attention Is All You Need" {
		t.Errorf("unexpected first item: %+v", first)
	}
	if first.Link() != "10.48550/arXiv.1706.03762" {
		t.Errorf("Link() = %q, want DOI", first.Link())
	}
	if len(first.Tags) != 2 || first.Tags[0].Tag != "machine learning" {
		t.Errorf("tags not decoded: %+v", first.Tags)
	}
	if got := FormatAuthors(first.Creators); got != "Ashish Vaswani, Google Brain" {
		t.Errorf("FormatAuthors = %q", got)
	}

	if items[1].Key != "BBBB2222" {
		t.Errorf("key should fall back to top-level key, got %q", items[1].Key)
	}
}

func TestCollectionItemsFailures(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	_, err := c.CollectionItems(context.Background(), 10)
	if !errors.Is(err, bridge.ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}

	c.collectionID = ""
	_, err = c.CollectionItems(context.Background(), 10)
	if !errors.Is(err, bridge.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid for missing collection, got %v", err)
	}
}

func TestCollectionItemsMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"not": "a list"}`)
	})

	_, err := c.CollectionItems(context.Background(), 10)
	if !errors.Is(err, bridge.ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestCollections(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/42/collections" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `[{"key":"C1","data":{"key":"C1","name":"Reading"}},{"key":"C2","data":{"name":"Archive"}}]`)
	})

	cols, err := c.Collections(context.Background())
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	want := []bridge.Collection{{Key: "C1", Name: "Reading"}, {Key: "C2", Name: "Archive"}}
	if len(cols) != len(want) {
		t.Fatalf("got %d collections, want %d", len(cols), len(want))
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("collection %d = %+v, want %+v", i, cols[i], want[i])
		}
	}
}

func TestTestConnection(t *testing.T) {
	ok := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/42/items" || r.URL.Query().Get("limit") != "1" {
			t.Errorf("unexpected probe %s", r.URL)
		}
		_, _ = io.WriteString(w, "[]")
	})
	if !ok.TestConnection(context.Background()) {
		t.Error("expected probe to succeed")
	}

	denied := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	if denied.TestConnection(context.Background()) {
		t.Error("expected probe to fail on 403")
	}

	unreachable, err := New(Config{UserID: "1", APIKey: "k", BaseURL: "http://127.0.0.1:1", Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatal(err)
	}
	if unreachable.TestConnection(context.Background()) {
		t.Error("expected probe to fail on transport error")
	}
}

func TestDebugLogsRequests(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "[]")
	})
	var buf bytes.Buffer
	c.debug = log.New(&buf, "", 0)

	if _, err := c.Collections(context.Background()); err != nil {
		t.Fatal(err)
	}
	if out := buf.String(); !strings.Contains(out, "GET /users/42/collections") || !strings.Contains(out, "-> 200") {
		t.Errorf("debug output = %q", out)
	}
	if strings.Contains(buf.String(), "secret") {
		t.Error("debug output leaks the API key")
	}
}
