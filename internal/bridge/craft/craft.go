// Package craft implements the bridge.Sink adapter over the Craft Connect API.
//
// Endpoints, relative to https://connect.craft.do/links/{linkId}/api/v1:
//
//	GET  /collections                  list collections ({items: [...]})
//	POST /collections/{id}/items       create a structured collection entry
//	POST /blocks                       insert a page block under the parent document
//
// Note bodies are markdown; they are split into Craft blocks with
// MarkdownToBlocks before submission.
package craft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/zotero2craft/zotero2craft/internal/bridge"
)

// DefaultBaseURLFormat is expanded with the link id.
const DefaultBaseURLFormat = "https://connect.craft.do/links/%s/api/v1"

// Config holds the Craft credentials and the fallback placement parent.
type Config struct {
	LinkID           string
	APIKey           string
	ParentDocumentID string

	// BaseURL overrides the link-derived API root.
	BaseURL string

	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client

	// Logger defaults to stderr with a "[craft] " prefix.
	Logger *log.Logger

	// Debug receives one line per request. Nil drops them.
	Debug *log.Logger
}

// Client is a Craft Connect API client. It implements bridge.Sink.
type Client struct {
	apiKey   string
	parentID string
	baseURL  string
	http     *http.Client
	logger   *log.Logger
	debug    *log.Logger
}

var _ bridge.Sink = (*Client)(nil)

// New creates a client. It fails with bridge.ErrConfigInvalid when the API
// key is missing or no API root can be derived.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("craft: API key is required: %w", bridge.ErrConfigInvalid)
	}
	if cfg.BaseURL == "" {
		if cfg.LinkID == "" {
			return nil, fmt.Errorf("craft: link id is required: %w", bridge.ErrConfigInvalid)
		}
		cfg.BaseURL = fmt.Sprintf(DefaultBaseURLFormat, url.PathEscape(cfg.LinkID))
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[craft] ", log.LstdFlags)
	}
	if cfg.Debug == nil {
		cfg.Debug = log.New(io.Discard, "", 0)
	}

	return &Client{
		apiKey:   cfg.APIKey,
		parentID: cfg.ParentDocumentID,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     cfg.HTTPClient,
		logger:   cfg.Logger,
		debug:    cfg.Debug,
	}, nil
}

type collectionWire struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DocumentID string `json:"documentId"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

type collectionItem struct {
	Title   string  `json:"title"`
	Content []Block `json:"content,omitempty"`
}

type createItemsRequest struct {
	Items []collectionItem `json:"items"`
}

type insertBlocksRequest struct {
	Blocks   []Block  `json:"blocks"`
	Position Position `json:"position"`
}

// TestConnection lists collections and reports success.
func (c *Client) TestConnection(ctx context.Context) bool {
	if _, err := c.Collections(ctx); err != nil {
		c.logger.Printf("Connection test failed: %v", err)
		return false
	}
	return true
}

// Collections implements bridge.Sink.
func (c *Client) Collections(ctx context.Context) ([]bridge.SinkCollection, error) {
	resp, err := c.do(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Craft collections: %w: %v", bridge.ErrSinkUnavailable, err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch Craft collections: %w: %s", bridge.ErrSinkUnavailable, resp.Status)
	}

	var body listResponse[collectionWire]
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode Craft collections: %w: %v", bridge.ErrSinkUnavailable, err)
	}

	collections := make([]bridge.SinkCollection, 0, len(body.Items))
	for _, col := range body.Items {
		collections = append(collections, bridge.SinkCollection{
			ID:          col.ID,
			Name:        col.Name,
			ContainerID: col.DocumentID,
		})
	}
	return collections, nil
}

// CreateCollectionItem implements bridge.Sink.
func (c *Client) CreateCollectionItem(ctx context.Context, collectionID, title, body string) error {
	if collectionID == "" {
		return fmt.Errorf("craft: collection id is required: %w", bridge.ErrConfigInvalid)
	}

	req := createItemsRequest{
		Items: []collectionItem{{
			Title:   title,
			Content: MarkdownToBlocks(body),
		}},
	}
	path := "/collections/" + url.PathEscape(collectionID) + "/items"
	if err := c.write(ctx, path, req); err != nil {
		return fmt.Errorf("failed to create collection item %q: %w", title, err)
	}

	c.logger.Printf("Created collection item: %s (collection %s)", title, collectionID)
	return nil
}

// CreateNote implements bridge.Sink. The note is a page block appended to
// the end of the configured parent document; tags are rendered as a final
// line of hashtags.
func (c *Client) CreateNote(ctx context.Context, title, body string, tags []string) error {
	if c.parentID == "" {
		return fmt.Errorf("craft: parent document id is required: %w", bridge.ErrConfigInvalid)
	}

	content := MarkdownToBlocks(body)
	if len(tags) > 0 {
		content = append(content, Block{Type: "text", Markdown: strings.Join(tags, " ")})
	}

	req := insertBlocksRequest{
		Blocks: []Block{{
			Type:      "text",
			TextStyle: "page",
			Markdown:  title,
			Content:   content,
		}},
		Position: Position{Position: "end", PageID: c.parentID},
	}
	if err := c.write(ctx, "/blocks", req); err != nil {
		return fmt.Errorf("failed to create note %q: %w", title, err)
	}

	c.logger.Printf("Created note: %s (parent %s)", title, c.parentID)
	return nil
}

// write POSTs payload and wraps every failure with bridge.ErrSinkWriteFailed.
func (c *Client) write(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", bridge.ErrSinkWriteFailed, err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, data)
	if err != nil {
		return fmt.Errorf("%w: %v", bridge.ErrSinkWriteFailed, err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if len(msg) > 0 {
			return fmt.Errorf("%w: %s: %s", bridge.ErrSinkWriteFailed, resp.Status, strings.TrimSpace(string(msg)))
		}
		return fmt.Errorf("%w: %s", bridge.ErrSinkWriteFailed, resp.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.debug.Printf("%s %s: %v", method, path, err)
		return nil, err
	}
	c.debug.Printf("%s %s (%d bytes) -> %d (%s)", method, path, len(body), resp.StatusCode, time.Since(start).Round(time.Millisecond))
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
