// Package zotero implements the bridge.Source adapter over the Zotero Web API v3.
//
// Only three endpoints are used:
//
//	GET /users/{userId}/items?limit=1                                   connection probe
//	GET /users/{userId}/collections                                     collection listing
//	GET /users/{userId}/collections/{collectionId}/items/top?limit=N    candidate items
//
// Items are requested sorted by dateModified descending, which gives a
// stable newest-first ordering between runs.
package zotero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zotero2craft/zotero2craft/internal/bridge"
)

// DefaultBaseURL is the public Zotero API.
const DefaultBaseURL = "https://api.zotero.org"

// apiVersion is sent as the Zotero-API-Version header.
const apiVersion = "3"

// Config holds the Zotero credentials and collection selector.
type Config struct {
	UserID       string
	APIKey       string
	CollectionID string

	// BaseURL overrides DefaultBaseURL (tests, self-hosted proxies).
	BaseURL string

	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client

	// Logger defaults to stderr with a "[zotero] " prefix.
	Logger *log.Logger

	// Debug receives one line per request. Nil drops them.
	Debug *log.Logger
}

// Client is a Zotero API client. It implements bridge.Source.
type Client struct {
	userID       string
	apiKey       string
	collectionID string
	baseURL      string
	http         *http.Client
	logger       *log.Logger
	debug        *log.Logger
}

var _ bridge.Source = (*Client)(nil)

// New creates a client. It fails with bridge.ErrConfigInvalid when the user
// id or API key is missing, before any network call.
func New(cfg Config) (*Client, error) {
	if cfg.UserID == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("zotero: user id and API key are required: %w", bridge.ErrConfigInvalid)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[zotero] ", log.LstdFlags)
	}
	if cfg.Debug == nil {
		cfg.Debug = log.New(io.Discard, "", 0)
	}

	return &Client{
		userID:       cfg.UserID,
		apiKey:       cfg.APIKey,
		collectionID: cfg.CollectionID,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		http:         cfg.HTTPClient,
		logger:       cfg.Logger,
		debug:        cfg.Debug,
	}, nil
}

// itemEnvelope is the wire shape of one entry of an items response.
type itemEnvelope struct {
	Key  string   `json:"key"`
	Data itemData `json:"data"`
}

type itemData struct {
	Key              string           `json:"key"`
	Title            string           `json:"title"`
	Creators         []bridge.Creator `json:"creators"`
	Date             string           `json:"date"`
	PublicationTitle string           `json:"publicationTitle"`
	URL              string           `json:"url"`
	DOI              string           `json:"DOI"`
	AbstractNote     string           `json:"abstractNote"`
	Tags             []bridge.Tag     `json:"tags"`
}

// collectionEnvelope is the wire shape of one entry of a collections response.
type collectionEnvelope struct {
	Key  string `json:"key"`
	Data struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"data"`
}

// TestConnection fetches a single item to verify credentials and access.
func (c *Client) TestConnection(ctx context.Context) bool {
	resp, err := c.get(ctx, fmt.Sprintf("/users/%s/items", url.PathEscape(c.userID)), url.Values{"limit": {"1"}})
	if err != nil {
		c.logger.Printf("Connection test failed: %v", err)
		return false
	}
	defer drain(resp)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Collections implements bridge.Source.
func (c *Client) Collections(ctx context.Context) ([]bridge.Collection, error) {
	var envelopes []collectionEnvelope
	path := fmt.Sprintf("/users/%s/collections", url.PathEscape(c.userID))
	if err := c.getJSON(ctx, path, nil, &envelopes); err != nil {
		return nil, fmt.Errorf("failed to fetch Zotero collections: %w", err)
	}

	collections := make([]bridge.Collection, 0, len(envelopes))
	for _, e := range envelopes {
		key := e.Key
		if key == "" {
			key = e.Data.Key
		}
		collections = append(collections, bridge.Collection{Key: key, Name: e.Data.Name})
	}
	return collections, nil
}

// CollectionItems implements bridge.Source.
func (c *Client) CollectionItems(ctx context.Context, limit int) ([]bridge.Item, error) {
	if c.collectionID == "" {
		return nil, fmt.Errorf("zotero: collection id is required: %w", bridge.ErrConfigInvalid)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("zotero: limit must be positive (got %d): %w", limit, bridge.ErrConfigInvalid)
	}

	path := fmt.Sprintf("/users/%s/collections/%s/items/top",
		url.PathEscape(c.userID), url.PathEscape(c.collectionID))
	query := url.Values{
		"limit":     {strconv.Itoa(limit)},
		"sort":      {"dateModified"},
		"direction": {"desc"},
	}

	var envelopes []itemEnvelope
	if err := c.getJSON(ctx, path, query, &envelopes); err != nil {
		return nil, fmt.Errorf("failed to fetch Zotero items: %w", err)
	}

	items := make([]bridge.Item, 0, len(envelopes))
	for _, e := range envelopes {
		key := e.Key
		if key == "" {
			key = e.Data.Key
		}
		items = append(items, bridge.Item{
			Key:              key,
			Title:            e.Data.Title,
			Creators:         e.Data.Creators,
			Date:             e.Data.Date,
			PublicationTitle: e.Data.PublicationTitle,
			URL:              e.Data.URL,
			DOI:              e.Data.DOI,
			AbstractNote:     e.Data.AbstractNote,
			Tags:             e.Data.Tags,
		})
	}
	return items, nil
}

// getJSON performs a GET and decodes a 2xx body into out. Every failure is
// wrapped with bridge.ErrSourceUnavailable.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.get(ctx, path, query)
	if err != nil {
		return fmt.Errorf("%w: %v", bridge.ErrSourceUnavailable, err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s", bridge.ErrSourceUnavailable, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", bridge.ErrSourceUnavailable, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Zotero-API-Key", c.apiKey)
	req.Header.Set("Zotero-API-Version", apiVersion)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.debug.Printf("GET %s: %v", req.URL.RequestURI(), err)
		return nil, err
	}
	c.debug.Printf("GET %s -> %d (%s)", req.URL.RequestURI(), resp.StatusCode, time.Since(start).Round(time.Millisecond))
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
