// Package enrich implements the bridge.Enricher adapter: short generated
// summaries of paper abstracts.
//
// Two providers are supported:
//
//	openai     any OpenAI-compatible POST {endpoint}/chat/completions
//	anthropic  the Anthropic Messages API via anthropic-sdk-go
//
// The Enricher never returns errors. A disabled enricher returns "" and makes
// no network calls; an empty abstract yields NoAbstractPlaceholder without a
// request; every failure degrades to FailedPlaceholder and is logged.
package enrich

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/zotero2craft/zotero2craft/internal/bridge"
)

// Placeholders substituted for generated text.
const (
	NoAbstractPlaceholder = "_No abstract available for summary._"
	FailedPlaceholder     = "_AI summary generation failed._"
)

// Provider names a completion backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Default models per provider.
const (
	DefaultOpenAIModel    = "gpt-3.5-turbo"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultOpenAIEndpoint = "https://api.openai.com/v1"
)

const (
	summaryTemperature = 0.7
	pingMaxTokens      = 5
)

// Config holds the enrichment credentials and switches.
type Config struct {
	Enabled  bool
	Provider Provider
	Endpoint string
	APIKey   string
	Model    string

	// HTTPClient defaults to a client with a 60 second timeout.
	HTTPClient *http.Client

	// Logger defaults to stderr with an "[enrich] " prefix.
	Logger *log.Logger

	// Debug receives one line per completion. Nil drops them.
	Debug *log.Logger
}

// completion is a single-turn request. Zero MaxTokens and Temperature leave
// the provider defaults in place.
type completion struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// completer performs one completion round trip.
type completer interface {
	complete(ctx context.Context, req completion) (string, error)
}

// Enricher implements bridge.Enricher.
type Enricher struct {
	enabled   bool
	completer completer
	logger    *log.Logger
	debug     *log.Logger
}

var _ bridge.Enricher = (*Enricher)(nil)

// New creates an enricher. When cfg.Enabled is false no credentials are
// required. When enabled, a missing API key or unknown provider fails with
// bridge.ErrConfigInvalid.
func New(cfg Config) (*Enricher, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[enrich] ", log.LstdFlags)
	}
	if cfg.Debug == nil {
		cfg.Debug = log.New(io.Discard, "", 0)
	}
	e := &Enricher{enabled: cfg.Enabled, logger: cfg.Logger, debug: cfg.Debug}
	if !cfg.Enabled {
		return e, nil
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("enrich: API key is required when enrichment is enabled: %w", bridge.ErrConfigInvalid)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}

	switch cfg.Provider {
	case ProviderOpenAI, "":
		e.completer = newOpenAI(cfg)
	case ProviderAnthropic:
		e.completer = newAnthropic(cfg)
	default:
		return nil, fmt.Errorf("enrich: unknown provider %q: %w", cfg.Provider, bridge.ErrConfigInvalid)
	}
	return e, nil
}

// Disabled returns an enricher that never calls out.
func Disabled() *Enricher {
	return &Enricher{
		logger: log.New(os.Stderr, "[enrich] ", log.LstdFlags),
		debug:  log.New(io.Discard, "", 0),
	}
}

// Enabled implements bridge.Enricher.
func (e *Enricher) Enabled() bool {
	return e.enabled
}

// TestConnection implements bridge.Enricher.
func (e *Enricher) TestConnection(ctx context.Context) bool {
	if !e.enabled {
		return true
	}
	if _, err := e.completer.complete(ctx, completion{Prompt: "Ping", MaxTokens: pingMaxTokens}); err != nil {
		e.logger.Printf("Connection test failed: %v", err)
		return false
	}
	return true
}

// GenerateSummary implements bridge.Enricher.
func (e *Enricher) GenerateSummary(ctx context.Context, title, abstract string) string {
	if !e.enabled {
		return ""
	}
	if abstract == "" {
		return NoAbstractPlaceholder
	}

	start := time.Now()
	text, err := e.completer.complete(ctx, completion{
		Prompt:      SummaryPrompt(title, abstract),
		Temperature: summaryTemperature,
	})
	if err != nil {
		e.logger.Printf("Error generating summary for %q: %v", title, err)
		return FailedPlaceholder
	}
	e.debug.Printf("Summary for %q: %d chars in %s", title, len(text), time.Since(start).Round(time.Millisecond))
	return strings.TrimSpace(text)
}

// SummaryPrompt renders the fixed instruction template.
func SummaryPrompt(title, abstract string) string {
	return fmt.Sprintf(`You are a research assistant. Please summarize the following academic paper.

Title: %s
Abstract: %s

Format your response as markdown:
1. A concise summary paragraph (approx 3-4 sentences).
2. A list of 3 key takeaways/ideas.

Do not include the "Summary" header, just the content.`, title, abstract)
}

// failure wraps a provider error with bridge.ErrEnrichmentFailed.
func failure(format string, args ...any) error {
	return fmt.Errorf("%w: %s", bridge.ErrEnrichmentFailed, fmt.Sprintf(format, args...))
}
