package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/zotero2craft/zotero2craft/internal/bridge"
)

var quiet = log.New(io.Discard, "", 0)

// openAIServer fakes a chat completions endpoint and counts requests.
func openAIServer(t *testing.T, status int, content string) (*httptest.Server, *atomic.Int32, *chatRequest) {
	t.Helper()

	var calls atomic.Int32
	var last chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&last); err != nil {
			t.Errorf("decode: %v", err)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(server.Close)
	return server, &calls, &last
}

func newOpenAIEnricher(t *testing.T, endpoint string) *Enricher {
	t.Helper()

	e, err := New(Config{
		Enabled:  true,
		Provider: ProviderOpenAI,
		Endpoint: endpoint,
		APIKey:   "sk-test",
		Logger:   quiet,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Enabled: true, Logger: quiet}); !errors.Is(err, bridge.ErrConfigInvalid) {
		t.Errorf("missing key: expected ErrConfigInvalid, got %v", err)
	}
	if _, err := New(Config{Enabled: true, APIKey: "k", Provider: "bard", Logger: quiet}); !errors.Is(err, bridge.ErrConfigInvalid) {
		t.Errorf("unknown provider: expected ErrConfigInvalid, got %v", err)
	}
	if _, err := New(Config{Enabled: false, Logger: quiet}); err != nil {
		t.Errorf("disabled enricher needs no credentials: %v", err)
	}
}

func TestDisabled(t *testing.T) {
	e := Disabled()
	if e.Enabled() {
		t.Error("Disabled() reports enabled")
	}
	if !e.TestConnection(context.Background()) {
		t.Error("disabled TestConnection must be vacuously true")
	}
	if got := e.GenerateSummary(context.Background(), "T", "abstract"); got != "" {
		t.Errorf("disabled GenerateSummary = %q, want empty", got)
	}
}

func TestGenerateSummary(t *testing.T) {
	server, calls, last := openAIServer(t, http.StatusOK, "  A short summary.\n\n- one\n- two\n- three\n ")
	e := newOpenAIEnricher(t, server.URL)

	got := e.GenerateSummary(context.Background(), "Paper", "We study things.")
	if got != "A short summary.\n\n- one\n- two\n- three" {
		t.Errorf("summary not trimmed: %q", got)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
	if last.Model != DefaultOpenAIModel {
		t.Errorf("model = %q, want default", last.Model)
	}
	if last.Temperature != summaryTemperature {
		t.Errorf("temperature = %v", last.Temperature)
	}
	if len(last.Messages) != 1 || !strings.Contains(last.Messages[0].Content, "Abstract: We study things.") {
		t.Errorf("prompt missing abstract: %+v", last.Messages)
	}
}

func TestGenerateSummaryDebug(t *testing.T) {
	server, _, _ := openAIServer(t, http.StatusOK, "Summary.")
	e := newOpenAIEnricher(t, server.URL)
	var buf bytes.Buffer
	e.debug = log.New(&buf, "", 0)

	e.GenerateSummary(context.Background(), "Paper", "We study things.")
	if !strings.Contains(buf.String(), `Summary for "Paper": 8 chars`) {
		t.Errorf("debug output = %q", buf.String())
	}
}

func TestGenerateSummaryEmptyAbstract(t *testing.T) {
	server, calls, _ := openAIServer(t, http.StatusOK, "unused")
	e := newOpenAIEnricher(t, server.URL)

	if got := e.GenerateSummary(context.Background(), "Paper", ""); got != NoAbstractPlaceholder {
		t.Errorf("got %q, want no-abstract placeholder", got)
	}
	if calls.Load() != 0 {
		t.Errorf("no request expected for empty abstract, got %d", calls.Load())
	}
}

func TestGenerateSummaryFailures(t *testing.T) {
	server, _, _ := openAIServer(t, http.StatusInternalServerError, "")
	e := newOpenAIEnricher(t, server.URL)
	if got := e.GenerateSummary(context.Background(), "Paper", "abs"); got != FailedPlaceholder {
		t.Errorf("non-2xx: got %q, want failure placeholder", got)
	}

	malformed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>")
	}))
	defer malformed.Close()
	e = newOpenAIEnricher(t, malformed.URL)
	if got := e.GenerateSummary(context.Background(), "Paper", "abs"); got != FailedPlaceholder {
		t.Errorf("malformed: got %q, want failure placeholder", got)
	}

	e = newOpenAIEnricher(t, "http://127.0.0.1:1")
	if got := e.GenerateSummary(context.Background(), "Paper", "abs"); got != FailedPlaceholder {
		t.Errorf("unreachable: got %q, want failure placeholder", got)
	}
}

func TestTestConnection(t *testing.T) {
	server, _, last := openAIServer(t, http.StatusOK, "pong")
	e := newOpenAIEnricher(t, server.URL)
	if !e.TestConnection(context.Background()) {
		t.Error("expected ping to succeed")
	}
	if last.MaxTokens != pingMaxTokens || last.Messages[0].Content != "Ping" {
		t.Errorf("unexpected ping request %+v", last)
	}

	failing, _, _ := openAIServer(t, http.StatusUnauthorized, "")
	e = newOpenAIEnricher(t, failing.URL)
	if e.TestConnection(context.Background()) {
		t.Error("expected ping to fail on 401")
	}
}

func TestAnthropicProvider(t *testing.T) {
	var gotPath, gotKey string
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "  Generated summary.  "}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`)
	}))
	defer server.Close()

	e, err := New(Config{
		Enabled:  true,
		Provider: ProviderAnthropic,
		Endpoint: server.URL,
		APIKey:   "ak-test",
		Logger:   quiet,
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := e.GenerateSummary(context.Background(), "Paper", "abstract"); got != "Generated summary." {
		t.Errorf("summary = %q", got)
	}
	if gotPath != "/v1/messages" {
		t.Errorf("path = %q, want /v1/messages", gotPath)
	}
	if gotKey != "ak-test" {
		t.Errorf("api key header = %q", gotKey)
	}
	if body["model"] != DefaultAnthropicModel {
		t.Errorf("model = %v", body["model"])
	}
}

func TestAnthropicProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	defer server.Close()

	e, err := New(Config{Enabled: true, Provider: ProviderAnthropic, Endpoint: server.URL, APIKey: "k", Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	if got := e.GenerateSummary(context.Background(), "Paper", "abstract"); got != FailedPlaceholder {
		t.Errorf("got %q, want failure placeholder", got)
	}
	if e.TestConnection(context.Background()) {
		t.Error("expected ping to fail")
	}
}
