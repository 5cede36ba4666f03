package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// openAI talks to an OpenAI-compatible chat completions endpoint.
type openAI struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
}

func newOpenAI(cfg Config) *openAI {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultOpenAIEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &openAI{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   cfg.APIKey,
		model:    model,
		http:     cfg.HTTPClient,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (o *openAI) complete(ctx context.Context, c completion) (string, error) {
	body := chatRequest{
		Model:       o.model,
		Messages:    []chatMessage{{Role: "user", Content: c.Prompt}},
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", failure("marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", failure("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.http.Do(req)
	if err != nil {
		return "", failure("%v", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", failure("AI API error: %s", resp.Status)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", failure("decode response: %v", err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}
