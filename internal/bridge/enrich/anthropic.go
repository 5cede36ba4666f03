package enrich

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicDefaultMaxTokens bounds summary length; the Messages API
// requires an explicit limit.
const anthropicDefaultMaxTokens = 1024

// anthropicCompleter uses the Anthropic Messages API.
type anthropicCompleter struct {
	client anthropic.Client
	model  string
}

func newAnthropic(cfg Config) *anthropicCompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.HTTPClient),
		// Retries belong to the caller's schedule, not to a single item.
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.Endpoint, "/")+"/"))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	return &anthropicCompleter{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (a *anthropicCompleter) complete(ctx context.Context, c completion) (string, error) {
	maxTokens := c.MaxTokens
	if maxTokens == 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(c.Prompt)),
		},
	}
	if c.Temperature > 0 {
		params.Temperature = anthropic.Float(c.Temperature)
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", failure("%v", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
