package providers

import (
	"context"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/config"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion         = "2023-06-01"
)

type anthropic struct {
	adapter
}

func newAnthropic(a adapter) *anthropic {
	a.defaults(config.DefaultAnthropicModel, defaultAnthropicEndpoint)
	return &anthropic{adapter: a}
}

func (c *anthropic) Platform() model.Platform { return model.Claude }

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system"`
	Messages  []chatMessage `json:"messages"`
}

func (c *anthropic) Call(ctx context.Context, query string) (*Response, error) {
	raw, err := postJSON(ctx, c.client, call{
		platform: model.Claude,
		model:    c.model,
		url:      c.endpoint,
		headers: map[string]string{
			"x-api-key":         c.apiKey,
			"anthropic-version": anthropicVersion,
		},
		body: anthropicRequest{
			Model:     c.model,
			MaxTokens: defaultMaxTokens,
			System:    c.system,
			Messages:  []chatMessage{{Role: "user", Content: query}},
		},
	})
	if err != nil {
		return nil, err
	}
	return response(raw, "content.0.text", "usage.input_tokens", "usage.output_tokens"), nil
}
