package providers

import (
	"context"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/config"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

const defaultPerplexityEndpoint = "https://api.perplexity.ai/chat/completions"

type perplexity struct {
	adapter
}

func newPerplexity(a adapter) *perplexity {
	a.defaults(config.DefaultPerplexityModel, defaultPerplexityEndpoint)
	return &perplexity{adapter: a}
}

func (p *perplexity) Platform() model.Platform { return model.Perplexity }

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

func (p *perplexity) Call(ctx context.Context, query string) (*Response, error) {
	raw, err := postJSON(ctx, p.client, call{
		platform: model.Perplexity,
		model:    p.model,
		url:      p.endpoint,
		headers:  map[string]string{"Authorization": "Bearer " + p.apiKey},
		body: chatRequest{
			Model: p.model,
			Messages: []chatMessage{
				{Role: "system", Content: p.system},
				{Role: "user", Content: query},
			},
			MaxTokens: defaultMaxTokens,
		},
	})
	if err != nil {
		return nil, err
	}
	return response(raw, "choices.0.message.content", "usage.prompt_tokens", "usage.completion_tokens"), nil
}
