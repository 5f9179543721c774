package providers

import (
	"context"
	"strings"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/config"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

type openAI struct {
	adapter
	relay bool
}

func newOpenAI(a adapter, relay bool) *openAI {
	a.defaults(config.DefaultOpenAIModel, defaultOpenAIEndpoint)
	return &openAI{adapter: a, relay: relay}
}

func (o *openAI) Platform() model.Platform { return model.ChatGPT }

// usesCompletionTokens reports whether the model family rejects max_tokens
// and a custom temperature.
func usesCompletionTokens(m string) bool {
	m = strings.ToLower(m)
	for _, prefix := range []string{"gpt-5", "o1", "o3", "o4"} {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

func (o *openAI) requestBody(query string) map[string]interface{} {
	body := map[string]interface{}{
		"model": o.model,
		"messages": []chatMessage{
			{Role: "system", Content: o.system},
			{Role: "user", Content: query},
		},
	}
	if usesCompletionTokens(o.model) {
		body["max_completion_tokens"] = defaultMaxTokens * 4
	} else {
		body["max_tokens"] = defaultMaxTokens
		body["temperature"] = 0.7
	}
	return body
}

func (o *openAI) Call(ctx context.Context, query string) (*Response, error) {
	body := o.requestBody(query)
	headers := map[string]string{}
	if o.relay {
		body["apiKey"] = o.apiKey
	} else {
		headers["Authorization"] = "Bearer " + o.apiKey
	}

	raw, err := postJSON(ctx, o.client, call{
		platform: model.ChatGPT,
		model:    o.model,
		url:      o.endpoint,
		headers:  headers,
		body:     body,
		relay:    o.relay,
	})
	if err != nil {
		return nil, err
	}
	return response(raw, "choices.0.message.content", "usage.prompt_tokens", "usage.completion_tokens"), nil
}
