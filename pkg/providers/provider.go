// Package providers sends a query to an AI platform and returns the plain
// text answer.
package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/config"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

type Usage struct {
	PromptTokens     int `json:"promptTokens,omitempty"`
	CompletionTokens int `json:"completionTokens,omitempty"`
}

// Response is a platform's answer. Content is empty when the platform
// returned no text; that is not an error.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	Usage   Usage  `json:"usage,omitempty"`
}

// Provider calls one AI platform.
type Provider interface {
	Platform() model.Platform
	Call(ctx context.Context, query string) (*Response, error)
}

// Options tune how adapters reach their platforms.
type Options struct {
	// HTTPClient defaults to NewHTTPClient(Retries, Timeout, Proxy).
	HTTPClient *http.Client
	Retries    int
	Timeout    time.Duration
	Proxy      string

	// UseRelay routes OpenAI calls through RelayURL, sending the key in the body.
	UseRelay bool
	RelayURL string

	// Endpoint overrides the platform's API URL. For Gemini it is the models base.
	Endpoint string
}

const defaultMaxTokens = 1024

// New returns the adapter for platform p.
func New(p model.Platform, creds config.ProviderCredentials, lang config.LanguageConfig, opts Options) (Provider, error) {
	apiKey := strings.TrimSpace(creds.APIKey)
	if apiKey == "" {
		return nil, &ConfigurationError{
			Platform: p,
			Message:  fmt.Sprintf("%s API key not configured. Set it with `aivis config set` or the %s environment variable.", vendor(p), envVar(p)),
		}
	}

	client := opts.HTTPClient
	if client == nil {
		var err error
		if client, err = NewHTTPClient(opts.Retries, opts.Timeout, opts.Proxy); err != nil {
			return nil, &ConfigurationError{Platform: p, Message: err.Error(), Err: err}
		}
	}

	base := adapter{
		apiKey:   apiKey,
		model:    creds.Model,
		endpoint: strings.TrimSpace(opts.Endpoint),
		system:   SystemPrompt(lang),
		client:   client,
	}

	switch p {
	case model.ChatGPT:
		if opts.UseRelay {
			if opts.RelayURL == "" {
				return nil, &ConfigurationError{Platform: p, Message: "relay is enabled but no relay URL is configured"}
			}
			base.endpoint = opts.RelayURL
		}
		return newOpenAI(base, opts.UseRelay), nil
	case model.Claude:
		return newAnthropic(base), nil
	case model.Perplexity:
		return newPerplexity(base), nil
	case model.Gemini:
		return newGemini(base), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", p)
	}
}

// adapter holds what every platform needs.
type adapter struct {
	apiKey   string
	model    string
	endpoint string
	system   string
	client   httpClient
}

func (a *adapter) defaults(model, endpoint string) {
	if a.model == "" {
		a.model = model
	}
	if a.endpoint == "" {
		a.endpoint = endpoint
	}
}

func envVar(p model.Platform) string {
	switch p {
	case model.ChatGPT:
		return config.EnvOpenAIKey
	case model.Claude:
		return config.EnvAnthropicKey
	case model.Perplexity:
		return config.EnvPerplexityKey
	case model.Gemini:
		return config.EnvGoogleKey
	}
	return ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
