package providers

import (
	"context"
	"net/url"
	"strings"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/config"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

type gemini struct {
	adapter
}

func newGemini(a adapter) *gemini {
	a.defaults(config.DefaultGoogleModel, defaultGeminiEndpoint)
	return &gemini{adapter: a}
}

func (g *gemini) Platform() model.Platform { return model.Gemini }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		MaxOutputTokens int `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

func (g *gemini) url() string {
	return strings.TrimRight(g.endpoint, "/") + "/" + url.PathEscape(g.model) + ":generateContent?key=" + url.QueryEscape(g.apiKey)
}

func (g *gemini) Call(ctx context.Context, query string) (*Response, error) {
	req := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: g.system}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: query}}}},
	}
	req.GenerationConfig.MaxOutputTokens = defaultMaxTokens

	raw, err := postJSON(ctx, g.client, call{
		platform: model.Gemini,
		model:    g.model,
		url:      g.url(),
		body:     req,
	})
	if err != nil {
		return nil, err
	}
	resp := response(raw, "candidates.0.content.parts.0.text", "usageMetadata.promptTokenCount", "usageMetadata.candidatesTokenCount")
	if resp.Model == "" {
		resp.Model = g.model
	}
	return resp, nil
}
