// Package config holds the brand, credential and locale settings that drive a
// visibility run, and persists them through a key/value store.
package config

import (
	"strings"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/detect"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

const (
	DefaultOpenAIModel     = "gpt-5-nano"
	DefaultAnthropicModel  = "claude-3-5-haiku-20241022"
	DefaultPerplexityModel = "pplx-70b-online"
	DefaultGoogleModel     = "gemini-pro"

	DefaultBrand = "Samlino"
)

// Environment variables consulted when nothing has been persisted yet.
const (
	EnvBrandName     = "BRAND_NAME"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvAnthropicKey  = "ANTHROPIC_API_KEY"
	EnvPerplexityKey = "PERPLEXITY_API_KEY"
	EnvGoogleKey     = "GOOGLE_API_KEY"
)

type BrandConfig struct {
	Name    string   `json:"brandName"`
	Aliases []string `json:"brandAliases"`
}

type ProviderCredentials struct {
	APIKey string `json:"apiKey"`
	Model  string `json:"model,omitempty"`
}

type APIConfig struct {
	OpenAI     *ProviderCredentials `json:"openai,omitempty"`
	Anthropic  *ProviderCredentials `json:"anthropic,omitempty"`
	Perplexity *ProviderCredentials `json:"perplexity,omitempty"`
	Google     *ProviderCredentials `json:"google,omitempty"`
}

type LanguageConfig struct {
	Code    string `json:"code,omitempty"`
	Country string `json:"country,omitempty"`
}

// AppConfig is the persisted application configuration.
type AppConfig struct {
	Brand    BrandConfig    `json:"brand"`
	API      APIConfig      `json:"api"`
	Language LanguageConfig `json:"language"`
}

func defaultAliases() []string {
	return []string{"Samlino", "samlino", "samlino.dk", "samlino dk"}
}

// Default returns the built-in configuration.
func Default() AppConfig {
	return AppConfig{
		Brand: BrandConfig{
			Name:    DefaultBrand,
			Aliases: defaultAliases(),
		},
		Language: LanguageConfig{Code: "da", Country: "DK"},
	}
}

// FromEnv builds a configuration from environment lookups. ok is false when
// the environment supplied neither a brand nor any API key.
func FromEnv(getenv func(string) string) (cfg AppConfig, ok bool) {
	cfg = Default()
	if brand := strings.TrimSpace(getenv(EnvBrandName)); brand != "" {
		cfg.Brand.Name = brand
		ok = true
	}
	creds := func(key, model string) *ProviderCredentials {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		ok = true
		return &ProviderCredentials{APIKey: v, Model: model}
	}
	cfg.API.Anthropic = creds(EnvAnthropicKey, DefaultAnthropicModel)
	cfg.API.OpenAI = creds(EnvOpenAIKey, DefaultOpenAIModel)
	cfg.API.Perplexity = creds(EnvPerplexityKey, DefaultPerplexityModel)
	cfg.API.Google = creds(EnvGoogleKey, DefaultGoogleModel)
	return cfg, ok
}

// Merge overlays the set fields of patch onto base. A non-nil credential
// block replaces the stored one; an empty APIKey in it removes the provider.
func Merge(base, patch AppConfig) AppConfig {
	out := base
	if patch.Brand.Name != "" {
		out.Brand.Name = patch.Brand.Name
	}
	if patch.Brand.Aliases != nil {
		out.Brand.Aliases = append([]string(nil), patch.Brand.Aliases...)
	}
	mergeCreds := func(dst **ProviderCredentials, src *ProviderCredentials) {
		if src == nil {
			return
		}
		if strings.TrimSpace(src.APIKey) == "" {
			*dst = nil
			return
		}
		c := *src
		if c.Model == "" && *dst != nil {
			c.Model = (*dst).Model
		}
		*dst = &c
	}
	mergeCreds(&out.API.OpenAI, patch.API.OpenAI)
	mergeCreds(&out.API.Anthropic, patch.API.Anthropic)
	mergeCreds(&out.API.Perplexity, patch.API.Perplexity)
	mergeCreds(&out.API.Google, patch.API.Google)
	if patch.Language.Code != "" {
		out.Language.Code = patch.Language.Code
	}
	if patch.Language.Country != "" {
		out.Language.Country = patch.Language.Country
	}
	return out
}

// Credentials returns the credentials for p with the default model filled in.
func (c AppConfig) Credentials(p model.Platform) (ProviderCredentials, bool) {
	var src *ProviderCredentials
	var def string
	switch p {
	case model.ChatGPT:
		src, def = c.API.OpenAI, DefaultOpenAIModel
	case model.Claude:
		src, def = c.API.Anthropic, DefaultAnthropicModel
	case model.Perplexity:
		src, def = c.API.Perplexity, DefaultPerplexityModel
	case model.Gemini:
		src, def = c.API.Google, DefaultGoogleModel
	}
	if src == nil || strings.TrimSpace(src.APIKey) == "" {
		return ProviderCredentials{}, false
	}
	creds := *src
	if creds.Model == "" {
		creds.Model = def
	}
	return creds, true
}

// dispatchOrder is the order providers are called in for every query.
var dispatchOrder = []model.Platform{model.Claude, model.ChatGPT, model.Perplexity, model.Gemini}

// ConfiguredPlatforms returns every platform with a non-empty key.
func (c AppConfig) ConfiguredPlatforms() []model.Platform {
	var out []model.Platform
	for _, p := range dispatchOrder {
		if _, ok := c.Credentials(p); ok {
			out = append(out, p)
		}
	}
	return out
}

// SearchTerms returns the brand name and its aliases as matched by the detector.
func (c AppConfig) SearchTerms() []string {
	return detect.SearchTerms(c.Brand.Name, c.Brand.Aliases)
}

// Redacted returns a copy safe for display, with API keys masked.
func (c AppConfig) Redacted() AppConfig {
	out := c
	mask := func(p *ProviderCredentials) *ProviderCredentials {
		if p == nil {
			return nil
		}
		r := *p
		r.APIKey = MaskKey(p.APIKey)
		return &r
	}
	out.API.OpenAI = mask(c.API.OpenAI)
	out.API.Anthropic = mask(c.API.Anthropic)
	out.API.Perplexity = mask(c.API.Perplexity)
	out.API.Google = mask(c.API.Google)
	out.Brand.Aliases = append([]string(nil), c.Brand.Aliases...)
	return out
}

// MaskKey keeps the last four characters of key.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
