package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

type ErrorKind string

const (
	KindCredential ErrorKind = "credential"
	KindModel      ErrorKind = "model"
	KindRateLimit  ErrorKind = "rate_limit"
	KindQuota      ErrorKind = "quota"
	KindUnknown    ErrorKind = "unknown"
)

// ProviderError is a non-2xx answer from an AI platform.
type ProviderError struct {
	Platform model.Platform
	Status   int
	Kind     ErrorKind
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", vendor(e.Platform), e.Status, e.Message)
}

// Retryable reports whether waiting and trying again may succeed.
func (e *ProviderError) Retryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindQuota
}

// TransportError is a failure to reach the platform or the relay at all.
type TransportError struct {
	Platform model.Platform
	Relay    bool
	Err      error
}

func (e *TransportError) Error() string {
	if e.Relay {
		return fmt.Sprintf("network error reaching the %s relay: %v. Check that the relay is running and reachable", vendor(e.Platform), e.Err)
	}
	return fmt.Sprintf("network error reaching the %s API: %v. This may be a temporary network issue; check your connection or enable the relay", vendor(e.Platform), e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError is a response body that is not the JSON the platform promises.
type ParseError struct {
	Platform model.Platform
	Excerpt  string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid response from %s API: %v", vendor(e.Platform), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TimeoutError is a call that exceeded its time budget.
type TimeoutError struct {
	Platform model.Platform
	Message  string
}

func (e *TimeoutError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s request exceeded its time budget", vendor(e.Platform))
}

// ConfigurationError is a missing or unusable setting.
type ConfigurationError struct {
	Platform model.Platform
	Message  string
	Err      error
}

func (e *ConfigurationError) Error() string { return e.Message }

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Classify returns a short kind string for err, used in logs and metrics.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var (
		pe *ProviderError
		te *TransportError
		xe *ParseError
		to *TimeoutError
		ce *ConfigurationError
	)
	switch {
	case errors.As(err, &pe):
		return string(pe.Kind)
	case errors.As(err, &to), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &xe):
		return "parse"
	case errors.As(err, &ce):
		return "configuration"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}

func vendor(p model.Platform) string {
	switch p {
	case model.ChatGPT:
		return "OpenAI"
	case model.Claude:
		return "Anthropic"
	case model.Gemini:
		return "Google"
	case model.Perplexity:
		return "Perplexity"
	}
	return string(p)
}

const openAIBilling = "https://platform.openai.com/account/billing"

// statusError turns a failed response into a ProviderError with a message
// the user can act on.
func statusError(p model.Platform, modelName string, status int, body []byte) *ProviderError {
	raw := errorMessage(body)
	e := &ProviderError{Platform: p, Status: status, Kind: KindUnknown, Message: raw}
	if e.Message == "" {
		e.Message = "Failed to get response"
	}
	lower := strings.ToLower(raw)
	switch status {
	case http.StatusTooManyRequests:
		switch {
		case strings.Contains(lower, "quota"):
			e.Kind = KindQuota
			if p == model.ChatGPT {
				e.Message = "Quota exceeded. Check your OpenAI billing at " + openAIBilling + ". If you have credits available, this might be a temporary rate limit - try again in a few minutes."
			} else {
				e.Message = "Quota exceeded. Check your " + vendor(p) + " billing, or wait a few minutes and try again."
			}
		case strings.Contains(lower, "rate limit"):
			e.Kind = KindRateLimit
			e.Message = "Rate limit exceeded. Wait a few seconds and try again."
		default:
			e.Kind = KindRateLimit
			if p == model.ChatGPT {
				e.Message = "Rate limit/quota issue. Check billing at " + openAIBilling + " or wait a few minutes."
			} else {
				e.Message = "Rate limit/quota issue. Check your " + vendor(p) + " billing or wait a few minutes."
			}
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Kind = KindCredential
		e.Message = "Invalid API key. Check that the key is correct and hasn't been revoked."
	case http.StatusNotFound:
		e.Kind = KindModel
		e.Message = fmt.Sprintf("Model not found. The model %q may not be available. Try a different model.", modelName)
	}
	return e
}

// errorMessage pulls a human readable message out of an error body: the
// JSON error.message or error string, an HTML page title, or the raw text.
func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "message", "0.error.message"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.Str != "" {
				return v.Str
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if title, ok := htmlTitle(text); ok && title != "" {
		return title
	}
	if len([]rune(text)) > 200 {
		text = string([]rune(text)[:200])
	}
	return text
}
