package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kimjeppesen/Samlino-ai-pressence/internal/utils"
)

const (
	DefaultRelayUpstream = "https://api.openai.com/v1/chat/completions"
	DefaultRelayTimeout  = 20 * time.Second

	relayTimeoutMessage = "Request timeout - the API call took too long. Try processing queries one at a time or reduce the number of queries."
	maxRelayBody        = 1 << 20
)

// Relay forwards chat completion requests that carry their API key in the
// body, so browsers and restricted hosts can reach OpenAI.
type Relay struct {
	Upstream string
	Timeout  time.Duration
	Client   *http.Client
}

func NewRelay(upstream string, timeout time.Duration, client *http.Client) *Relay {
	if upstream == "" {
		upstream = DefaultRelayUpstream
	}
	if timeout <= 0 {
		timeout = DefaultRelayTimeout
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Relay{Upstream: upstream, Timeout: timeout, Client: client}
}

type relayError struct {
	Message  string `json:"message"`
	Type     string `json:"type"`
	Response string `json:"response,omitempty"`
}

func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRelayBody))
	if err != nil {
		rl.internalError(w, err)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	if !gjson.ValidBytes(body) {
		rl.internalError(w, errors.New("request body is not valid JSON"))
		return
	}
	apiKey := gjson.GetBytes(body, "apiKey").String()
	if apiKey == "" {
		writeError(w, http.StatusBadRequest, "API key is required")
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		rl.internalError(w, err)
		return
	}
	delete(fields, "apiKey")
	forward, err := json.Marshal(fields)
	if err != nil {
		rl.internalError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), rl.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rl.Upstream, bytes.NewReader(forward))
	if err != nil {
		rl.internalError(w, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := rl.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			writeJSON(w, http.StatusGatewayTimeout, map[string]relayError{
				"error": {Message: relayTimeoutMessage, Type: "timeout_error"},
			})
			return
		}
		rl.internalError(w, err)
		return
	}
	defer resp.Body.Close()

	upstream, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			writeJSON(w, http.StatusGatewayTimeout, map[string]relayError{
				"error": {Message: relayTimeoutMessage, Type: "timeout_error"},
			})
			return
		}
		rl.internalError(w, err)
		return
	}
	if !gjson.ValidBytes(upstream) {
		writeJSON(w, http.StatusInternalServerError, map[string]relayError{
			"error": {
				Message:  "Invalid response from OpenAI API",
				Type:     "invalid_response",
				Response: excerpt(upstream, 500),
			},
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(upstream)
}

func (rl *Relay) internalError(w http.ResponseWriter, err error) {
	utils.Log.Errorf("relay: %v", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "Internal server error",
		"message": err.Error(),
	})
}

func excerpt(b []byte, n int) string {
	r := []rune(string(b))
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
