package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func relayTo(t *testing.T, upstream http.HandlerFunc, timeout time.Duration) *httptest.Server {
	t.Helper()
	up := httptest.NewServer(upstream)
	t.Cleanup(up.Close)
	relay := httptest.NewServer(NewRelay(up.URL, timeout, nil))
	t.Cleanup(relay.Close)
	return relay
}

func call(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func TestRelayStatusMapping(t *testing.T) {
	var forwarded, auth string
	ok := func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		forwarded, auth = string(b), r.Header.Get("Authorization")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota"}}`))
	}

	tests := []struct {
		name     string
		upstream http.HandlerFunc
		timeout  time.Duration
		method   string
		body     string
		status   int
		errType  string
	}{
		{name: "preflight", upstream: ok, method: "OPTIONS", status: http.StatusOK},
		{name: "wrong method", upstream: ok, method: "GET", status: http.StatusMethodNotAllowed},
		{name: "missing key", upstream: ok, method: "POST", body: `{"model":"gpt-4o"}`, status: http.StatusBadRequest},
		{name: "malformed request", upstream: ok, method: "POST", body: `{"apiKey":`, status: http.StatusInternalServerError},
		{name: "passthrough", upstream: ok, method: "POST", body: `{"model":"gpt-4o","apiKey":"sk-1"}`, status: http.StatusTooManyRequests},
		{
			name: "invalid upstream json",
			upstream: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>" + strings.Repeat("x", 600)))
			},
			method: "POST", body: `{"apiKey":"sk-1"}`, status: http.StatusInternalServerError, errType: "invalid_response",
		},
		{
			name: "timeout",
			upstream: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			timeout: 50 * time.Millisecond,
			method:  "POST", body: `{"apiKey":"sk-1"}`, status: http.StatusGatewayTimeout, errType: "timeout_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := relayTo(t, tt.upstream, tt.timeout)
			resp, body := call(t, tt.method, relay.URL, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.status, body)
			}
			if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
				t.Error("missing CORS header")
			}
			if tt.errType != "" && gjson.Get(body, "error.type").String() != tt.errType {
				t.Errorf("error.type = %q, want %q", gjson.Get(body, "error.type").String(), tt.errType)
			}
		})
	}

	if gjson.Get(forwarded, "apiKey").Exists() {
		t.Errorf("apiKey was forwarded upstream: %s", forwarded)
	}
	if gjson.Get(forwarded, "model").String() != "gpt-4o" {
		t.Errorf("forwarded body = %s", forwarded)
	}
	if auth != "Bearer sk-1" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestRelayExcerpt(t *testing.T) {
	relay := relayTo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("ø", 700)))
	}, 0)
	_, body := call(t, "POST", relay.URL, `{"apiKey":"sk-1"}`)
	if got := len([]rune(gjson.Get(body, "error.response").String())); got != 500 {
		t.Errorf("excerpt length = %d, want 500", got)
	}
}

func TestRelayPreflightHeaders(t *testing.T) {
	relay := relayTo(t, func(http.ResponseWriter, *http.Request) {}, 0)
	resp, _ := call(t, "OPTIONS", relay.URL, "")
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Errorf("Allow-Methods = %q", got)
	}
}
