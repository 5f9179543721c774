package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const excerptLimit = 500

// NewHTTPClient builds the client shared by all adapters. Only connection
// failures are retried: a 429 is surfaced to the caller as-is.
func NewHTTPClient(retries int, timeout time.Duration, proxy string) (*http.Client, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = retries
	retryClient.HTTPClient.Timeout = timeout
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err == nil {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %v", err)
		}
		retryClient.HTTPClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	return retryClient.StandardClient(), nil
}

// call is one JSON POST to a platform.
type call struct {
	platform model.Platform
	model    string
	url      string
	headers  map[string]string
	body     interface{}
	relay    bool
}

// postJSON sends c and returns the response body of a 2xx answer. Every
// failure is mapped onto the error taxonomy.
func postJSON(ctx context.Context, client httpClient, c call) ([]byte, error) {
	payload, err := json.Marshal(c.body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, &ConfigurationError{Platform: c.platform, Message: fmt.Sprintf("invalid %s endpoint: %v", vendor(c.platform), err), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Platform: c.platform}
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &TransportError{Platform: c.platform, Relay: c.relay, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Platform: c.platform, Relay: c.relay, Err: err}
	}

	if c.relay && resp.StatusCode == http.StatusGatewayTimeout {
		return nil, &TimeoutError{Platform: c.platform, Message: errorMessage(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(c.platform, c.model, resp.StatusCode, body)
	}
	if !gjson.ValidBytes(body) {
		return nil, &ParseError{Platform: c.platform, Excerpt: excerpt(body), Err: errors.New("body is not valid JSON")}
	}
	return body, nil
}

func excerpt(body []byte) string {
	r := []rune(string(body))
	if len(r) > excerptLimit {
		r = r[:excerptLimit]
	}
	return string(r)
}

// response builds the adapter result from a decoded body.
func response(body []byte, contentPath, promptPath, completionPath string) *Response {
	return &Response{
		Content: gjson.GetBytes(body, contentPath).String(),
		Model:   gjson.GetBytes(body, "model").String(),
		Usage: Usage{
			PromptTokens:     int(gjson.GetBytes(body, promptPath).Int()),
			CompletionTokens: int(gjson.GetBytes(body, completionPath).Int()),
		},
	}
}

func htmlTitle(body string) (string, bool) {
	if !strings.Contains(strings.ToLower(body), "<title") {
		return "", false
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	title, ok := findTitle(doc)
	return strings.TrimSpace(strings.Join(strings.Fields(title), " ")), ok
}

func findTitle(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode && n.Data == "title" {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t, ok := findTitle(c); ok {
			return t, ok
		}
	}
	return "", false
}
