package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestMetrics(t *testing.T) {
	m := New()
	m.ProviderCall(model.Claude, "success", 2*time.Second)
	m.ProviderCall(model.Claude, "success", time.Second)
	m.ProviderCall(model.Gemini, "configuration", 0)
	m.QueryProcessed(model.StatusCompleted)
	m.RecordHTTPRequest("GET", "/api/stats", 200, 10*time.Millisecond)

	out := scrape(t, m)
	for _, want := range []string{
		`aivis_provider_calls_total{outcome="success",platform="Claude"} 2`,
		`aivis_provider_calls_total{outcome="configuration",platform="Gemini"} 1`,
		`aivis_provider_call_duration_seconds_count{platform="Claude"} 2`,
		`aivis_queries_processed_total{status="completed"} 1`,
		`aivis_http_requests_total{method="GET",route="/api/stats",status_code="200"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
	if strings.Contains(out, `aivis_provider_call_duration_seconds_count{platform="Gemini"}`) {
		t.Error("calls that never reached the network should not be timed")
	}
}

func TestSeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.QueryProcessed(model.StatusError)
	if strings.Contains(scrape(t, b), `aivis_queries_processed_total{status="error"}`) {
		t.Error("metrics leaked between registries")
	}
}
