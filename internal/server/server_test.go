package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/kimjeppesen/Samlino-ai-pressence/internal/telemetry"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/config"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/processor"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/storage"
)

type fakeRunner struct {
	got   []model.Query
	opts  processor.Options
	batch *processor.Batch
	err   error
}

func (f *fakeRunner) ProcessQueries(_ context.Context, queries []model.Query, opts processor.Options) (*processor.Batch, error) {
	f.got, f.opts = queries, opts
	return f.batch, f.err
}

type harness struct {
	srv    *Server
	db     *storage.DB
	runner *fakeRunner
	http   *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "aivis.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runner := &fakeRunner{}
	srv := New(db, config.NewStore(db, nil), runner, "", "")
	srv.Metrics = telemetry.New()
	srv.now = func() time.Time { return time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{srv: srv, db: db, runner: runner, http: ts}
}

func (h *harness) do(t *testing.T, method, path, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, h.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func res(id, query string, p model.Platform, mentioned bool) model.QueryResult {
	r := model.QueryResult{
		ID: id, Query: query, Platform: p, Mentioned: mentioned, Sentiment: model.Neutral, Date: "2024-04-10",
		CompetitorMentions: []string{}, URLs: []string{},
	}
	if mentioned {
		one := 1
		r.Position = &one
		r.URLs = []string{"https://www.samlino.dk/forsikring"}
	}
	return r
}

func TestResultsAndFilters(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.db.SaveCrawl(ctx, []model.QueryResult{
		res("r1", "bilforsikring", model.Claude, true),
		res("r2", "bilforsikring", model.Gemini, false),
	})
	require.NoError(t, err)

	code, body := h.do(t, "GET", "/api/results", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(2), gjson.Get(body, "count").Int())

	code, body = h.do(t, "GET", "/api/results?platform=claude", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(1), gjson.Get(body, "count").Int())
	require.Equal(t, int64(2), gjson.Get(body, "total").Int())
	require.Equal(t, "r1", gjson.Get(body, "results.0.id").String())

	code, _ = h.do(t, "GET", "/api/results?platform=bing", "")
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(t, "GET", "/api/results?crawl=missing", "")
	require.Equal(t, http.StatusNotFound, code)

	code, body = h.do(t, "GET", "/api/domains", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "samlino.dk", gjson.Get(body, "0.domain").String())
}

func TestOverviewCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.db.SaveCrawl(ctx, []model.QueryResult{res("r1", "lån", model.Claude, true)})
	require.NoError(t, err)

	_, body := h.do(t, "GET", "/api/kpis", "")
	require.Equal(t, int64(1), gjson.Get(body, "totalMentions.value").Int())

	_, err = h.db.SaveCrawl(ctx, []model.QueryResult{res("r2", "lån", model.Gemini, true)})
	require.NoError(t, err)

	_, body = h.do(t, "GET", "/api/kpis", "")
	require.Equal(t, int64(2), gjson.Get(body, "totalMentions.value").Int())

	_, body = h.do(t, "GET", "/api/platforms", "")
	require.Equal(t, 4, len(gjson.Get(body, "@this").Array()))

	_, body = h.do(t, "GET", "/api/competitors", "")
	require.Equal(t, "Samlino", gjson.Get(body, "ranking.0.name").String())
}

func TestLabelDeletionRefreshesFilters(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	car, err := h.db.AddLabel(ctx, storage.LabelCategory, "Bilforsikring")
	require.NoError(t, err)
	_, err = h.db.AddQuery(ctx, model.Query{Text: "lån", Category: car.ID})
	require.NoError(t, err)
	_, err = h.db.SaveCrawl(ctx, []model.QueryResult{res("r1", "lån", model.Claude, true)})
	require.NoError(t, err)

	_, body := h.do(t, "GET", "/api/results?category="+car.ID, "")
	require.Equal(t, int64(1), gjson.Get(body, "count").Int())

	ok, err := h.db.DeleteLabel(ctx, storage.LabelCategory, car.ID)
	require.NoError(t, err)
	require.True(t, ok)

	_, body = h.do(t, "GET", "/api/results?category="+car.ID, "")
	require.Equal(t, int64(0), gjson.Get(body, "count").Int())
}

func TestCrawlEndpoints(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	id, err := h.db.SaveCrawl(ctx, []model.QueryResult{res("r1", "lån", model.Claude, true)})
	require.NoError(t, err)

	code, body := h.do(t, "GET", "/api/crawls", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, id, gjson.Get(body, "0.crawlId").String())

	code, body = h.do(t, "GET", "/api/crawls/"+id, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "r1", gjson.Get(body, "results.0.id").String())

	code, _ = h.do(t, "DELETE", "/api/crawls/"+id, "")
	require.Equal(t, http.StatusNoContent, code)

	code, _ = h.do(t, "GET", "/api/crawls/"+id, "")
	require.Equal(t, http.StatusNotFound, code)
	code, _ = h.do(t, "DELETE", "/api/crawls/"+id, "")
	require.Equal(t, http.StatusNotFound, code)
}

func TestSnapshotsEndpoint(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	for i, week := range []string{"2024-W14", "2024-W15"} {
		ts := time.Date(2024, 4, 3+7*i, 12, 0, 0, 0, time.UTC)
		require.NoError(t, h.db.SaveSnapshot(ctx, model.Snapshot{
			ID: week, Timestamp: ts, Date: model.DateString(ts), Week: week,
			Metrics: model.SnapshotMetrics{OverallVisibility: 40 + 10*i, CompetitorRank: 2},
		}))
	}

	code, body := h.do(t, "GET", "/api/snapshots?weeks=4", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(2), gjson.Get(body, "snapshots.#").Int())
	require.Equal(t, "2024-W14", gjson.Get(body, "trend.weeks.0").String())
	require.Equal(t, int64(10), gjson.Get(body, "comparison.overallVisibility.change").Int())

	code, _ = h.do(t, "GET", "/api/snapshots?weeks=x", "")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestConfigEndpoints(t *testing.T) {
	h := newHarness(t)

	code, body := h.do(t, "PUT", "/api/config", `{"brand":{"brandName":"Samlino"},"api":{"anthropic":{"apiKey":"sk-ant-1234567890"}}}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "****7890", gjson.Get(body, "api.anthropic.apiKey").String())

	_, body = h.do(t, "GET", "/api/config", "")
	require.Equal(t, "****7890", gjson.Get(body, "api.anthropic.apiKey").String())
	require.NotContains(t, body, "sk-ant-1234567890")

	code, _ = h.do(t, "PUT", "/api/config", `{`)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestQueryEndpoints(t *testing.T) {
	h := newHarness(t)

	code, body := h.do(t, "POST", "/api/queries", `{"queries":[{"query":"bilforsikring"},{"query":"lån","category":"default"}]}`)
	require.Equal(t, http.StatusCreated, code)
	id := gjson.Get(body, "0.id").String()
	require.NotEmpty(t, id)

	_, body = h.do(t, "GET", "/api/queries?category=default", "")
	require.Equal(t, int64(1), gjson.Get(body, "#").Int())
	require.Equal(t, "lån", gjson.Get(body, "0.query").String())

	code, _ = h.do(t, "DELETE", "/api/queries/"+id, "")
	require.Equal(t, http.StatusNoContent, code)
	code, _ = h.do(t, "DELETE", "/api/queries/"+id, "")
	require.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(t, "POST", "/api/queries", `{}`)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestProcessEndpoint(t *testing.T) {
	h := newHarness(t)
	h.runner.batch = &processor.Batch{
		CrawlID: "crawl-1",
		Queries: []model.ProcessedQuery{{
			Query:   model.Query{ID: "query-1", Text: "lån"},
			Status:  model.StatusCompleted,
			Results: []model.QueryResult{res("r1", "lån", model.Claude, true)},
		}},
	}

	code, body := h.do(t, "POST", "/api/process", `{"queries":["lån","  "],"platforms":["claude"]}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "crawl-1", gjson.Get(body, "crawlId").String())
	require.Equal(t, int64(1), gjson.Get(body, "results").Int())
	require.Len(t, h.runner.got, 1)
	require.Equal(t, []model.Platform{model.Claude}, h.runner.opts.Platforms)

	h.runner.batch = &processor.Batch{Queries: []model.ProcessedQuery{{Status: model.StatusError, Error: "boom"}}}
	code, body = h.do(t, "POST", "/api/process", `{"queries":["lån"]}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Contains(t, gjson.Get(body, "error").String(), "boom")

	h.runner.batch, h.runner.err = nil, processor.ErrBatchRunning
	code, _ = h.do(t, "POST", "/api/process", `{"queries":["lån"]}`)
	require.Equal(t, http.StatusConflict, code)

	code, _ = h.do(t, "POST", "/api/process", `{"queries":[]}`)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestBasicAuthAndMetrics(t *testing.T) {
	h := newHarness(t)
	h.srv.Username, h.srv.Password = "admin", "secret"

	code, _ := h.do(t, "GET", "/api/stats", "")
	require.Equal(t, http.StatusUnauthorized, code)

	req, err := http.NewRequest("GET", h.http.URL+"/api/stats", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var stats storage.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := h.do(t, "GET", "/metrics", "")
	require.Contains(t, body, `aivis_http_requests_total{method="GET",route="GET /api/stats",status_code="401"} 1`)
	require.Contains(t, body, `aivis_http_requests_total{method="GET",route="GET /api/stats",status_code="200"} 1`)
}
