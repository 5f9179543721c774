package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/config"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/detect"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/metrics"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/processor"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/storage"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.DB.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// view is a dataset narrowed by the crawl, category, intent, platform and
// mentioned query parameters.
type view struct {
	*dataset
	filtered []model.QueryResult
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) (*view, bool) {
	q := r.URL.Query()
	f := metrics.Filter{
		Category:      q.Get("category"),
		Intent:        q.Get("intent"),
		MentionedOnly: q.Get("mentioned") == "true",
	}
	if p := q.Get("platform"); p != "" {
		platform, err := model.ParsePlatform(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		f.Platform = platform
	}

	crawlID := q.Get("crawl")
	d, err := s.cache.get(r.Context(), crawlID, s.loadDataset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if !d.found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("crawl %s not found", crawlID))
		return nil, false
	}
	return &view{dataset: d, filtered: metrics.FilterResults(d.results, d.queries, f)}, true
}

func (v *view) baseline(s *Server) *model.Snapshot {
	return metrics.BaselineFor(v.snapshots, s.now())
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   len(v.results),
		"count":   len(v.filtered),
		"results": v.filtered,
	})
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, metrics.ComputeKPIs(v.filtered, v.cfg.Brand.Name, detect.Competitors, v.baseline(s), s.now()))
}

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, metrics.PlatformBreakdown(v.filtered, v.baseline(s)))
}

func (s *Server) handleCompetitors(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ranking":  metrics.Ranking(v.filtered, v.cfg.Brand.Name, detect.Competitors, v.baseline(s)),
		"mentions": metrics.CompetitorCounts(v.filtered),
	})
}

func (s *Server) handleDomains(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, metrics.CitedDomains(v.filtered))
}

func (s *Server) handleCrawls(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.DB.CrawlSummaries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	c, err := s.DB.GetCrawlByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "crawl not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCrawl(w http.ResponseWriter, r *http.Request) {
	err := s.DB.DeleteCrawl(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, storage.ErrCrawlNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	weeks := 12
	if raw := r.URL.Query().Get("weeks"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "weeks must be a positive integer")
			return
		}
		weeks = n
	}
	snaps, err := s.DB.GetLastNWeeks(r.Context(), weeks)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"snapshots": snaps,
		"trend":     metrics.TrendData(snaps, weeks),
	}
	if len(snaps) > 0 {
		resp["comparison"] = metrics.Compare(snaps[0], metrics.BaselineFor(snaps, snaps[0].Timestamp))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.Config.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg.Redacted())
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var patch config.AppConfig
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, err := s.Config.Save(r.Context(), patch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg.Redacted())
}

func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	queries, err := s.DB.ListQueries(r.Context(), storage.QueryFilter{Category: q.Get("category"), Intent: q.Get("intent")})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, queries)
}

// addQueriesRequest is either a single query or a list under "queries".
type addQueriesRequest struct {
	Query    string        `json:"query"`
	Category string        `json:"category"`
	Intent   string        `json:"intent"`
	Queries  []model.Query `json:"queries"`
}

func (s *Server) handleAddQueries(w http.ResponseWriter, r *http.Request) {
	var req addQueriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	qs := req.Queries
	if strings.TrimSpace(req.Query) != "" {
		qs = append(qs, model.Query{Text: req.Query, Category: req.Category, Intent: req.Intent})
	}
	if len(qs) == 0 {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	added, err := s.DB.ImportQueries(r.Context(), qs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleDeleteQuery(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.DB.DeleteQuery(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "query not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// processRequest runs either the given query texts or the stored queries
// matching category and intent.
type processRequest struct {
	Queries   []string `json:"queries"`
	Stored    bool     `json:"stored"`
	Category  string   `json:"category"`
	Intent    string   `json:"intent"`
	Platforms []string `json:"platforms"`
}

type processResponse struct {
	CrawlID string                 `json:"crawlId,omitempty"`
	Results int                    `json:"results"`
	Queries []model.ProcessedQuery `json:"queries"`
	Error   string                 `json:"error,omitempty"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if s.Processor == nil {
		writeError(w, http.StatusServiceUnavailable, "processing is not enabled")
		return
	}
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var opts processor.Options
	platforms, err := model.ParsePlatforms(strings.Join(req.Platforms, ","))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts.Platforms = platforms

	var queries []model.Query
	if req.Stored {
		queries, err = s.DB.ListQueries(r.Context(), storage.QueryFilter{Category: req.Category, Intent: req.Intent})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	} else {
		for _, text := range req.Queries {
			if text = strings.TrimSpace(text); text != "" {
				queries = append(queries, model.Query{ID: fmt.Sprintf("query-%d", len(queries)+1), Text: text})
			}
		}
	}
	if len(queries) == 0 {
		writeError(w, http.StatusBadRequest, "no queries to process")
		return
	}

	batch, err := s.Processor.ProcessQueries(r.Context(), queries, opts)
	if errors.Is(err, processor.ErrBatchRunning) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if batch == nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := processResponse{CrawlID: batch.CrawlID, Results: len(batch.Results()), Queries: batch.Queries}
	status := http.StatusOK
	switch {
	case err != nil:
		resp.Error = err.Error()
		status = http.StatusInternalServerError
	case batch.Failure() != nil:
		resp.Error = batch.Failure().Error()
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}
