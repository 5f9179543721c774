package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kimjeppesen/Samlino-ai-pressence/internal/telemetry"
	"github.com/kimjeppesen/Samlino-ai-pressence/internal/utils"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/config"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/processor"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/storage"
)

// BatchRunner runs query batches for POST /api/process.
type BatchRunner interface {
	ProcessQueries(ctx context.Context, queries []model.Query, opts processor.Options) (*processor.Batch, error)
}

type Server struct {
	DB        *storage.DB
	Config    *config.Store
	Processor BatchRunner
	Metrics   *telemetry.Metrics // optional
	Relay     http.Handler       // optional; mounted at /relay
	Username  string
	Password  string

	now         func() time.Time
	cache       *overviewCache
	unsubscribe func()
}

func New(db *storage.DB, cfg *config.Store, proc BatchRunner, user, pass string) *Server {
	s := &Server{
		DB:        db,
		Config:    cfg,
		Processor: proc,
		Username:  user,
		Password:  pass,
		now:       time.Now,
		cache:     newOverviewCache(),
	}
	s.unsubscribe = db.Subscribe(func(ev storage.Event) {
		switch ev.Kind {
		case storage.EventKV, storage.EventLabels:
			return
		}
		s.cache.invalidate()
	})
	return s
}

// Close stops listening for store changes.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.instrument(pattern, s.basicAuth(h)))
	}

	route("GET /api/stats", s.handleStats)
	route("GET /api/results", s.handleResults)
	route("GET /api/crawls", s.handleCrawls)
	route("GET /api/crawls/{id}", s.handleCrawl)
	route("DELETE /api/crawls/{id}", s.handleDeleteCrawl)
	route("GET /api/snapshots", s.handleSnapshots)
	route("GET /api/kpis", s.handleKPIs)
	route("GET /api/platforms", s.handlePlatforms)
	route("GET /api/competitors", s.handleCompetitors)
	route("GET /api/domains", s.handleDomains)
	route("GET /api/config", s.handleGetConfig)
	route("PUT /api/config", s.handlePutConfig)
	route("GET /api/queries", s.handleQueries)
	route("POST /api/queries", s.handleAddQueries)
	route("DELETE /api/queries/{id}", s.handleDeleteQuery)
	route("POST /api/process", s.handleProcess)

	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}
	if s.Relay != nil {
		mux.Handle("/relay", s.instrument("/relay", s.Relay.ServeHTTP))
	}
	return mux
}

func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	utils.Log.Infof("Starting server on %s", addr)
	return srv.ListenAndServe()
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		if s.Metrics != nil {
			s.Metrics.RecordHTTPRequest(r.Method, route, rec.status, time.Since(start))
		}
		utils.Log.Debugf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Log.Debugf("writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
