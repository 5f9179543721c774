// Package processor runs queries against the configured AI platforms, scans
// the answers for the brand and persists what it finds.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kimjeppesen/Samlino-ai-pressence/internal/utils"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/config"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/detect"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/metrics"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/providers"
)

// Logger abstracts logging so callers can use logrus or anything with the
// same methods.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// ConfigSource returns the live configuration. It is read again for every
// query so saved credentials apply to the next one.
type ConfigSource interface {
	Load(ctx context.Context) (config.AppConfig, error)
}

// ProviderFactory builds the adapter for one platform from the configuration.
type ProviderFactory func(p model.Platform, cfg config.AppConfig) (providers.Provider, error)

// Store is the part of the storage layer the processor writes to.
type Store interface {
	AppendResults(ctx context.Context, results []model.QueryResult) error
	LoadResults(ctx context.Context) ([]model.QueryResult, error)
	SaveCrawl(ctx context.Context, results []model.QueryResult) (string, error)
	SaveSnapshot(ctx context.Context, s model.Snapshot) error
}

// Recorder receives processing measurements.
type Recorder interface {
	ProviderCall(p model.Platform, outcome string, d time.Duration)
	QueryProcessed(status model.Status)
}

type nopRecorder struct{}

func (nopRecorder) ProviderCall(model.Platform, string, time.Duration) {}
func (nopRecorder) QueryProcessed(model.Status)                        {}

var (
	// ErrNoProviders means no platform has an API key.
	ErrNoProviders = errors.New("no AI platforms configured")
	// ErrBatchRunning is returned when a batch is started while another runs.
	ErrBatchRunning = errors.New("a batch is already running")
)

const noProvidersMessage = "No API keys configured. Please go to Settings and configure at least one API key (Claude, ChatGPT, Perplexity, or Gemini)."

// NoResultsError is the failure of a batch that produced no results at all.
type NoResultsError struct {
	Errors []string
}

func (e *NoResultsError) Error() string {
	msg := "No results were generated. Check your API configuration and network connection."
	if len(e.Errors) > 0 {
		msg += " Errors: " + strings.Join(e.Errors, "; ")
	}
	return msg
}

// Config wires a Processor. Source and Store are required.
type Config struct {
	Source   ConfigSource
	Store    Store
	Provider ProviderFactory  // defaults to providers.New with ProviderOptions
	Pacer    *Pacer           // defaults to NewPacer(DefaultPacing())
	Log      Logger           // optional; nil = no logging
	Recorder Recorder         // optional
	Now      func() time.Time // defaults to time.Now

	ProviderOptions providers.Options
	// Competitors defaults to detect.Competitors.
	Competitors []detect.Competitor
}

type Processor struct {
	source      ConfigSource
	store       Store
	provider    ProviderFactory
	pacer       *Pacer
	log         Logger
	rec         Recorder
	now         func() time.Time
	competitors []detect.Competitor
	running     atomic.Bool
}

func New(cfg Config) *Processor {
	p := &Processor{
		source:      cfg.Source,
		store:       cfg.Store,
		provider:    cfg.Provider,
		pacer:       cfg.Pacer,
		log:         cfg.Log,
		rec:         cfg.Recorder,
		now:         cfg.Now,
		competitors: cfg.Competitors,
	}
	if p.provider == nil {
		opts := cfg.ProviderOptions
		p.provider = func(platform model.Platform, c config.AppConfig) (providers.Provider, error) {
			creds, _ := c.Credentials(platform)
			return providers.New(platform, creds, c.Language, opts)
		}
	}
	if p.pacer == nil {
		p.pacer = NewPacer(DefaultPacing())
	}
	if p.log == nil {
		p.log = nopLogger{}
	}
	if p.rec == nil {
		p.rec = nopRecorder{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.competitors == nil {
		p.competitors = detect.Competitors
	}
	return p
}

// Options select the platforms and observe progress.
type Options struct {
	// Platforms overrides the configured platforms when non-empty.
	Platforms []model.Platform
	// OnProgress is called once per finished query of a batch.
	OnProgress func(done, total int)
}

// ProcessQuery sends q to every effective platform in turn. Provider failures
// are logged and skipped; the returned error is non-nil only when persisting
// a result fails.
func (p *Processor) ProcessQuery(ctx context.Context, q model.Query, opts Options) (model.ProcessedQuery, error) {
	pq, _, err := p.processQuery(ctx, q, opts.Platforms)
	return pq, err
}

// ProcessQueryForPlatform runs q against a single platform.
func (p *Processor) ProcessQueryForPlatform(ctx context.Context, q model.Query, platform model.Platform) (model.ProcessedQuery, error) {
	return p.ProcessQuery(ctx, q, Options{Platforms: []model.Platform{platform}})
}

func (p *Processor) processQuery(ctx context.Context, q model.Query, override []model.Platform) (model.ProcessedQuery, config.AppConfig, error) {
	pq := model.ProcessedQuery{Query: q, Status: model.StatusProcessing}
	finish := func(status model.Status, msg string) {
		pq.Status = status
		pq.Error = msg
		pq.ProcessedAt = p.now()
		p.rec.QueryProcessed(status)
	}

	cfg, err := p.source.Load(ctx)
	if err != nil {
		finish(model.StatusError, fmt.Sprintf("could not load configuration: %v", err))
		return pq, cfg, nil
	}

	platforms := override
	if len(platforms) == 0 {
		platforms = cfg.ConfiguredPlatforms()
	}
	if len(platforms) == 0 {
		noProviders := &providers.ConfigurationError{Message: noProvidersMessage, Err: ErrNoProviders}
		p.log.Errorf("%s", noProviders)
		finish(model.StatusError, noProviders.Error())
		return pq, cfg, nil
	}

	detector := detect.New(cfg.Brand.Name, cfg.Brand.Aliases, p.competitors)
	var failures []string

	for i, platform := range platforms {
		if i > 0 {
			if err := p.pacer.AfterCall(ctx, platforms[i-1]); err != nil {
				failures = append(failures, err.Error())
				break
			}
		}

		result, err := p.callPlatform(ctx, detector, cfg, q, platform)
		if err != nil {
			p.log.Warnf("%s failed for %q: %v", platform, utils.Truncate(q.Text, 60), err)
			failures = append(failures, fmt.Sprintf("%s: %v", platform, err))
			continue
		}
		if result == nil {
			continue
		}

		if err := p.store.AppendResults(ctx, []model.QueryResult{*result}); err != nil {
			finish(model.StatusError, err.Error())
			return pq, cfg, fmt.Errorf("could not save result: %w", err)
		}
		pq.Results = append(pq.Results, *result)
	}

	if len(pq.Results) == 0 && len(failures) > 0 {
		finish(model.StatusError, strings.Join(failures, "; "))
	} else {
		finish(model.StatusCompleted, "")
	}
	return pq, cfg, nil
}

// callPlatform returns nil, nil when the platform answered with no text.
func (p *Processor) callPlatform(ctx context.Context, d *detect.Detector, cfg config.AppConfig, q model.Query, platform model.Platform) (*model.QueryResult, error) {
	prov, err := p.provider(platform, cfg)
	if err != nil {
		p.rec.ProviderCall(platform, providers.Classify(err), 0)
		return nil, err
	}

	p.log.Debugf("Querying %s: %s", platform, utils.Truncate(q.Text, 60))
	var resp *providers.Response
	start := time.Now()
	err = p.pacer.Call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = prov.Call(ctx, q.Text)
		return err
	})
	elapsed := time.Since(start)
	if err != nil {
		p.rec.ProviderCall(platform, providers.Classify(err), elapsed)
		return nil, err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		p.rec.ProviderCall(platform, "empty", elapsed)
		p.log.Warnf("%s returned an empty answer for %q", platform, utils.Truncate(q.Text, 60))
		return nil, nil
	}
	p.rec.ProviderCall(platform, "success", elapsed)

	a := d.Analyze(resp.Content)
	return &model.QueryResult{
		ID:                 resultID(q, platform, p.now()),
		Query:              q.Text,
		Platform:           platform,
		Mentioned:          a.Mentioned,
		Position:           a.Position,
		Sentiment:          a.Sentiment,
		Date:               model.DateString(p.now()),
		Context:            a.Context,
		FullResponse:       resp.Content,
		Confidence:         a.Confidence,
		CompetitorMentions: a.CompetitorMentions,
		URLs:               a.URLs,
	}, nil
}

// resultID is <query id>-<platform>-<unix millis>.
func resultID(q model.Query, platform model.Platform, at time.Time) string {
	id := q.ID
	if id == "" {
		id = "query"
	}
	return fmt.Sprintf("%s-%s-%d", id, strings.ToLower(string(platform)), at.UnixMilli())
}

// Batch is the outcome of ProcessQueries.
type Batch struct {
	Queries  []model.ProcessedQuery
	CrawlID  string
	Snapshot *model.Snapshot
}

// Results flattens the results of every query in order.
func (b *Batch) Results() []model.QueryResult {
	var out []model.QueryResult
	for _, q := range b.Queries {
		out = append(out, q.Results...)
	}
	return out
}

// Failure returns a *NoResultsError when the batch produced no results.
func (b *Batch) Failure() error {
	if len(b.Results()) > 0 {
		return nil
	}
	e := &NoResultsError{}
	for _, q := range b.Queries {
		if q.Error != "" {
			e.Errors = append(e.Errors, q.Error)
		}
	}
	return e
}

// ProcessQueries runs queries one after another. When the batch produced
// results it is saved as a crawl and the weekly snapshot is recomputed from
// every stored result. Results already saved stay saved if ctx is canceled.
func (p *Processor) ProcessQueries(ctx context.Context, queries []model.Query, opts Options) (*Batch, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrBatchRunning
	}
	defer p.running.Store(false)

	batch := &Batch{}
	var (
		cfg      config.AppConfig
		active   []model.Platform
		batchErr error
	)
	for i, q := range queries {
		if i > 0 {
			if err := p.pacer.BetweenQueries(ctx, active); err != nil {
				batchErr = err
				break
			}
		}

		p.log.Infof("[%d/%d] %s", i+1, len(queries), utils.Truncate(q.Text, 80))
		pq, c, err := p.processQuery(ctx, q, opts.Platforms)
		batch.Queries = append(batch.Queries, pq)
		cfg = c
		if err != nil {
			return batch, err
		}
		active = opts.Platforms
		if len(active) == 0 {
			active = cfg.ConfiguredPlatforms()
		}
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(queries))
		}
		if err := ctx.Err(); err != nil {
			batchErr = err
			break
		}
	}

	if err := p.finish(context.WithoutCancel(ctx), batch, cfg); err != nil {
		return batch, err
	}
	return batch, batchErr
}

func (p *Processor) finish(ctx context.Context, batch *Batch, cfg config.AppConfig) error {
	results := batch.Results()
	if len(results) == 0 {
		return nil
	}

	id, err := p.store.SaveCrawl(ctx, results)
	if err != nil {
		return fmt.Errorf("could not save crawl: %w", err)
	}
	batch.CrawlID = id
	p.log.Infof("Saved crawl %s with %d results", id, len(results))

	all, err := p.store.LoadResults(ctx)
	if err != nil {
		return fmt.Errorf("could not load results: %w", err)
	}
	snap := metrics.CreateSnapshot(all, cfg.Brand.Name, p.competitors, p.now())
	if err := p.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("could not save snapshot: %w", err)
	}
	batch.Snapshot = &snap
	p.log.Debugf("Updated snapshot for week %s", snap.Week)
	return nil
}
