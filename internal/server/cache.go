package server

import (
	"context"
	"sync"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/config"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/storage"
)

// dataset is everything the overview endpoints compute from, for one crawl
// or for all of them ("").
type dataset struct {
	cfg       config.AppConfig
	results   []model.QueryResult
	queries   []model.Query
	snapshots []model.Snapshot
	found     bool
}

// overviewCache keeps datasets until the store reports a change. Loads run
// without the lock because store callbacks may fire while loading.
type overviewCache struct {
	mu         sync.Mutex
	generation uint64
	entries    map[string]*dataset
}

func newOverviewCache() *overviewCache {
	return &overviewCache{entries: make(map[string]*dataset)}
}

func (c *overviewCache) invalidate() {
	c.mu.Lock()
	c.generation++
	c.entries = make(map[string]*dataset)
	c.mu.Unlock()
}

func (c *overviewCache) get(ctx context.Context, crawlID string, load func(context.Context, string) (*dataset, error)) (*dataset, error) {
	c.mu.Lock()
	if d, ok := c.entries[crawlID]; ok {
		c.mu.Unlock()
		return d, nil
	}
	gen := c.generation
	c.mu.Unlock()

	d, err := load(ctx, crawlID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.generation == gen {
		c.entries[crawlID] = d
	}
	c.mu.Unlock()
	return d, nil
}

func (s *Server) loadDataset(ctx context.Context, crawlID string) (*dataset, error) {
	cfg, err := s.Config.Load(ctx)
	if err != nil {
		return nil, err
	}
	d := &dataset{cfg: cfg, found: true}
	if crawlID == "" {
		d.results, err = s.DB.GetAllResults(ctx)
	} else {
		var c *model.Crawl
		if c, err = s.DB.GetCrawlByID(ctx, crawlID); c != nil {
			d.results = c.Results
		} else {
			d.found = false
		}
	}
	if err != nil {
		return nil, err
	}
	if d.queries, err = s.DB.ListQueries(ctx, storage.QueryFilter{}); err != nil {
		return nil, err
	}
	if d.snapshots, err = s.DB.LoadAllSnapshots(ctx); err != nil {
		return nil, err
	}
	return d, nil
}
