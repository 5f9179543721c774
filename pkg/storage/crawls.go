package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/kimjeppesen/Samlino-ai-pressence/internal/utils"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

// tsLayout is fixed width so stored timestamps compare lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

// NewCrawl assembles a crawl record for results taken at ts.
func NewCrawl(id string, ts time.Time, results []model.QueryResult) model.Crawl {
	queries := make(map[string]bool)
	seenPlatform := make(map[model.Platform]bool)
	platforms := []string{}
	for _, r := range results {
		queries[r.Query] = true
		if !seenPlatform[r.Platform] {
			seenPlatform[r.Platform] = true
			platforms = append(platforms, string(r.Platform))
		}
	}
	return model.Crawl{
		CrawlID:   id,
		Timestamp: ts.UTC(),
		Date:      model.DateString(ts),
		Results:   append([]model.QueryResult(nil), results...),
		Metadata: model.CrawlMetadata{
			TotalQueries: len(queries),
			Platforms:    platforms,
			QueryCount:   len(results),
		},
	}
}

// SaveCrawl appends a new crawl holding results and returns its id. It never
// touches earlier crawls. An empty result set stores nothing.
func (d *DB) SaveCrawl(ctx context.Context, results []model.QueryResult) (string, error) {
	if len(results) == 0 {
		return "", nil
	}
	c := NewCrawl(utils.NewID("crawl"), d.now(), results)
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	err = d.withTx(ctx, Event{Kind: EventCrawls, Key: c.CrawlID}, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO crawls(crawl_id, ts, date, data) VALUES(?,?,?,?)",
			c.CrawlID, formatTS(c.Timestamp), c.Date, string(raw)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM crawls WHERE seq NOT IN (
			SELECT seq FROM crawls ORDER BY ts DESC, seq DESC LIMIT ?)`, MaxCrawls)
		return err
	})
	if err != nil {
		return "", err
	}
	return c.CrawlID, nil
}

func (d *DB) queryCrawls(ctx context.Context, where string, args ...interface{}) ([]model.Crawl, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT data FROM crawls "+where+" ORDER BY ts DESC, seq DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Crawl{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var c model.Crawl
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadAllCrawls returns every crawl, newest first.
func (d *DB) LoadAllCrawls(ctx context.Context) ([]model.Crawl, error) {
	return d.queryCrawls(ctx, "")
}

// GetCrawlByID returns nil when no crawl has the id.
func (d *DB) GetCrawlByID(ctx context.Context, id string) (*model.Crawl, error) {
	crawls, err := d.queryCrawls(ctx, "WHERE crawl_id = ?", id)
	if err != nil || len(crawls) == 0 {
		return nil, err
	}
	return &crawls[0], nil
}

func (d *DB) GetLatestCrawl(ctx context.Context) (*model.Crawl, error) {
	crawls, err := d.queryCrawls(ctx, "WHERE seq = (SELECT seq FROM crawls ORDER BY ts DESC, seq DESC LIMIT 1)")
	if err != nil || len(crawls) == 0 {
		return nil, err
	}
	return &crawls[0], nil
}

// GetCrawlResults returns the results of one crawl, or nil for an unknown id.
func (d *DB) GetCrawlResults(ctx context.Context, id string) ([]model.QueryResult, error) {
	c, err := d.GetCrawlByID(ctx, id)
	if err != nil || c == nil {
		return nil, err
	}
	return c.Results, nil
}

// GetAllResults flattens the results of every crawl, newest crawl first.
func (d *DB) GetAllResults(ctx context.Context) ([]model.QueryResult, error) {
	crawls, err := d.LoadAllCrawls(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.QueryResult{}
	for _, c := range crawls {
		out = append(out, c.Results...)
	}
	return out, nil
}

// GetCrawlsInRange returns crawls taken within [start, end].
func (d *DB) GetCrawlsInRange(ctx context.Context, start, end time.Time) ([]model.Crawl, error) {
	return d.queryCrawls(ctx, "WHERE ts >= ? AND ts <= ?", formatTS(start), formatTS(end))
}

func (d *DB) GetCrawlsLastNDays(ctx context.Context, days int) ([]model.Crawl, error) {
	now := d.now()
	return d.GetCrawlsInRange(ctx, now.AddDate(0, 0, -days), now)
}

var ErrCrawlNotFound = errors.New("crawl not found")

func (d *DB) DeleteCrawl(ctx context.Context, id string) error {
	return d.withTx(ctx, Event{Kind: EventCrawls, Key: id}, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM crawls WHERE crawl_id = ?", id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrCrawlNotFound
		}
		return nil
	})
}

func (d *DB) ClearCrawls(ctx context.Context) error {
	return d.withTx(ctx, Event{Kind: EventCrawls}, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM crawls")
		return err
	})
}

func (d *DB) CrawlSummaries(ctx context.Context) ([]model.CrawlSummary, error) {
	crawls, err := d.LoadAllCrawls(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.CrawlSummary, 0, len(crawls))
	for _, c := range crawls {
		out = append(out, c.Summary())
	}
	return out, nil
}
