package storage

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Retention caps.
const (
	MaxCrawls    = 1000
	MaxSnapshots = 52
)

type DB struct {
	sql *sql.DB
	now func() time.Time

	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS kv (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS query_results (
  seq      INTEGER PRIMARY KEY,
  id       TEXT NOT NULL UNIQUE,
  query    TEXT NOT NULL,
  platform TEXT NOT NULL,
  date     TEXT NOT NULL,
  data     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS crawls (
  seq      INTEGER PRIMARY KEY,
  crawl_id TEXT NOT NULL UNIQUE,
  ts       TEXT NOT NULL,
  date     TEXT NOT NULL,
  data     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_crawls_ts ON crawls(ts);
CREATE TABLE IF NOT EXISTS snapshots (
  week TEXT PRIMARY KEY,
  ts   TEXT NOT NULL,
  data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts);
CREATE TABLE IF NOT EXISTS queries (
  seq        INTEGER PRIMARY KEY,
  id         TEXT NOT NULL UNIQUE,
  query      TEXT NOT NULL,
  category   TEXT,
  intent     TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queries_category ON queries(category);
CREATE INDEX IF NOT EXISTS idx_queries_intent ON queries(intent);
CREATE TABLE IF NOT EXISTS query_labels (
  seq        INTEGER PRIMARY KEY,
  kind       TEXT NOT NULL CHECK (kind IN ('category','intent')),
  id         TEXT NOT NULL,
  name       TEXT NOT NULL,
  created_at TEXT NOT NULL,
  UNIQUE(kind, id)
);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db, now: time.Now, subs: make(map[int]func(Event))}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// withTx runs fn in a transaction and publishes ev after a successful commit.
func (d *DB) withTx(ctx context.Context, ev Event, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	d.publish(ev)
	return nil
}

// ClearAll removes results, crawls and snapshots.
func (d *DB) ClearAll(ctx context.Context) error {
	return d.withTx(ctx, Event{Kind: EventCleared}, func(tx *sql.Tx) error {
		for _, stmt := range []string{"DELETE FROM query_results", "DELETE FROM crawls", "DELETE FROM snapshots"} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

type Stats struct {
	Results   int `json:"results"`
	Mentioned int `json:"mentioned"`
	Crawls    int `json:"crawls"`
	Snapshots int `json:"snapshots"`
	Queries   int `json:"queries"`
}

func (d *DB) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	row := d.sql.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM query_results),
			(SELECT COUNT(*) FROM query_results WHERE json_extract(data, '$.mentioned') = 1),
			(SELECT COUNT(*) FROM crawls),
			(SELECT COUNT(*) FROM snapshots),
			(SELECT COUNT(*) FROM queries)
	`)
	if err := row.Scan(&s.Results, &s.Mentioned, &s.Crawls, &s.Snapshots, &s.Queries); err != nil {
		return Stats{}, err
	}
	return s, nil
}
