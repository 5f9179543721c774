package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

// AppendResults upserts results into the flat result list by id. New ids
// are appended; existing ids keep their place and take the new values.
func (d *DB) AppendResults(ctx context.Context, results []model.QueryResult) error {
	if len(results) == 0 {
		return nil
	}
	return d.withTx(ctx, Event{Kind: EventResults}, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO query_results(id, query, platform, date, data) VALUES(?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET query = excluded.query, platform = excluded.platform, date = excluded.date, data = excluded.data`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range results {
			raw, err := json.Marshal(r)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, r.ID, r.Query, string(r.Platform), r.Date, string(raw)); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadResults returns the flat result list in insertion order.
func (d *DB) LoadResults(ctx context.Context) ([]model.QueryResult, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT data FROM query_results ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.QueryResult{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r model.QueryResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) ClearResults(ctx context.Context) error {
	return d.withTx(ctx, Event{Kind: EventResults}, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM query_results")
		return err
	})
}
