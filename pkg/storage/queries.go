package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/kimjeppesen/Samlino-ai-pressence/internal/utils"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

type LabelKind string

const (
	LabelCategory LabelKind = "category"
	LabelIntent   LabelKind = "intent"
)

// DefaultLabelID is the id of the seeded default category and intent.
const DefaultLabelID = "default"

var defaultLabelNames = map[LabelKind]string{
	LabelCategory: "General",
	LabelIntent:   "Informational",
}

func (k LabelKind) valid() bool { return k == LabelCategory || k == LabelIntent }

func (k LabelKind) idPrefix() string {
	if k == LabelCategory {
		return "cat"
	}
	return "intent"
}

// QueryFilter selects stored queries. Empty fields match everything.
type QueryFilter struct {
	Category string
	Intent   string
}

// QueryUpdate carries the fields to change on a stored query.
type QueryUpdate struct {
	Text     *string
	Category *string
	Intent   *string
}

// AddQuery stores q under a fresh id.
func (d *DB) AddQuery(ctx context.Context, q model.Query) (model.Query, error) {
	out, err := d.ImportQueries(ctx, []model.Query{q})
	if err != nil {
		return model.Query{}, err
	}
	if len(out) == 0 {
		return model.Query{}, errors.New("query is empty")
	}
	return out[0], nil
}

// ImportQueries stores every non-empty query and returns them with ids set.
func (d *DB) ImportQueries(ctx context.Context, qs []model.Query) ([]model.Query, error) {
	now := d.now().UTC()
	out := make([]model.Query, 0, len(qs))
	for _, q := range qs {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			continue
		}
		q.ID = utils.NewID("query")
		q.CreatedAt, q.UpdatedAt = now, now
		out = append(out, q)
	}
	if len(out) == 0 {
		return out, nil
	}
	err := d.withTx(ctx, Event{Kind: EventQueries}, func(tx *sql.Tx) error {
		for _, q := range out {
			if _, err := tx.ExecContext(ctx, `INSERT INTO queries(id, query, category, intent, created_at, updated_at) VALUES(?,?,?,?,?,?)`,
				q.ID, q.Text, nullIfEmpty(q.Category), nullIfEmpty(q.Intent), formatTS(q.CreatedAt), formatTS(q.UpdatedAt)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateQuery applies u to the stored query. It returns nil for an unknown id.
func (d *DB) UpdateQuery(ctx context.Context, id string, u QueryUpdate) (*model.Query, error) {
	q, err := d.GetQuery(ctx, id)
	if err != nil || q == nil {
		return nil, err
	}
	if u.Text != nil {
		q.Text = strings.TrimSpace(*u.Text)
	}
	if u.Category != nil {
		q.Category = *u.Category
	}
	if u.Intent != nil {
		q.Intent = *u.Intent
	}
	q.UpdatedAt = d.now().UTC()
	err = d.withTx(ctx, Event{Kind: EventQueries, Key: id}, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE queries SET query = ?, category = ?, intent = ?, updated_at = ? WHERE id = ?`,
			q.Text, nullIfEmpty(q.Category), nullIfEmpty(q.Intent), formatTS(q.UpdatedAt), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (d *DB) DeleteQuery(ctx context.Context, id string) (bool, error) {
	n, err := d.DeleteQueries(ctx, []string{id})
	return n > 0, err
}

// DeleteQueries removes the given ids and returns how many existed.
func (d *DB) DeleteQueries(ctx context.Context, ids []string) (int, error) {
	var deleted int64
	err := d.withTx(ctx, Event{Kind: EventQueries}, func(tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.ExecContext(ctx, "DELETE FROM queries WHERE id = ?", id)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			deleted += n
		}
		return nil
	})
	return int(deleted), err
}

func (d *DB) GetQuery(ctx context.Context, id string) (*model.Query, error) {
	qs, err := d.queryQueries(ctx, "WHERE id = ?", id)
	if err != nil || len(qs) == 0 {
		return nil, err
	}
	return &qs[0], nil
}

// ListQueries returns stored queries in insertion order.
func (d *DB) ListQueries(ctx context.Context, f QueryFilter) ([]model.Query, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if f.Category != "" {
		where += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.Intent != "" {
		where += " AND intent = ?"
		args = append(args, f.Intent)
	}
	return d.queryQueries(ctx, where, args...)
}

func (d *DB) queryQueries(ctx context.Context, where string, args ...interface{}) ([]model.Query, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT id, query, category, intent, created_at, updated_at FROM queries "+where+" ORDER BY seq", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Query{}
	for rows.Next() {
		var (
			q                model.Query
			cat, intent      sql.NullString
			created, updated string
		)
		if err := rows.Scan(&q.ID, &q.Text, &cat, &intent, &created, &updated); err != nil {
			return nil, err
		}
		q.Category = cat.String
		q.Intent = intent.String
		q.CreatedAt = parseTS(created)
		q.UpdatedAt = parseTS(updated)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListLabels returns the categories or intents. The first listing of an
// untouched kind seeds its default label.
func (d *DB) ListLabels(ctx context.Context, kind LabelKind) ([]model.Label, error) {
	if !kind.valid() {
		return nil, errors.New("unknown label kind: " + string(kind))
	}
	if err := d.seedLabels(ctx, kind); err != nil {
		return nil, err
	}
	rows, err := d.sql.QueryContext(ctx, "SELECT id, name, created_at FROM query_labels WHERE kind = ? ORDER BY seq", string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Label{}
	for rows.Next() {
		var l model.Label
		var created string
		if err := rows.Scan(&l.ID, &l.Name, &created); err != nil {
			return nil, err
		}
		l.CreatedAt = parseTS(created)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func seededKey(kind LabelKind) string { return "query-labels-seeded-" + string(kind) }

func (d *DB) seedLabels(ctx context.Context, kind LabelKind) error {
	var n int
	if err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM kv WHERE key = ?", seededKey(kind)).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return d.withTx(ctx, Event{Kind: EventLabels, Key: string(kind)}, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO query_labels(kind, id, name, created_at) VALUES(?,?,?,?)",
			string(kind), DefaultLabelID, defaultLabelNames[kind], formatTS(d.now())); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO kv(key, value) VALUES(?, 'true')", seededKey(kind))
		return err
	})
}

// AddLabel returns the existing label with the same name (ignoring case) or
// creates a new one.
func (d *DB) AddLabel(ctx context.Context, kind LabelKind, name string) (model.Label, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Label{}, errors.New("label name is empty")
	}
	existing, err := d.ListLabels(ctx, kind)
	if err != nil {
		return model.Label{}, err
	}
	for _, l := range existing {
		if strings.EqualFold(l.Name, name) {
			return l, nil
		}
	}
	l := model.Label{ID: utils.NewID(kind.idPrefix()), Name: name, CreatedAt: d.now().UTC()}
	err = d.withTx(ctx, Event{Kind: EventLabels, Key: string(kind)}, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO query_labels(kind, id, name, created_at) VALUES(?,?,?,?)",
			string(kind), l.ID, l.Name, formatTS(l.CreatedAt))
		return err
	})
	if err != nil {
		return model.Label{}, err
	}
	return l, nil
}

// DeleteLabel removes the label and detaches it from every query using it.
func (d *DB) DeleteLabel(ctx context.Context, kind LabelKind, id string) (bool, error) {
	if !kind.valid() {
		return false, errors.New("unknown label kind: " + string(kind))
	}
	column := "category"
	if kind == LabelIntent {
		column = "intent"
	}
	var found bool
	// Detaching rewrites query rows, so listeners see a queries change.
	err := d.withTx(ctx, Event{Kind: EventQueries, Key: string(kind)}, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM query_labels WHERE kind = ? AND id = ?", string(kind), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		found = true
		_, err = tx.ExecContext(ctx, "UPDATE queries SET "+column+" = NULL WHERE "+column+" = ?", id)
		return err
	})
	return found, err
}

// ClearQueryData removes stored queries and labels; defaults are seeded again
// on the next listing.
func (d *DB) ClearQueryData(ctx context.Context) error {
	return d.withTx(ctx, Event{Kind: EventQueries}, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			"DELETE FROM queries",
			"DELETE FROM query_labels",
			"DELETE FROM kv WHERE key LIKE 'query-labels-seeded-%'",
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func parseTS(s string) time.Time {
	if t, err := time.Parse(tsLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
