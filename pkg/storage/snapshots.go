package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

// SaveSnapshot stores s, replacing any snapshot for the same ISO week.
func (d *DB) SaveSnapshot(ctx context.Context, s model.Snapshot) error {
	if s.Week == "" {
		return errors.New("snapshot has no week")
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return d.withTx(ctx, Event{Kind: EventSnapshots, Key: s.Week}, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO snapshots(week, ts, data) VALUES(?,?,?)
			ON CONFLICT(week) DO UPDATE SET ts = excluded.ts, data = excluded.data`,
			s.Week, formatTS(s.Timestamp), string(raw)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE week NOT IN (
			SELECT week FROM snapshots ORDER BY ts DESC LIMIT ?)`, MaxSnapshots)
		return err
	})
}

func (d *DB) querySnapshots(ctx context.Context, where string, args ...interface{}) ([]model.Snapshot, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT data FROM snapshots "+where+" ORDER BY ts DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Snapshot{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var s model.Snapshot
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadAllSnapshots returns every snapshot, newest first.
func (d *DB) LoadAllSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	return d.querySnapshots(ctx, "")
}

func (d *DB) GetLatestSnapshot(ctx context.Context) (*model.Snapshot, error) {
	return d.snapshotAt(ctx, 0)
}

// GetPreviousSnapshot returns the second newest snapshot.
func (d *DB) GetPreviousSnapshot(ctx context.Context) (*model.Snapshot, error) {
	return d.snapshotAt(ctx, 1)
}

func (d *DB) snapshotAt(ctx context.Context, idx int) (*model.Snapshot, error) {
	all, err := d.LoadAllSnapshots(ctx)
	if err != nil || len(all) <= idx {
		return nil, err
	}
	return &all[idx], nil
}

func (d *DB) GetSnapshotsInRange(ctx context.Context, start, end time.Time) ([]model.Snapshot, error) {
	return d.querySnapshots(ctx, "WHERE ts >= ? AND ts <= ?", formatTS(start), formatTS(end))
}

// GetLastNWeeks returns up to n of the newest snapshots.
func (d *DB) GetLastNWeeks(ctx context.Context, n int) ([]model.Snapshot, error) {
	if n <= 0 {
		return []model.Snapshot{}, nil
	}
	return d.querySnapshots(ctx, "WHERE week IN (SELECT week FROM snapshots ORDER BY ts DESC LIMIT ?)", n)
}

func (d *DB) ClearSnapshots(ctx context.Context) error {
	return d.withTx(ctx, Event{Kind: EventSnapshots}, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM snapshots")
		return err
	})
}
