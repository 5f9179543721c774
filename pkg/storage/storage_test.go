package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func result(id, query string, p model.Platform, mentioned bool) model.QueryResult {
	return model.QueryResult{
		ID:                 id,
		Query:              query,
		Platform:           p,
		Mentioned:          mentioned,
		Sentiment:          model.Neutral,
		Date:               "2024-04-10",
		CompetitorMentions: []string{},
		URLs:               []string{},
	}
}

func TestKV(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	var v map[string]int
	found, err := db.GetJSON(ctx, "missing", &v)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, db.SetJSON(ctx, "k", map[string]int{"a": 1}))
	require.NoError(t, db.SetJSON(ctx, "k", map[string]int{"a": 2}))
	found, err = db.GetJSON(ctx, "k", &v)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2, v["a"])

	require.NoError(t, db.Delete(ctx, "k"))
	found, err = db.GetJSON(ctx, "k", &v)
	require.NoError(t, err)
	require.False(t, found)
}

func TestAppendResultsUpsertsByID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.AppendResults(ctx, []model.QueryResult{
		result("a", "q1", model.ChatGPT, false),
		result("b", "q2", model.Claude, true),
	}))
	require.NoError(t, db.AppendResults(ctx, []model.QueryResult{
		result("a", "q1", model.ChatGPT, true),
		result("c", "q3", model.Gemini, false),
	}))

	got, err := db.LoadResults(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
	require.True(t, got[0].Mentioned)

	require.NoError(t, db.ClearResults(ctx))
	got, err = db.LoadResults(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSaveCrawlIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	id1, err := db.SaveCrawl(ctx, []model.QueryResult{result("a", "q1", model.ChatGPT, true)})
	require.NoError(t, err)
	id2, err := db.SaveCrawl(ctx, []model.QueryResult{
		result("b", "q2", model.Claude, false),
		result("c", "q2", model.ChatGPT, true),
	})
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	c1, err := db.GetCrawlByID(ctx, id1)
	require.NoError(t, err)
	require.NotNil(t, c1)
	require.Len(t, c1.Results, 1)

	c2, err := db.GetCrawlByID(ctx, id2)
	require.NoError(t, err)
	require.NotNil(t, c2)
	require.Equal(t, model.CrawlMetadata{TotalQueries: 1, Platforms: []string{"Claude", "ChatGPT"}, QueryCount: 2}, c2.Metadata)

	all, err := db.LoadAllCrawls(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, id2, all[0].CrawlID, "newest first")

	latest, err := db.GetLatestCrawl(ctx)
	require.NoError(t, err)
	require.Equal(t, id2, latest.CrawlID)

	flat, err := db.GetAllResults(ctx)
	require.NoError(t, err)
	require.Len(t, flat, 3)

	summaries, err := db.CrawlSummaries(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summaries[0].MentionedCount)
	require.Equal(t, 2, summaries[0].ResultCount)

	empty, err := db.SaveCrawl(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)

	require.NoError(t, db.DeleteCrawl(ctx, id1))
	require.ErrorIs(t, db.DeleteCrawl(ctx, id1), ErrCrawlNotFound)
	missing, err := db.GetCrawlByID(ctx, id1)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestCrawlsInRange(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	base := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ts := base.AddDate(0, 0, i*7)
		db.now = func() time.Time { return ts }
		_, err := db.SaveCrawl(ctx, []model.QueryResult{result(fmt.Sprintf("r%d", i), "q", model.ChatGPT, true)})
		require.NoError(t, err)
	}

	got, err := db.GetCrawlsInRange(ctx, base.AddDate(0, 0, 6), base.AddDate(0, 0, 21))
	require.NoError(t, err)
	require.Len(t, got, 3)

	db.now = func() time.Time { return base.AddDate(0, 0, 28) }
	recent, err := db.GetCrawlsLastNDays(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
}

func TestCrawlCap(t *testing.T) {
	if testing.Short() {
		t.Skip("inserts more than MaxCrawls rows")
	}
	ctx := context.Background()
	db := openTestDB(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var first string
	for i := 0; i < MaxCrawls+1; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		db.now = func() time.Time { return ts }
		id, err := db.SaveCrawl(ctx, []model.QueryResult{result("r", "q", model.ChatGPT, true)})
		require.NoError(t, err)
		if i == 0 {
			first = id
		}
	}
	all, err := db.LoadAllCrawls(ctx)
	require.NoError(t, err)
	require.Len(t, all, MaxCrawls)
	c, err := db.GetCrawlByID(ctx, first)
	require.NoError(t, err)
	require.Nil(t, c, "oldest crawl should be dropped")
}

func snapshot(week string, ts time.Time, visibility int) model.Snapshot {
	return model.Snapshot{
		ID:        "snapshot-" + week,
		Timestamp: ts,
		Date:      model.DateString(ts),
		Week:      week,
		Metrics:   model.SnapshotMetrics{OverallVisibility: visibility},
	}
}

func TestSaveSnapshotUpsertsByWeek(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	mon := time.Date(2024, 4, 8, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveSnapshot(ctx, snapshot("2024-W15", mon, 10)))
	require.NoError(t, db.SaveSnapshot(ctx, snapshot("2024-W15", mon.Add(48*time.Hour), 42)))

	all, err := db.LoadAllSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, 42, all[0].Metrics.OverallVisibility)

	require.NoError(t, db.SaveSnapshot(ctx, snapshot("2024-W16", mon.AddDate(0, 0, 7), 50)))
	latest, err := db.GetLatestSnapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, "2024-W16", latest.Week)
	prev, err := db.GetPreviousSnapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, "2024-W15", prev.Week)

	require.Error(t, db.SaveSnapshot(ctx, model.Snapshot{}))
}

func TestSnapshotCap(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxSnapshots+3; i++ {
		ts := base.AddDate(0, 0, 7*i)
		y, w := ts.ISOWeek()
		require.NoError(t, db.SaveSnapshot(ctx, snapshot(fmt.Sprintf("%d-W%02d", y, w), ts, i)))
	}
	all, err := db.LoadAllSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, all, MaxSnapshots)
	require.Equal(t, MaxSnapshots+2, all[0].Metrics.OverallVisibility)

	last4, err := db.GetLastNWeeks(ctx, 4)
	require.NoError(t, err)
	require.Len(t, last4, 4)
}

func TestQueriesAndLabels(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	cats, err := db.ListLabels(ctx, LabelCategory)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	require.Equal(t, "General", cats[0].Name)

	intents, err := db.ListLabels(ctx, LabelIntent)
	require.NoError(t, err)
	require.Equal(t, "Informational", intents[0].Name)

	car, err := db.AddLabel(ctx, LabelCategory, "Bilforsikring")
	require.NoError(t, err)
	again, err := db.AddLabel(ctx, LabelCategory, "bilforsikring")
	require.NoError(t, err)
	require.Equal(t, car.ID, again.ID)

	added, err := db.ImportQueries(ctx, []model.Query{
		{Text: "Hvem er bedst til bilforsikring?", Category: car.ID, Intent: DefaultLabelID},
		{Text: "   "},
		{Text: "Billig indboforsikring", Category: DefaultLabelID},
	})
	require.NoError(t, err)
	require.Len(t, added, 2)

	byCat, err := db.ListQueries(ctx, QueryFilter{Category: car.ID})
	require.NoError(t, err)
	require.Len(t, byCat, 1)

	text := "Hvem er billigst?"
	updated, err := db.UpdateQuery(ctx, added[0].ID, QueryUpdate{Text: &text})
	require.NoError(t, err)
	require.Equal(t, text, updated.Text)
	require.Equal(t, car.ID, updated.Category)

	ok, err := db.DeleteLabel(ctx, LabelCategory, car.ID)
	require.NoError(t, err)
	require.True(t, ok)
	q, err := db.GetQuery(ctx, added[0].ID)
	require.NoError(t, err)
	require.Empty(t, q.Category)
	require.Equal(t, DefaultLabelID, q.Intent)

	n, err := db.DeleteQueries(ctx, []string{added[0].ID, added[1].ID, "nope"})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// deleting every label must not bring the default back
	_, err = db.DeleteLabel(ctx, LabelCategory, DefaultLabelID)
	require.NoError(t, err)
	cats, err = db.ListLabels(ctx, LabelCategory)
	require.NoError(t, err)
	require.Empty(t, cats)

	require.NoError(t, db.ClearQueryData(ctx))
	cats, err = db.ListLabels(ctx, LabelCategory)
	require.NoError(t, err)
	require.Len(t, cats, 1)
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	var got []EventKind
	cancel := db.Subscribe(func(ev Event) { got = append(got, ev.Kind) })

	require.NoError(t, db.AppendResults(ctx, []model.QueryResult{result("a", "q", model.ChatGPT, true)}))
	_, err := db.SaveCrawl(ctx, []model.QueryResult{result("a", "q", model.ChatGPT, true)})
	require.NoError(t, err)
	require.NoError(t, db.SetJSON(ctx, "ai-visibility-config", map[string]string{}))
	cancel()
	require.NoError(t, db.ClearAll(ctx))

	require.Equal(t, []EventKind{EventResults, EventCrawls, EventConfig}, got)
}

func TestDeleteLabelAnnouncesQueryChange(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	car, err := db.AddLabel(ctx, LabelCategory, "Bilforsikring")
	require.NoError(t, err)

	var got []EventKind
	cancel := db.Subscribe(func(ev Event) { got = append(got, ev.Kind) })
	defer cancel()

	ok, err := db.DeleteLabel(ctx, LabelCategory, car.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []EventKind{EventQueries}, got)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.AppendResults(ctx, []model.QueryResult{
		result("a", "q", model.ChatGPT, true),
		result("b", "q", model.Claude, false),
	}))
	s, err := db.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, s.Results)
	require.Equal(t, 1, s.Mentioned)
}
