package metrics

import (
	"reflect"
	"testing"
	"time"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/detect"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

func intPtr(i int) *int { return &i }

func res(p model.Platform, mentioned bool, pos *int, competitors ...string) model.QueryResult {
	return model.QueryResult{
		Query:              "q",
		Platform:           p,
		Mentioned:          mentioned,
		Position:           pos,
		Sentiment:          model.Neutral,
		CompetitorMentions: competitors,
	}
}

func TestOverallVisibility(t *testing.T) {
	tests := []struct {
		name    string
		results []model.QueryResult
		want    int
	}{
		{name: "empty", results: nil, want: 0},
		{
			name:    "all mentioned at position one",
			results: []model.QueryResult{res(model.ChatGPT, true, intPtr(1)), res(model.Claude, true, intPtr(1))},
			want:    100,
		},
		{
			name:    "nothing mentioned takes the position penalty",
			results: []model.QueryResult{res(model.ChatGPT, false, nil)},
			want:    4,
		},
		{
			name:    "mentioned without position",
			results: []model.QueryResult{res(model.ChatGPT, true, nil), res(model.ChatGPT, false, nil)},
			want:    34,
		},
		{
			name:    "half mentioned at position one",
			results: []model.QueryResult{res(model.ChatGPT, true, intPtr(1)), res(model.ChatGPT, false, nil)},
			want:    70,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := OverallVisibility(tc.results); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestAvgSentiment(t *testing.T) {
	if got := AvgSentiment([]model.QueryResult{res(model.ChatGPT, false, nil)}); got != 0 {
		t.Fatalf("no mentions: got %d", got)
	}
	rs := []model.QueryResult{res(model.ChatGPT, true, intPtr(1)), res(model.ChatGPT, true, intPtr(1))}
	rs[0].Sentiment = model.Positive
	if got := AvgSentiment(rs); got != 65 {
		t.Fatalf("got %d, want 65", got)
	}
}

func TestRanking(t *testing.T) {
	comps := detect.Competitors

	t.Run("brand wins ties", func(t *testing.T) {
		rs := []model.QueryResult{res(model.ChatGPT, false, nil)}
		if got := CompetitorRank(rs, "Samlino", comps); got != 1 {
			t.Fatalf("rank = %d, want 1", got)
		}
	})

	t.Run("competitor ahead of brand", func(t *testing.T) {
		rs := []model.QueryResult{
			res(model.ChatGPT, false, nil, "fdm"),
			res(model.ChatGPT, false, nil),
		}
		ranking := Ranking(rs, "Samlino", comps, nil)
		if ranking[0].Name != "fdm" || ranking[0].Visibility != 34 || ranking[0].Mentions != 1 {
			t.Fatalf("unexpected leader: %+v", ranking[0])
		}
		if ranking[0].Sentiment != 50 {
			t.Fatalf("competitor sentiment should be neutral: %+v", ranking[0])
		}
		if got := CompetitorRank(rs, "Samlino", comps); got != 2 {
			t.Fatalf("rank = %d, want 2", got)
		}
	})

	t.Run("growth against baseline", func(t *testing.T) {
		rs := []model.QueryResult{res(model.ChatGPT, false, nil, "fdm")}
		base := &model.Snapshot{CompetitorMetrics: []model.CompetitorSnapshot{{Name: "fdm", Visibility: 60}}}
		m := ForCompetitor(rs, comps[1], base)
		if m.Growth != 4 {
			t.Fatalf("growth = %d, want 4", m.Growth)
		}
	})
}

func TestISOWeek(t *testing.T) {
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Date(2021, 1, 1, 12, 0, 0, 0, time.UTC), "2020-W53"},
		{time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), "2025-W01"},
		{time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), "2024-W15"},
	}
	for _, tc := range tests {
		if got := ISOWeek(tc.t); got != tc.want {
			t.Fatalf("ISOWeek(%s) = %s, want %s", tc.t, got, tc.want)
		}
	}
}

func TestCompareInvertsRank(t *testing.T) {
	cur := model.Snapshot{Metrics: model.SnapshotMetrics{OverallVisibility: 50, CompetitorRank: 1}}
	prev := &model.Snapshot{Metrics: model.SnapshotMetrics{OverallVisibility: 60, CompetitorRank: 2}}

	c := Compare(cur, prev)
	if !c.HasComparison {
		t.Fatalf("expected comparison")
	}
	if c.OverallVisibility.Change != -10 || c.OverallVisibility.Trend != TrendDown {
		t.Fatalf("visibility delta: %+v", c.OverallVisibility)
	}
	if c.CompetitorRank.Change != -1 || c.CompetitorRank.Trend != TrendUp {
		t.Fatalf("rank delta: %+v", c.CompetitorRank)
	}

	none := Compare(cur, nil)
	if none.HasComparison || none.OverallVisibility.Trend != TrendStable || none.OverallVisibility.Change != 0 {
		t.Fatalf("unexpected comparison without baseline: %+v", none)
	}
}

func TestBaselineFor(t *testing.T) {
	now := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	snaps := []model.Snapshot{{Week: "2024-W15"}, {Week: "2024-W14"}, {Week: "2024-W12"}}
	if b := BaselineFor(snaps, now); b == nil || b.Week != "2024-W14" {
		t.Fatalf("got %+v", b)
	}
	if b := BaselineFor(snaps[:1], now); b != nil {
		t.Fatalf("same-week snapshot must not be a baseline: %+v", b)
	}
	if b := BaselineFor(snaps[1:], now); b == nil || b.Week != "2024-W14" {
		t.Fatalf("got %+v", b)
	}
}

func TestCreateSnapshotAndKPIs(t *testing.T) {
	now := time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC)
	rs := []model.QueryResult{
		res(model.ChatGPT, true, intPtr(1), "findforsikring"),
		res(model.Claude, false, nil),
	}
	s := CreateSnapshot(rs, "Samlino", detect.Competitors, now)
	if s.Week != "2024-W15" || s.Date != "2024-04-10" {
		t.Fatalf("unexpected week/date: %s %s", s.Week, s.Date)
	}
	if s.Metrics.TotalQueries != 2 || s.Metrics.TotalMentions != 1 || s.Metrics.OverallVisibility != 70 {
		t.Fatalf("unexpected metrics: %+v", s.Metrics)
	}
	if len(s.PlatformMetrics) != 4 || len(s.CompetitorMetrics) != 4 {
		t.Fatalf("expected 4 platforms and 4 entities, got %d/%d", len(s.PlatformMetrics), len(s.CompetitorMetrics))
	}
	if s.CompetitorMetrics[0].Name != "Samlino" {
		t.Fatalf("brand should lead: %+v", s.CompetitorMetrics)
	}

	base := &model.Snapshot{Week: "2024-W14", Metrics: model.SnapshotMetrics{OverallVisibility: 60, TotalMentions: 1, CompetitorRank: 2}}
	k := ComputeKPIs(rs, "Samlino", detect.Competitors, base, now)
	if k.OverallVisibility.Description != "vs last week: +10" {
		t.Fatalf("got %q", k.OverallVisibility.Description)
	}
	if k.CompetitorRank.Description != "vs last week: ↑ 1" {
		t.Fatalf("got %q", k.CompetitorRank.Description)
	}

	k = ComputeKPIs(rs, "Samlino", detect.Competitors, nil, now)
	if k.HasComparison || k.TotalMentions.Description != "From 2 queries" {
		t.Fatalf("unexpected kpis: %+v", k)
	}
}

func TestPlatformBreakdown(t *testing.T) {
	rs := []model.QueryResult{res(model.ChatGPT, true, intPtr(1))}
	base := &model.Snapshot{PlatformMetrics: []model.PlatformSnapshot{{Platform: model.ChatGPT, Visibility: 80}}}
	got := PlatformBreakdown(rs, base)
	if got[0].Platform != model.ChatGPT || got[0].Change != 20 || got[0].Trend != TrendUp {
		t.Fatalf("unexpected chatgpt metrics: %+v", got[0])
	}
	if got[1].Total != 0 || got[1].Visibility != 0 || got[1].Trend != TrendStable {
		t.Fatalf("unexpected claude metrics: %+v", got[1])
	}
}

func TestTrendData(t *testing.T) {
	snaps := []model.Snapshot{
		{Week: "2024-W03", Metrics: model.SnapshotMetrics{OverallVisibility: 30}},
		{Week: "2024-W02", Metrics: model.SnapshotMetrics{OverallVisibility: 20}},
		{Week: "2024-W01", Metrics: model.SnapshotMetrics{OverallVisibility: 10}},
	}
	tr := TrendData(snaps, 2)
	if !reflect.DeepEqual(tr.Weeks, []string{"2024-W02", "2024-W03"}) {
		t.Fatalf("weeks = %v", tr.Weeks)
	}
	if !reflect.DeepEqual(tr.Visibility, []int{20, 30}) {
		t.Fatalf("visibility = %v", tr.Visibility)
	}
	if len(tr.PlatformVisibility[model.Gemini]) != 2 {
		t.Fatalf("platform series should be padded: %v", tr.PlatformVisibility)
	}
}

func TestCitedDomains(t *testing.T) {
	rs := []model.QueryResult{
		{URLs: []string{"https://www.samlino.dk/bil", "https://samlino.dk/hus", "https://fdm.dk"}},
		{URLs: []string{"https://blog.samlino.dk"}},
		{URLs: []string{"https://news.bbc.co.uk/a"}},
	}
	got := CitedDomains(rs)
	want := []DomainCount{
		{Domain: "samlino.dk", Count: 2, Share: 50},
		{Domain: "bbc.co.uk", Count: 1, Share: 25},
		{Domain: "fdm.dk", Count: 1, Share: 25},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestCompetitorCounts(t *testing.T) {
	rs := []model.QueryResult{
		res(model.ChatGPT, false, nil, "fdm", "findforsikring"),
		res(model.ChatGPT, false, nil, "fdm"),
	}
	got := CompetitorCounts(rs)
	want := []NameCount{{Name: "fdm", Count: 2}, {Name: "findforsikring", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v", got)
	}
}

func TestFilterResults(t *testing.T) {
	stored := []model.Query{
		{Text: "Hvem er bedst?", Category: "cat-car", Intent: "default"},
		{Text: "Billig indbo", Category: "default"},
	}
	rs := []model.QueryResult{
		{Query: "  hvem er bedst? ", Platform: model.ChatGPT, Mentioned: true},
		{Query: "Billig indbo", Platform: model.Claude},
		{Query: "Ukendt", Platform: model.ChatGPT, Mentioned: true},
	}

	tests := []struct {
		name string
		f    Filter
		want int
	}{
		{name: "no filter", f: Filter{}, want: 3},
		{name: "category", f: Filter{Category: "cat-car"}, want: 1},
		{name: "intent", f: Filter{Intent: "default"}, want: 1},
		{name: "platform", f: Filter{Platform: model.ChatGPT}, want: 2},
		{name: "mentioned only", f: Filter{MentionedOnly: true}, want: 2},
		{name: "category and platform", f: Filter{Category: "default", Platform: model.ChatGPT}, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FilterResults(rs, stored, tc.f); len(got) != tc.want {
				t.Fatalf("got %d results, want %d", len(got), tc.want)
			}
		})
	}
}
