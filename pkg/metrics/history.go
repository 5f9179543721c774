package metrics

import (
	"fmt"
	"time"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/detect"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

// ISOWeek formats t's ISO-8601 week as YYYY-Www.
func ISOWeek(t time.Time) string {
	y, w := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// CreateSnapshot aggregates results into the weekly record for now.
func CreateSnapshot(results []model.QueryResult, brand string, competitors []detect.Competitor, now time.Time) model.Snapshot {
	now = now.UTC()
	s := model.Snapshot{
		ID:        "snapshot-" + now.Format(time.RFC3339Nano),
		Timestamp: now,
		Date:      model.DateString(now),
		Week:      ISOWeek(now),
		Metrics: model.SnapshotMetrics{
			OverallVisibility: OverallVisibility(results),
			TotalMentions:     TotalMentions(results),
			AvgSentiment:      AvgSentiment(results),
			CompetitorRank:    CompetitorRank(results, brand, competitors),
			TotalQueries:      len(results),
		},
	}
	for _, pm := range PlatformBreakdown(results, nil) {
		s.PlatformMetrics = append(s.PlatformMetrics, model.PlatformSnapshot{
			Platform:   pm.Platform,
			Visibility: pm.Visibility,
			Mentions:   pm.Mentions,
			Sentiment:  pm.Sentiment,
		})
	}
	for _, m := range Ranking(results, brand, competitors, nil) {
		s.CompetitorMetrics = append(s.CompetitorMetrics, model.CompetitorSnapshot{
			Name:       m.Name,
			Visibility: m.Visibility,
			Mentions:   m.Mentions,
			Sentiment:  m.Sentiment,
		})
	}
	return s
}

// BaselineFor picks the snapshot current metrics are compared with: the
// newest one from a week before now's week. snapshots must be newest first.
func BaselineFor(snapshots []model.Snapshot, now time.Time) *model.Snapshot {
	week := ISOWeek(now)
	for i := range snapshots {
		if snapshots[i].Week < week {
			return &snapshots[i]
		}
	}
	return nil
}

type Delta struct {
	Current  int   `json:"current"`
	Previous int   `json:"previous"`
	Change   int   `json:"change"`
	Trend    Trend `json:"trend"`
}

type Comparison struct {
	OverallVisibility Delta `json:"overallVisibility"`
	TotalMentions     Delta `json:"totalMentions"`
	AvgSentiment      Delta `json:"avgSentiment"`
	CompetitorRank    Delta `json:"competitorRank"`
	HasComparison     bool  `json:"hasComparison"`
}

func delta(current, previous int) Delta {
	return Delta{Current: current, Previous: previous, Change: current - previous, Trend: trendOf(current, previous)}
}

// Compare diffs current against baseline. A lower rank is an improvement,
// so the rank trend is inverted.
func Compare(current model.Snapshot, baseline *model.Snapshot) Comparison {
	cur := current.Metrics
	if baseline == nil {
		return Comparison{
			OverallVisibility: Delta{Current: cur.OverallVisibility, Trend: TrendStable},
			TotalMentions:     Delta{Current: cur.TotalMentions, Trend: TrendStable},
			AvgSentiment:      Delta{Current: cur.AvgSentiment, Trend: TrendStable},
			CompetitorRank:    Delta{Current: cur.CompetitorRank, Trend: TrendStable},
		}
	}
	prev := baseline.Metrics
	rank := delta(cur.CompetitorRank, prev.CompetitorRank)
	rank.Trend = trendOf(prev.CompetitorRank, cur.CompetitorRank)
	return Comparison{
		OverallVisibility: delta(cur.OverallVisibility, prev.OverallVisibility),
		TotalMentions:     delta(cur.TotalMentions, prev.TotalMentions),
		AvgSentiment:      delta(cur.AvgSentiment, prev.AvgSentiment),
		CompetitorRank:    rank,
		HasComparison:     true,
	}
}

// KPI is one headline number for the overview.
type KPI struct {
	Value       int    `json:"value"`
	Change      int    `json:"change"`
	Trend       Trend  `json:"trend"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type KPIs struct {
	OverallVisibility KPI  `json:"overallVisibility"`
	TotalMentions     KPI  `json:"totalMentions"`
	AvgSentiment      KPI  `json:"avgSentiment"`
	CompetitorRank    KPI  `json:"competitorRank"`
	HasComparison     bool `json:"hasComparison"`
}

func signed(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}

// ComputeKPIs builds the overview headline numbers, compared with baseline.
func ComputeKPIs(results []model.QueryResult, brand string, competitors []detect.Competitor, baseline *model.Snapshot, now time.Time) KPIs {
	cmp := Compare(CreateSnapshot(results, brand, competitors, now), baseline)
	kpi := func(d Delta, label, fallback string) KPI {
		k := KPI{Value: d.Current, Change: d.Change, Trend: d.Trend, Label: label, Description: fallback}
		if cmp.HasComparison {
			k.Description = "vs last week: " + signed(d.Change)
		}
		return k
	}
	out := KPIs{
		OverallVisibility: kpi(cmp.OverallVisibility, "Overall AI Visibility Score", "Across all monitored AI platforms"),
		TotalMentions:     kpi(cmp.TotalMentions, "Total AI Mentions", fmt.Sprintf("From %d queries", len(results))),
		AvgSentiment:      kpi(cmp.AvgSentiment, "Sentiment Score", "Positive mention rate"),
		CompetitorRank:    kpi(cmp.CompetitorRank, "Competitor Ranking", "In your industry category"),
		HasComparison:     cmp.HasComparison,
	}
	if cmp.HasComparison {
		arrow := "→"
		switch {
		case cmp.CompetitorRank.Change > 0:
			arrow = "↓"
		case cmp.CompetitorRank.Change < 0:
			arrow = "↑"
		}
		c := cmp.CompetitorRank.Change
		if c < 0 {
			c = -c
		}
		out.CompetitorRank.Description = fmt.Sprintf("vs last week: %s %d", arrow, c)
	}
	return out
}

// TrendSeries holds chart series for the last weeks, oldest first.
type TrendSeries struct {
	Weeks              []string                 `json:"weeks"`
	Dates              []string                 `json:"dates"`
	Visibility         []int                    `json:"visibility"`
	Mentions           []int                    `json:"mentions"`
	Sentiment          []int                    `json:"sentiment"`
	Rank               []int                    `json:"rank"`
	PlatformVisibility map[model.Platform][]int `json:"platformVisibility"`
}

// TrendData turns up to weeks of the newest snapshots into chart series.
// snapshots must be newest first.
func TrendData(snapshots []model.Snapshot, weeks int) TrendSeries {
	if weeks <= 0 {
		weeks = 12
	}
	if len(snapshots) > weeks {
		snapshots = snapshots[:weeks]
	}
	t := TrendSeries{
		Weeks:              []string{},
		Dates:              []string{},
		Visibility:         []int{},
		Mentions:           []int{},
		Sentiment:          []int{},
		Rank:               []int{},
		PlatformVisibility: make(map[model.Platform][]int),
	}
	for _, p := range model.AllPlatforms {
		t.PlatformVisibility[p] = []int{}
	}
	for i := len(snapshots) - 1; i >= 0; i-- {
		s := snapshots[i]
		t.Weeks = append(t.Weeks, s.Week)
		t.Dates = append(t.Dates, s.Date)
		t.Visibility = append(t.Visibility, s.Metrics.OverallVisibility)
		t.Mentions = append(t.Mentions, s.Metrics.TotalMentions)
		t.Sentiment = append(t.Sentiment, s.Metrics.AvgSentiment)
		t.Rank = append(t.Rank, s.Metrics.CompetitorRank)
		for _, p := range model.AllPlatforms {
			pm, _ := s.Platform(p)
			t.PlatformVisibility[p] = append(t.PlatformVisibility[p], pm.Visibility)
		}
	}
	return t
}
