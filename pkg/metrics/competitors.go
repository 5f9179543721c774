package metrics

import (
	"math"
	"sort"
	"strings"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/detect"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

// EntityMetrics scores the brand or one competitor over a result set.
type EntityMetrics struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Visibility int    `json:"visibility"`
	Mentions   int    `json:"mentions"`
	Sentiment  int    `json:"sentiment"`
	Growth     int    `json:"growth"`
	IsUser     bool   `json:"isUser"`
}

func entityID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

func growth(m EntityMetrics, baseline *model.Snapshot) int {
	if baseline == nil {
		return 0
	}
	prev, ok := baseline.Competitor(m.Name)
	if !ok {
		return 0
	}
	return m.Visibility - prev.Visibility
}

// ForBrand scores the user's brand from the results' own mention data.
func ForBrand(results []model.QueryResult, brand string, baseline *model.Snapshot) EntityMetrics {
	m := EntityMetrics{
		ID:         entityID(brand),
		Name:       brand,
		Visibility: OverallVisibility(results),
		Mentions:   TotalMentions(results),
		Sentiment:  AvgSentiment(results),
		IsUser:     true,
	}
	m.Growth = growth(m, baseline)
	return m
}

// ForCompetitor scores a competitor from the results that name it. The
// detector records no rank for competitors, so every mention takes the
// missing-position penalty. Competitor sentiment is neutral.
func ForCompetitor(results []model.QueryResult, c detect.Competitor, baseline *model.Snapshot) EntityMetrics {
	var positions []int
	for _, r := range results {
		if r.HasCompetitor(c.Name) {
			positions = append(positions, 0)
		}
	}
	m := EntityMetrics{
		ID:         entityID(c.Name),
		Name:       c.Name,
		Visibility: visibility(len(results), positions),
		Mentions:   len(positions),
		Sentiment:  SentimentScore(model.Neutral),
	}
	m.Growth = growth(m, baseline)
	return m
}

// Ranking scores the brand and every competitor and sorts them by visibility,
// highest first. The brand wins ties.
func Ranking(results []model.QueryResult, brand string, competitors []detect.Competitor, baseline *model.Snapshot) []EntityMetrics {
	out := []EntityMetrics{ForBrand(results, brand, baseline)}
	for _, c := range competitors {
		out = append(out, ForCompetitor(results, c, baseline))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Visibility > out[j].Visibility })
	return out
}

// CompetitorRank is the brand's 1-indexed place in Ranking.
func CompetitorRank(results []model.QueryResult, brand string, competitors []detect.Competitor) int {
	for i, m := range Ranking(results, brand, competitors, nil) {
		if m.IsUser {
			return i + 1
		}
	}
	return 1
}

// NameCount pairs a name with how often it occurred.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CompetitorCounts tallies competitor mentions, most mentioned first.
func CompetitorCounts(results []model.QueryResult) []NameCount {
	counts := make(map[string]int)
	for _, r := range results {
		for _, c := range r.CompetitorMentions {
			counts[c]++
		}
	}
	return sortCounts(counts)
}

func sortCounts(counts map[string]int) []NameCount {
	out := make([]NameCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, NameCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// round2 keeps two decimals, used for percentages in reports.
func round2(f float64) float64 { return math.Round(f*100) / 100 }
