// Package metrics derives visibility scores, rankings and weekly trends from
// stored query results. Every function here is pure.
package metrics

import (
	"math"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

// missingPosition is the position assumed for a mention with no recorded
// rank, and for result sets with no mentions at all.
const missingPosition = 10

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

func trendOf(current, previous int) Trend {
	switch {
	case current > previous:
		return TrendUp
	case current < previous:
		return TrendDown
	default:
		return TrendStable
	}
}

// visibility blends mention rate and mention position into a 0-100 score.
// positions holds one rank per mentioning result, 0 when unknown.
func visibility(total int, positions []int) int {
	if total == 0 {
		return 0
	}
	mentionRate := float64(len(positions)) / float64(total) * 100
	avgPosition := float64(missingPosition)
	if len(positions) > 0 {
		sum := 0
		for _, p := range positions {
			if p <= 0 {
				p = missingPosition
			}
			sum += p
		}
		avgPosition = float64(sum) / float64(len(positions))
	}
	positionScore := math.Max(0, 100-(avgPosition-1)*10)
	return int(math.Round(mentionRate*0.6 + positionScore*0.4))
}

// OverallVisibility scores how visible the brand is across results.
func OverallVisibility(results []model.QueryResult) int {
	var positions []int
	for _, r := range results {
		if !r.Mentioned {
			continue
		}
		p := 0
		if r.Position != nil {
			p = *r.Position
		}
		positions = append(positions, p)
	}
	return visibility(len(results), positions)
}

func TotalMentions(results []model.QueryResult) int {
	n := 0
	for _, r := range results {
		if r.Mentioned {
			n++
		}
	}
	return n
}

// SentimentScore maps a sentiment onto the 0-100 scale.
func SentimentScore(s model.Sentiment) int {
	switch s {
	case model.Positive:
		return 80
	case model.Negative:
		return 30
	default:
		return 50
	}
}

// AvgSentiment averages the sentiment of mentioned results; 0 when there are none.
func AvgSentiment(results []model.QueryResult) int {
	sum, n := 0, 0
	for _, r := range results {
		if !r.Mentioned {
			continue
		}
		sum += SentimentScore(r.Sentiment)
		n++
	}
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(n)))
}

// PlatformMetrics summarises one platform's results.
type PlatformMetrics struct {
	Platform   model.Platform `json:"platform"`
	Visibility int            `json:"visibility"`
	Mentions   int            `json:"mentions"`
	Sentiment  int            `json:"sentiment"`
	Total      int            `json:"total"`
	Change     int            `json:"change"`
	Trend      Trend          `json:"trend"`
}

func ForPlatform(results []model.QueryResult, p model.Platform) PlatformMetrics {
	var subset []model.QueryResult
	for _, r := range results {
		if r.Platform == p {
			subset = append(subset, r)
		}
	}
	return PlatformMetrics{
		Platform:   p,
		Visibility: OverallVisibility(subset),
		Mentions:   TotalMentions(subset),
		Sentiment:  AvgSentiment(subset),
		Total:      len(subset),
		Trend:      TrendStable,
	}
}

// PlatformBreakdown returns metrics for every platform, with change and trend
// measured against baseline when it holds an entry for the platform.
func PlatformBreakdown(results []model.QueryResult, baseline *model.Snapshot) []PlatformMetrics {
	out := make([]PlatformMetrics, 0, len(model.AllPlatforms))
	for _, p := range model.AllPlatforms {
		m := ForPlatform(results, p)
		if baseline != nil {
			if prev, ok := baseline.Platform(p); ok {
				m.Change = m.Visibility - prev.Visibility
				m.Trend = trendOf(m.Visibility, prev.Visibility)
			}
		}
		out = append(out, m)
	}
	return out
}
