package model

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies one of the AI chat services whose answers are scanned.
type Platform string

const (
	ChatGPT    Platform = "ChatGPT"
	Claude     Platform = "Claude"
	Perplexity Platform = "Perplexity"
	Gemini     Platform = "Gemini"
)

// AllPlatforms lists every supported platform in display order.
var AllPlatforms = []Platform{ChatGPT, Claude, Perplexity, Gemini}

// platformAliases maps vendor and lowercase names to the canonical platform.
var platformAliases = map[string]Platform{
	"chatgpt":    ChatGPT,
	"openai":     ChatGPT,
	"gpt":        ChatGPT,
	"claude":     Claude,
	"anthropic":  Claude,
	"perplexity": Perplexity,
	"pplx":       Perplexity,
	"gemini":     Gemini,
	"google":     Gemini,
}

// ParsePlatform resolves a user supplied platform name.
func ParsePlatform(s string) (Platform, error) {
	p, ok := platformAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unsupported platform: %s", s)
	}
	return p, nil
}

// ParsePlatforms parses a comma separated list. "all" or "" yields nil (meaning: use configured).
func ParsePlatforms(s string) ([]Platform, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return nil, nil
	}
	var out []Platform
	seen := make(map[Platform]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := ParsePlatform(part)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

type Sentiment string

const (
	Positive Sentiment = "positive"
	Neutral  Sentiment = "neutral"
	Negative Sentiment = "negative"
)

// Query is a single prompt sent to every configured platform.
type Query struct {
	ID        string    `json:"id"`
	Text      string    `json:"query"`
	Category  string    `json:"category,omitempty"`
	Intent    string    `json:"intent,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// QueryResult is the outcome of one query on one platform.
type QueryResult struct {
	ID                 string    `json:"id"`
	Query              string    `json:"query"`
	Platform           Platform  `json:"platform"`
	Mentioned          bool      `json:"mentioned"`
	Position           *int      `json:"position"`
	Sentiment          Sentiment `json:"sentiment"`
	Date               string    `json:"date"`
	Context            string    `json:"context"`
	FullResponse       string    `json:"fullResponse,omitempty"`
	Confidence         float64   `json:"confidence"`
	CompetitorMentions []string  `json:"competitorMentions"`
	URLs               []string  `json:"urls"`
}

// HasCompetitor reports whether the result names the competitor.
func (r QueryResult) HasCompetitor(name string) bool {
	for _, c := range r.CompetitorMentions {
		if c == name {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// ProcessedQuery carries the results a query produced across platforms.
type ProcessedQuery struct {
	Query
	Results     []QueryResult `json:"results"`
	ProcessedAt time.Time     `json:"processedAt"`
	Status      Status        `json:"status"`
	Error       string        `json:"error,omitempty"`
}

type CrawlMetadata struct {
	TotalQueries int      `json:"totalQueries"`
	Platforms    []string `json:"platforms"`
	QueryCount   int      `json:"queryCount"`
}

// Crawl is one immutable processing run.
type Crawl struct {
	CrawlID   string        `json:"crawlId"`
	Timestamp time.Time     `json:"timestamp"`
	Date      string        `json:"date"`
	Results   []QueryResult `json:"results"`
	Metadata  CrawlMetadata `json:"metadata"`
}

// Summary condenses a crawl for listings.
func (c Crawl) Summary() CrawlSummary {
	s := CrawlSummary{
		CrawlID:     c.CrawlID,
		Date:        c.Date,
		Timestamp:   c.Timestamp,
		ResultCount: len(c.Results),
		Platforms:   c.Metadata.Platforms,
	}
	for _, r := range c.Results {
		if r.Mentioned {
			s.MentionedCount++
		}
	}
	return s
}

type CrawlSummary struct {
	CrawlID        string    `json:"crawlId"`
	Date           string    `json:"date"`
	Timestamp      time.Time `json:"timestamp"`
	ResultCount    int       `json:"resultCount"`
	MentionedCount int       `json:"mentionedCount"`
	Platforms      []string  `json:"platforms"`
}

type SnapshotMetrics struct {
	OverallVisibility int `json:"overallVisibility"`
	TotalMentions     int `json:"totalMentions"`
	AvgSentiment      int `json:"avgSentiment"`
	CompetitorRank    int `json:"competitorRank"`
	TotalQueries      int `json:"totalQueries"`
}

type PlatformSnapshot struct {
	Platform   Platform `json:"platform"`
	Visibility int      `json:"visibility"`
	Mentions   int      `json:"mentions"`
	Sentiment  int      `json:"sentiment"`
}

type CompetitorSnapshot struct {
	Name       string `json:"name"`
	Visibility int    `json:"visibility"`
	Mentions   int    `json:"mentions"`
	Sentiment  int    `json:"sentiment"`
}

// Snapshot is the aggregate metrics record kept once per ISO week.
type Snapshot struct {
	ID                string               `json:"id"`
	Timestamp         time.Time            `json:"timestamp"`
	Date              string               `json:"date"`
	Week              string               `json:"week"`
	Metrics           SnapshotMetrics      `json:"metrics"`
	PlatformMetrics   []PlatformSnapshot   `json:"platformMetrics"`
	CompetitorMetrics []CompetitorSnapshot `json:"competitorMetrics"`
}

// Platform returns the stored metrics for p, if any.
func (s Snapshot) Platform(p Platform) (PlatformSnapshot, bool) {
	for _, pm := range s.PlatformMetrics {
		if pm.Platform == p {
			return pm, true
		}
	}
	return PlatformSnapshot{}, false
}

// Competitor returns the stored metrics for the named entity, if any.
func (s Snapshot) Competitor(name string) (CompetitorSnapshot, bool) {
	for _, cm := range s.CompetitorMetrics {
		if cm.Name == name {
			return cm, true
		}
	}
	return CompetitorSnapshot{}, false
}

// Label is a user defined query category or intent.
type Label struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// DateString formats t as the YYYY-MM-DD day used on results and crawls.
func DateString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
