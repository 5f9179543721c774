// Package detect finds brand mentions, competitor mentions and cited URLs in
// AI generated answers.
package detect

import (
	"math"
	"regexp"
	"strings"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

// contextRadius is the number of runes kept on each side of a mention.
const contextRadius = 50

// Mention is a single brand occurrence.
type Mention struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// Analysis is the outcome of scanning one response.
type Analysis struct {
	Mentioned          bool            `json:"mentioned"`
	Position           *int            `json:"position"`
	Sentiment          model.Sentiment `json:"sentiment"`
	Context            string          `json:"context"`
	Confidence         float64         `json:"confidence"`
	Mentions           []Mention       `json:"mentions"`
	CompetitorMentions []string        `json:"competitorMentions"`
	URLs               []string        `json:"urls"`
}

// Detector holds the compiled matchers for one brand configuration.
type Detector struct {
	brand       string
	terms       []*regexp.Regexp
	competitors []compiledCompetitor
}

// New compiles the matchers for brand, its aliases and the competitor list.
// A nil competitor list means the built-in Competitors.
func New(brand string, aliases []string, competitors []Competitor) *Detector {
	if competitors == nil {
		competitors = Competitors
	}
	d := &Detector{brand: brand}
	for _, term := range SearchTerms(brand, aliases) {
		d.terms = append(d.terms, termPattern(term))
	}
	for _, c := range competitors {
		d.competitors = append(d.competitors, compileCompetitor(c))
	}
	return d
}

// SearchTerms returns brand plus aliases, lowercased, trimmed and deduplicated
// case-insensitively in first-seen order.
func SearchTerms(brand string, aliases []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range append([]string{brand}, aliases...) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// termPattern builds the matcher for a single search term. Domain-like terms
// (containing a dot) match as plain substrings since a boundary after the TLD
// would reject "samlino.dk/".
func termPattern(term string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(term)
	if strings.Contains(term, ".") {
		return regexp.MustCompile(`(?i)` + quoted)
	}
	return regexp.MustCompile(`(?i)\b` + quoted + `\b`)
}

// Analyze scans text for the brand, its competitors and, when the brand is
// mentioned, the URLs it cites.
func (d *Detector) Analyze(text string) Analysis {
	a := Analysis{
		// There is no sentiment classifier; every answer is neutral.
		Sentiment:          model.Neutral,
		Mentions:           []Mention{},
		CompetitorMentions: d.DetectCompetitors(text),
		URLs:               []string{},
	}

	for _, re := range d.terms {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			m := Mention{
				Text:     excerpt(text, loc[0], loc[1]),
				Position: len(a.Mentions) + 1,
			}
			if a.Position == nil {
				pos := m.Position
				a.Position = &pos
				a.Context = m.Text
			}
			a.Mentions = append(a.Mentions, m)
		}
	}

	a.Mentioned = len(a.Mentions) > 0
	a.Confidence = Confidence(len(a.Mentions), len([]rune(text)))
	if a.Mentioned {
		a.URLs = ExtractURLs(text)
	}
	return a
}

// excerpt returns the text around [start,end) widened by contextRadius runes.
func excerpt(text string, start, end int) string {
	before := []rune(text[:start])
	after := []rune(text[end:])
	from := len(before) - contextRadius
	if from < 0 {
		from = 0
	}
	to := contextRadius
	if to > len(after) {
		to = len(after)
	}
	return string(before[from:]) + text[start:end] + string(after[:to])
}

// Confidence scores a detection from the mention count and response length.
func Confidence(mentions, length int) float64 {
	c := math.Min(float64(mentions)*0.3, 0.9)
	if length > 200 {
		c = math.Min(c+0.1, 1.0)
	}
	if mentions > 0 && c < 0.5 {
		c = 0.5
	}
	return math.Round(c*100) / 100
}
