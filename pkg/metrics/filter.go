package metrics

import (
	"strings"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

// Filter narrows a result set. Category and Intent are label ids matched
// through the stored query with the same text.
type Filter struct {
	Category      string
	Intent        string
	Platform      model.Platform
	MentionedOnly bool
}

func (f Filter) empty() bool {
	return f.Category == "" && f.Intent == "" && f.Platform == "" && !f.MentionedOnly
}

func normalizeText(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// FilterResults returns the results matching f. Results whose query text has
// no stored counterpart never match a category or intent filter.
func FilterResults(results []model.QueryResult, stored []model.Query, f Filter) []model.QueryResult {
	if f.empty() {
		return results
	}
	byText := make(map[string]model.Query, len(stored))
	for _, q := range stored {
		key := normalizeText(q.Text)
		if _, dup := byText[key]; !dup {
			byText[key] = q
		}
	}

	out := []model.QueryResult{}
	for _, r := range results {
		if f.Platform != "" && r.Platform != f.Platform {
			continue
		}
		if f.MentionedOnly && !r.Mentioned {
			continue
		}
		if f.Category != "" || f.Intent != "" {
			q, ok := byText[normalizeText(r.Query)]
			if !ok {
				continue
			}
			if f.Category != "" && q.Category != f.Category {
				continue
			}
			if f.Intent != "" && q.Intent != f.Intent {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}
