package detect

import (
	"regexp"
	"strings"
)

// Competitor is a tracked rival brand with the spellings it appears under.
type Competitor struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// Competitors is the built-in list tracked next to the brand.
var Competitors = []Competitor{
	{Name: "findforsikring", Aliases: []string{"findforsikring", "find forsikring", "findforsikring.dk"}},
	{Name: "fdm", Aliases: []string{"fdm", "FDM", "FDM.dk"}},
	{Name: "alm. brand", Aliases: []string{"alm. brand", "alm brand", "almbrand"}},
}

// CompetitorNames returns the canonical names of list in order.
func CompetitorNames(list []Competitor) []string {
	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, c.Name)
	}
	return names
}

type compiledCompetitor struct {
	name     string
	patterns []*regexp.Regexp
}

func compileCompetitor(c Competitor) compiledCompetitor {
	cc := compiledCompetitor{name: c.Name}
	seen := make(map[string]bool)
	for _, alias := range append([]string{c.Name}, c.Aliases...) {
		key := strings.ToLower(strings.TrimSpace(alias))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		cc.patterns = append(cc.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(key)+`\b`))
	}
	return cc
}

// DetectCompetitors returns the canonical names of every competitor named in
// text, in list order and without duplicates.
func (d *Detector) DetectCompetitors(text string) []string {
	found := []string{}
	for _, c := range d.competitors {
		for _, re := range c.patterns {
			if re.MatchString(text) {
				found = append(found, c.name)
				break
			}
		}
	}
	return found
}
