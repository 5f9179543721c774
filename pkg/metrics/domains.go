package metrics

import (
	"net/url"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

// DomainCount is how often a registrable domain was cited.
type DomainCount struct {
	Domain string  `json:"domain"`
	Count  int     `json:"count"`
	Share  float64 `json:"share"`
}

// RootDomain reduces a URL to its registrable domain.
// e.g., "https://www.foo.samlino.co.uk/bil" -> "samlino.co.uk", true
func RootDomain(raw string) (string, bool) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if !strings.Contains(host, ".") {
		return "", false
	}
	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return "", false
	}
	return domain, true
}

// CitedDomains counts the registrable domains of every cited URL, most cited
// first. A URL cited twice in one result counts once.
func CitedDomains(results []model.QueryResult) []DomainCount {
	counts := make(map[string]int)
	total := 0
	for _, r := range results {
		seen := make(map[string]bool)
		for _, u := range r.URLs {
			d, ok := RootDomain(u)
			if !ok || seen[d] {
				continue
			}
			seen[d] = true
			counts[d]++
			total++
		}
	}
	out := make([]DomainCount, 0, len(counts))
	for _, nc := range sortCounts(counts) {
		out = append(out, DomainCount{
			Domain: nc.Name,
			Count:  nc.Count,
			Share:  round2(float64(nc.Count) / float64(total) * 100),
		})
	}
	return out
}
