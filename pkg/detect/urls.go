package detect

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	urlPattern        = regexp.MustCompile(`(?i)(https?://[^\s]+|www\.[^\s]+|[a-z0-9-]+\.[a-z]{2,}(?:/[^\s]*)?)`)
	trailingPunctRe   = regexp.MustCompile(`[.,;:!?]+$`)
	schemePrefixRegex = regexp.MustCompile(`(?i)^https?://`)
)

// ExtractURLs returns the links cited in text. Scheme-less matches get
// https://, trailing punctuation is dropped and duplicates keep their first
// position. Candidates that do not parse as absolute URLs are discarded.
func ExtractURLs(text string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, m := range urlPattern.FindAllString(text, -1) {
		if !schemePrefixRegex.MatchString(m) {
			m = "https://" + m
		}
		m = trailingPunctRe.ReplaceAllString(m, "")
		if seen[m] || !validURL(m) {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	return host != "" && !strings.HasPrefix(host, ".") && !strings.Contains(host, "..")
}
