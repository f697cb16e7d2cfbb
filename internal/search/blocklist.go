package search

import (
	"net/url"
	"strings"
)

// Blocklist filters search results whose URL host matches one of a
// configured set of hostname patterns (exact host, domain suffix, or
// bare substring for catch-all categories like "porn" or "casino").
// Structurally the same exact/suffix matching the teacher repo uses
// to classify source authority, repurposed here to reject rather than
// tier sources.
type Blocklist struct {
	patterns []string
}

// NewBlocklist compiles patterns (lower-cased) into a Blocklist.
func NewBlocklist(patterns []string) *Blocklist {
	b := &Blocklist{patterns: make([]string, 0, len(patterns))}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			b.patterns = append(b.patterns, p)
		}
	}
	return b
}

// Blocked reports whether rawURL's host matches any configured
// pattern. An unparsable URL is treated as blocked — evidence must be
// fetchable from a well-formed URL.
func (b *Blocklist) Blocked(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	host := strings.ToLower(parsed.Host)
	if idx := strings.Index(host, ":"); idx > 0 {
		host = host[:idx]
	}
	if host == "" {
		return true
	}

	for _, p := range b.patterns {
		if host == p || strings.HasSuffix(host, "."+p) || strings.Contains(host, p) {
			return true
		}
	}

	return false
}

// Filter returns the subset of results whose URL is not blocked.
func (b *Blocklist) Filter(results []TextResult) []TextResult {
	out := make([]TextResult, 0, len(results))
	for _, r := range results {
		if !b.Blocked(r.URL) {
			out = append(out, r)
		}
	}
	return out
}
