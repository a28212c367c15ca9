// Package urlnorm canonicalizes candidate URLs for deduplication.
package urlnorm

import (
	"strings"

	"github.com/JakeFAU/research-fetcher/internal/research"
)

// Normalize lowercases the whole URL and strips exactly one trailing slash.
// Schemes, query strings and hosts are otherwise left alone, so http and
// https forms of the same page remain distinct.
func Normalize(rawURL string) string {
	return strings.TrimSuffix(strings.ToLower(rawURL), "/")
}

// Deduplicate keeps the first occurrence of each normalized URL and preserves
// the relative order of the survivors.
func Deduplicate(candidates []research.CandidateURL) []research.CandidateURL {
	out := make([]research.CandidateURL, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		key := Normalize(c.URL)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
