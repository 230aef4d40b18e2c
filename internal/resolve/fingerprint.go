// Package resolve gives candidates an identity and decides whether they have
// been seen before: deterministic fingerprints, an exact/fuzzy duplicate
// ladder over state preloaded from the store, and the consecutive-duplicate
// breaker that stops walking a mostly-seen listing page.
package resolve

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint hashes a normalized title plus link into the record identity.
// It is deterministic and insensitive to title case and surrounding
// whitespace.
func Fingerprint(title, link string) string {
	sum := sha256.Sum256([]byte(NormalizeTitle(title) + "|" + strings.TrimSpace(link)))
	return hex.EncodeToString(sum[:])
}

// NormalizeTitle lowercases and collapses all whitespace runs.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// Search-term stop words: too common to narrow a title lookup.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "of": true, "for": true,
	"international": true, "global": true, "scholarship": true, "scholarships": true,
	"2024": true, "2025": true, "2026": true,
}

// SearchTerms picks the distinctive tokens of a title for a store lookup,
// capped at four terms.
func SearchTerms(title string) []string {
	var out []string
	for _, tok := range strings.Fields(NormalizeTitle(title)) {
		tok = strings.Trim(tok, ".,:;()[]\"'")
		if len(tok) < 3 || stopWords[tok] {
			continue
		}
		out = append(out, tok)
		if len(out) == 4 {
			break
		}
	}
	return out
}
