package quality

import (
	"strings"
	"unicode"
)

// Boilerplate phrases that disqualify a value outright when they make up the
// whole field. Matching is case-insensitive on the trimmed value.
var generalGarbage = []string{
	"apply now",
	"click here",
	"read more",
	"learn more",
	"see details",
	"view details",
	"more information",
	"n/a",
	"tba",
	"tbd",
	"coming soon",
	"loading",
	"untitled",
}

var titleGarbage = append([]string{
	"home",
	"scholarships",
	"scholarship",
	"blog",
	"news",
	"category",
	"archive",
	"search results",
	"page not found",
}, generalGarbage...)

var rewardGarbage = append([]string{
	"varies",
	"amount varies",
	"variable",
	"see details",
	"see website",
	"contact us",
	"not stated",
	"unknown",
}, generalGarbage...)

// isGarbage reports whether the value is one of the denylisted phrases, has
// a long repeated-character run, or is mostly punctuation noise.
func isGarbage(value string, denylist []string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return true
	}
	for _, phrase := range denylist {
		if trimmed == phrase {
			return true
		}
	}
	return hasRepeatedRun(trimmed, 5)
}

// hasRepeatedRun reports whether any rune repeats n or more times in a row
// ("!!!!!!", "aaaaaa").
func hasRepeatedRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// alnumDensity is the fraction of letters and digits among all non-space
// characters.
func alnumDensity(s string) float64 {
	var alnum, total int
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' {
			continue
		}
		total++
		if isAlnum(r) {
			alnum++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(alnum) / float64(total)
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
