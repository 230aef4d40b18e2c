package resolve

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Similarity scores two titles 0-100 using token-sort edit similarity:
// normalize, sort the tokens, then compare. Word order ("2025 Acme Grant"
// vs "Acme Grant 2025") does not affect the score.
func Similarity(a, b string) int {
	sa, sb := tokenSort(a), tokenSort(b)
	if sa == "" || sb == "" {
		return 0
	}
	return int(levenshtein.Similarity(sa, sb, nil) * 100)
}

func tokenSort(s string) string {
	tokens := strings.Fields(NormalizeTitle(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
