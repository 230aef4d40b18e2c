package extract

import (
	"regexp"
	"strings"

	"github.com/scholarscope/harvest-cli/internal/model"
)

// Currency regex families tried in order. Each match must carry a magnitude
// above rewardMinMagnitude to rule out list prices and page noise.
var rewardFamilies = []struct {
	re     *regexp.Regexp
	symbol string
}{
	{regexp.MustCompile(`(?:₦|NGN|\bN)\s?(\d[\d,]{2,}(?:\.\d{1,2})?)`), "₦"},
	{regexp.MustCompile(`(?:\$|USD|US\$)\s?(\d[\d,]*(?:\.\d{1,2})?)`), "$"},
	{regexp.MustCompile(`(?i)(?:amount\s+of|worth|grants?\s+of|up\s+to|valued\s+at)\s+(?:₦|NGN|\$|USD)?\s?(\d[\d,]*)`), ""},
}

const rewardMinMagnitude = 1000

// Funding keywords tried when no plausible money figure appears.
var fundingKeywords = []struct {
	keyword string
	label   string
}{
	{"fully funded", "Fully funded"},
	{"full scholarship", "Full scholarship"},
	{"tuition", "Tuition funding"},
	{"stipend", "Stipend provided"},
	{"fee waiver", "Fee waiver"},
}

// ExtractReward finds a money amount or funding phrase in free text,
// returning the sentinel when neither appears.
func ExtractReward(text string) string {
	for _, fam := range rewardFamilies {
		for _, m := range fam.re.FindAllStringSubmatch(text, 10) {
			amount := m[1]
			if magnitude(amount) > rewardMinMagnitude {
				symbol := fam.symbol
				if symbol == "" {
					symbol = "₦"
				}
				return symbol + amount
			}
		}
	}

	lower := strings.ToLower(text)
	for _, f := range fundingKeywords {
		if strings.Contains(lower, f.keyword) {
			return f.label
		}
	}

	return model.RewardUnspecified
}

func magnitude(s string) int {
	s = strings.ReplaceAll(s, ",", "")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
		if n > 1<<40 {
			return n
		}
	}
	return n
}
