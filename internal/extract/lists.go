package extract

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	listItemMinLen = 10
	listItemMaxLen = 200
	listMaxItems   = 10
)

var (
	listSplitRe   = regexp.MustCompile(`[\n;•►→➤]+`)
	listPrefixRe  = regexp.MustCompile(`^(?:[-*·–—]|\(?\d{1,2}[.)])\s*`)
	requirementsSectionRe = regexp.MustCompile(`(?is)(?:requirements?|documents?\s+required|how\s+to\s+apply)\s*:?\s*(.{20,600}?)(?:\n\s*\n|\z)`)
	eligibilitySectionRe  = regexp.MustCompile(`(?is)(?:eligibility|eligible\s+candidates?|who\s+can\s+apply)\s*:?\s*(.{20,600}?)(?:\n\s*\n|\z)`)
)

var requirementKeywords = []string{
	"must", "should", "require", "submit", "document", "transcript",
	"certificate", "letter", "essay", "reference", "cgpa", "gpa", "grade",
	"result", "degree", "admission", "proof", "applicant", "cv", "resume",
}

var eligibilityKeywords = []string{
	"eligible", "citizen", "national", "resident", "age", "student",
	"enrolled", "studying", "undergraduate", "graduate", "postgraduate",
	"female", "women", "must be", "open to", "applicants", "year of study",
}

// Last-resort keyword-to-label table when no list structure exists at all.
var eligibilityLabels = []struct {
	keyword string
	label   string
}{
	{"undergraduate", "Open to undergraduate students"},
	{"postgraduate", "Open to postgraduate students"},
	{"secondary school", "Open to secondary school students"},
	{"international", "Open to international applicants"},
	{"women", "Open to female applicants"},
}

var requirementLabels = []struct {
	keyword string
	label   string
}{
	{"transcript", "Academic transcript required"},
	{"essay", "Application essay required"},
	{"reference", "Reference letter required"},
	{"cgpa", "Minimum CGPA required"},
}

// SplitListText splits raw section text into cleaned list items: bullets and
// numbering stripped, first letter capitalized, length-bounded, deduplicated,
// capped at listMaxItems.
func SplitListText(text string) []string {
	parts := listSplitRe.Split(text, -1)
	seen := make(map[string]bool, len(parts))
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(listPrefixRe.ReplaceAllString(strings.TrimSpace(p), ""))
		if len(p) <= listItemMinLen || len(p) >= listItemMaxLen {
			continue
		}
		p = capitalize(p)
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
		if len(out) >= listMaxItems {
			break
		}
	}
	return out
}

// filterByKeywords keeps items containing at least one domain keyword.
func filterByKeywords(items, keywords []string) []string {
	var out []string
	for _, item := range items {
		lower := strings.ToLower(item)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

func labelFallback(text string, labels []struct{ keyword, label string }) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, l := range labels {
		if strings.Contains(lower, l.keyword) {
			out = append(out, l.label)
		}
	}
	return out
}

func capitalize(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
