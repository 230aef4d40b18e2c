package extract

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Vocabulary is the fixed tag/level vocabulary plus synonyms. Both the
// heuristic matcher and the LLM schema constraints read from this one table
// so the two can never drift apart.
type Vocabulary struct {
	Tags   map[string][]string // canonical -> synonyms
	Levels map[string][]string
}

// DefaultVocabulary returns the scholarship tag and study-level vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Tags: map[string][]string{
			"international": {"abroad", "worldwide", "global", "foreign students"},
			"women":         {"female", "girls", "woman"},
			"stem":          {"science", "technology", "engineering", "mathematics", "computer science"},
			"merit":         {"merit-based", "academic excellence", "outstanding students", "top students"},
			"need":          {"need-based", "financial need", "low-income", "underprivileged", "indigent"},
			"general":       {},
		},
		Levels: map[string][]string{
			"highschool":    {"high school", "secondary school", "secondary education"},
			"undergraduate": {"bachelor", "bachelors", "bsc", "first degree", "undergrad"},
			"postgraduate":  {"masters", "master's", "msc", "graduate student", "postgrad"},
			"phd":           {"doctoral", "doctorate", "ph.d"},
			"unspecified":   {},
		},
	}
}

// TagNames returns the canonical tags, sorted.
func (v Vocabulary) TagNames() []string { return sortedKeys(v.Tags) }

// LevelNames returns the canonical levels, sorted.
func (v Vocabulary) LevelNames() []string { return sortedKeys(v.Levels) }

// MatchTags scans text for vocabulary keywords and returns the canonical
// tags found. Falls back to "general" when nothing matches.
func (v Vocabulary) MatchTags(text string) []string {
	tags := matchVocab(v.Tags, text)
	if len(tags) == 0 {
		tags = []string{"general"}
	}
	return tags
}

// MatchLevels scans text for study-level keywords. Falls back to
// "unspecified" when nothing matches.
func (v Vocabulary) MatchLevels(text string) []string {
	levels := matchVocab(v.Levels, text)
	if len(levels) == 0 {
		levels = []string{"unspecified"}
	}
	return levels
}

// CanonicalTag maps a raw token to a canonical tag, tolerating close
// misspellings via fuzzy comparison.
func (v Vocabulary) CanonicalTag(raw string) (string, bool) {
	return canonical(v.Tags, raw)
}

// CanonicalLevel maps a raw token to a canonical level.
func (v Vocabulary) CanonicalLevel(raw string) (string, bool) {
	return canonical(v.Levels, raw)
}

func matchVocab(vocab map[string][]string, text string) []string {
	text = strings.ToLower(text)
	var out []string
	for name, synonyms := range vocab {
		if len(synonyms) == 0 {
			continue // catch-all entries never match on keywords
		}
		if strings.Contains(text, name) {
			out = append(out, name)
			continue
		}
		for _, syn := range synonyms {
			if strings.Contains(text, syn) {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func canonical(vocab map[string][]string, raw string) (string, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", false
	}
	if _, ok := vocab[raw]; ok {
		return raw, true
	}
	for name, synonyms := range vocab {
		for _, syn := range synonyms {
			if raw == syn {
				return name, true
			}
		}
	}
	// Tolerate near misses like "undergradute".
	for name := range vocab {
		if levenshtein.Similarity(raw, name, nil) >= 0.85 {
			return name, true
		}
	}
	return "", false
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
