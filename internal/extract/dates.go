package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Phrases that anchor a deadline or an opening date in free text. The
// capture group grabs the stretch of text the date parser then chews on.
var (
	deadlineRe = regexp.MustCompile(`(?i)(?:application\s+)?(?:deadline|due\s+date|closing\s+date|closes?\s+on|applications?\s+close|apply\s+(?:before|by)|expires?\s+on)\s*:?\s*([^\n.!?]{3,60})`)
	opensRe    = regexp.MustCompile(`(?i)(?:applications?\s+open|opens?\s+on|start\s+date|starting)\s*:?\s*([^\n.!?]{3,60})`)

	ordinalRe   = regexp.MustCompile(`(\d{1,2})(?:st|nd|rd|th)\b`)
	monthYearRe = regexp.MustCompile(`(?i)\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+((?:19|20)\d{2})\b`)
	dayMonthRe  = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\b`)
	monthDayRe  = regexp.MustCompile(`(?i)\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+(\d{1,2})\b`)
	yearRe    = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	dayRe     = regexp.MustCompile(`\b\d{1,2}\b`)
	digitRe   = regexp.MustCompile(`\d`)
)

// ExtractDeadline pulls a closing date out of free text by scanning for
// deadline phrases.
func ExtractDeadline(text string, now time.Time) *time.Time {
	return extractAnchoredDate(deadlineRe, text, now)
}

// ExtractStart pulls an opening date out of free text.
func ExtractStart(text string, now time.Time) *time.Time {
	return extractAnchoredDate(opensRe, text, now)
}

func extractAnchoredDate(re *regexp.Regexp, text string, now time.Time) *time.Time {
	for _, m := range re.FindAllStringSubmatch(text, 5) {
		if d := ParseFuzzy(m[1], now); d != nil {
			return d
		}
	}
	return nil
}

// ParseFuzzy parses freeform date text, tolerating surrounding words
// ("is 1 May 2025 for all applicants"). Dates without an explicit year are
// resolved to the nearest future occurrence; month/year-only text resolves
// to the last day of that month. Returns nil when nothing parseable remains.
func ParseFuzzy(raw string, now time.Time) *time.Time {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimSuffix(cleaned, ":")
	cleaned = ordinalRe.ReplaceAllString(cleaned, "$1")
	cleaned = strings.Trim(cleaned, " .,;()")
	if cleaned == "" || !digitRe.MatchString(cleaned) {
		return nil
	}

	// Year-less day+month ("15 January") resolves to its next occurrence.
	if !yearRe.MatchString(cleaned) {
		day, month, ok := dayAndMonth(cleaned)
		if ok {
			d := time.Date(now.Year(), month, day, 0, 0, 0, 0, time.UTC)
			for d.Before(now) {
				d = d.AddDate(1, 0, 0)
			}
			return &d
		}
	}

	// Month/year with no day ("December 2025") resolves to month end.
	if m := monthYearRe.FindStringSubmatch(cleaned); m != nil && !hasDayOfMonth(cleaned) {
		if month, ok := monthByName(m[1]); ok {
			year := mustAtoi(m[2])
			d := endOfMonth(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
			return &d
		}
	}

	window, d, ok := parseWindow(cleaned)
	if !ok {
		return nil
	}
	d = d.UTC()

	hasYear := yearRe.MatchString(window)
	if !hasYear {
		// Prefer the next future occurrence for year-less dates.
		for d.Before(now) {
			d = d.AddDate(1, 0, 0)
		}
	}

	// "December 2025" has a year but no day: resolve to month end.
	if hasYear && !hasDayOfMonth(window) {
		d = endOfMonth(d)
	}

	return &d
}

// parseWindow slides over the token windows of the text, longest first per
// start position, and returns the first window the date parser accepts.
func parseWindow(text string) (string, time.Time, bool) {
	fields := strings.Fields(text)
	if len(fields) > 8 {
		fields = fields[:8]
	}
	for start := 0; start < len(fields); start++ {
		for end := len(fields); end > start; end-- {
			window := strings.Join(fields[start:end], " ")
			if !digitRe.MatchString(window) {
				continue
			}
			if d, err := dateparse.ParseAny(window); err == nil {
				return window, d, true
			}
		}
	}
	return "", time.Time{}, false
}

// hasDayOfMonth reports whether the text carries a standalone 1-2 digit
// number once the 4-digit year is removed.
func hasDayOfMonth(s string) bool {
	stripped := yearRe.ReplaceAllString(s, " ")
	return dayRe.MatchString(stripped)
}

func endOfMonth(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func monthByName(name string) (time.Month, bool) {
	m, ok := monthsByPrefix[strings.ToLower(name)]
	return m, ok
}

func dayAndMonth(s string) (int, time.Month, bool) {
	if m := dayMonthRe.FindStringSubmatch(s); m != nil {
		if month, ok := monthByName(m[2]); ok {
			return mustAtoi(m[1]), month, true
		}
	}
	if m := monthDayRe.FindStringSubmatch(s); m != nil {
		if month, ok := monthByName(m[1]); ok {
			return mustAtoi(m[2]), month, true
		}
	}
	return 0, 0, false
}

func mustAtoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
