// Package quality validates extracted candidates and decides how much LLM
// help a page needs. Validators are pure character-level checks; the
// aggregate score and escalation tier bound LLM spend to the pages that
// actually need it.
package quality

import (
	"strings"
	"time"

	"github.com/scholarscope/harvest-cli/internal/model"
)

// DefaultCriticalFields are the fields whose failure drags the aggregate
// score down and can force a full re-extraction.
var DefaultCriticalFields = []string{"title", "description", "reward", "end_date"}

const (
	// confidenceFloor marks a valid-but-shaky field for partial recovery.
	confidenceFloor = 0.7

	fullScoreCeiling = 0.4
	fullFailedFields = 3
)

// Scorer validates candidates against a fixed set of critical fields.
type Scorer struct {
	critical []string
}

// New creates a Scorer. With no arguments the default critical set is used.
func New(critical ...string) *Scorer {
	if len(critical) == 0 {
		critical = DefaultCriticalFields
	}
	return &Scorer{critical: critical}
}

// Score runs every field validator and aggregates the results into a report
// with an escalation tier.
func (s *Scorer) Score(c model.Candidate) model.QualityReport {
	report := model.QualityReport{
		Checks: []model.FieldCheck{
			checkTitle(c),
			checkDescription(c),
			checkReward(c),
			checkDate("end_date", c.EndDate, c),
			checkDate("start_date", c.StartDate, c),
			checkList("requirements", c.Requirements),
			checkList("eligibility", c.Eligibility),
		},
	}

	report.Score = s.aggregate(report.Checks)
	report.Tier = s.tier(report)
	return report
}

// aggregate = mean confidence of valid fields × (valid critical / total critical).
func (s *Scorer) aggregate(checks []model.FieldCheck) float64 {
	var confSum float64
	var validCount int
	validCritical := 0
	for _, c := range checks {
		if c.Valid {
			confSum += c.Confidence
			validCount++
			if s.isCritical(c.Field) {
				validCritical++
			}
		}
	}
	if validCount == 0 || len(s.critical) == 0 {
		return 0
	}
	mean := confSum / float64(validCount)
	return mean * float64(validCritical) / float64(len(s.critical))
}

func (s *Scorer) tier(r model.QualityReport) model.Tier {
	failedCritical := 0
	anyWeak := false
	for _, c := range r.Checks {
		if !c.Valid && s.isCritical(c.Field) {
			failedCritical++
		}
		if !c.Valid || c.Confidence < confidenceFloor {
			anyWeak = true
		}
	}

	titleBad := !r.Check("title").Valid
	descBad := !r.Check("description").Valid

	switch {
	case titleBad || descBad || failedCritical >= fullFailedFields || r.Score < fullScoreCeiling:
		return model.TierFull
	case anyWeak:
		return model.TierPartial
	default:
		return model.TierNone
	}
}

func (s *Scorer) isCritical(field string) bool {
	for _, f := range s.critical {
		if f == field {
			return true
		}
	}
	return false
}

func (s *Scorer) severity(field string) model.Severity {
	if s.isCritical(field) {
		return model.SeverityCritical
	}
	return model.SeverityWarning
}

func checkTitle(c model.Candidate) model.FieldCheck {
	check := model.FieldCheck{Field: "title", Severity: model.SeverityCritical}
	title := strings.TrimSpace(c.Title)

	switch {
	case title == "" || title == model.TitleNotFound:
		check.Reason = "missing"
	case isGarbage(title, titleGarbage):
		check.Reason = "boilerplate phrase"
	case len(title) < 5 || len(title) > 200:
		check.Reason = "implausible length"
	case len(strings.Fields(title)) < 2:
		check.Reason = "single word"
	case strings.HasPrefix(strings.ToLower(title), "http"):
		check.Reason = "bare URL"
	default:
		check.Valid = true
		check.Confidence = originConfidence(c, "title")
	}
	return check
}

func checkDescription(c model.Candidate) model.FieldCheck {
	check := model.FieldCheck{Field: "description", Severity: model.SeverityCritical}
	desc := strings.TrimSpace(c.Description)
	lower := strings.ToLower(desc)

	switch {
	case desc == "" || desc == model.NoDescription:
		check.Reason = "missing"
	case isGarbage(desc, generalGarbage):
		check.Reason = "boilerplate phrase"
	case len(desc) < 50:
		check.Reason = "too short"
	case len(strings.Fields(desc)) < 8:
		check.Reason = "too few words"
	case strings.Contains(lower, "cookie"):
		check.Reason = "cookie banner text"
	case alnumDensity(desc) < 0.5:
		check.Reason = "low alphanumeric density"
	default:
		check.Valid = true
		check.Confidence = originConfidence(c, "description")
	}
	return check
}

func checkReward(c model.Candidate) model.FieldCheck {
	check := model.FieldCheck{Field: "reward", Severity: model.SeverityCritical}
	reward := strings.TrimSpace(c.Reward)
	lower := strings.ToLower(reward)

	hasFundingWord := strings.Contains(lower, "tuition") ||
		strings.Contains(lower, "funded") ||
		strings.Contains(lower, "funding") ||
		strings.Contains(lower, "scholarship") ||
		strings.Contains(lower, "stipend") ||
		strings.Contains(lower, "waiver")

	switch {
	case reward == "" || reward == model.RewardUnspecified:
		check.Reason = "missing"
	case isGarbage(reward, rewardGarbage):
		check.Reason = "boilerplate phrase"
	case !containsDigit(reward) && !hasFundingWord:
		check.Reason = "no amount or funding keyword"
	default:
		check.Valid = true
		check.Confidence = originConfidence(c, "reward")
	}
	return check
}

func checkDate(field string, d *time.Time, c model.Candidate) model.FieldCheck {
	severity := model.SeverityCritical
	if field == "start_date" {
		severity = model.SeverityMinor
	}
	check := model.FieldCheck{Field: field, Severity: severity}

	if d == nil {
		check.Reason = "missing"
		// A missing start date barely matters; most listings never carry one.
		if field == "start_date" {
			check.Valid = true
			check.Confidence = confidenceFloor
			check.Reason = ""
		}
		return check
	}

	check.Valid = true
	check.Confidence = originConfidence(c, field)
	return check
}

func checkList(field string, items []string) model.FieldCheck {
	check := model.FieldCheck{Field: field, Severity: model.SeverityWarning}

	var good int
	for _, item := range items {
		if !isGarbage(item, generalGarbage) && alnumDensity(item) >= 0.5 {
			good++
		}
	}
	if good == 0 {
		check.Reason = "no usable items"
		return check
	}

	check.Valid = true
	check.Confidence = 0.7 + 0.05*float64(min(good, 4))
	return check
}

// originConfidence grades a valid value by how it was obtained.
func originConfidence(c model.Candidate, field string) float64 {
	switch c.Origin(field) {
	case model.OriginSelector:
		return 0.9
	case model.OriginLLM:
		return 0.8
	case model.OriginSentinel:
		return 0.1
	default:
		return 0.75
	}
}
