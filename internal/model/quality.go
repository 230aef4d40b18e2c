package model

// Severity classifies how damaging an invalid field is to a candidate.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityMinor    Severity = "minor"
)

// Tier is the escalation decision: how much of a candidate's fields the LLM
// fallback should replace.
type Tier string

const (
	TierNone    Tier = "none"    // heuristic extraction is good enough
	TierPartial Tier = "partial" // recover only the failed fields
	TierFull    Tier = "full"    // re-extract everything
)

// FieldCheck is a single validator result for one field.
type FieldCheck struct {
	Field      string   `json:"field"`
	Valid      bool     `json:"valid"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason,omitempty"`
	Severity   Severity `json:"severity"`
}

// QualityReport aggregates per-field checks into a score and an escalation
// tier for one candidate.
type QualityReport struct {
	Checks []FieldCheck `json:"checks"`
	Score  float64      `json:"score"`
	Tier   Tier         `json:"tier"`
}

// Check returns the check for the named field, or nil.
func (r *QualityReport) Check(field string) *FieldCheck {
	for i := range r.Checks {
		if r.Checks[i].Field == field {
			return &r.Checks[i]
		}
	}
	return nil
}

// WeakFields lists fields that failed validation or scored below the given
// confidence floor, in check order. These are the recovery targets for a
// partial escalation.
func (r *QualityReport) WeakFields(floor float64) []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Valid || c.Confidence < floor {
			out = append(out, c.Field)
		}
	}
	return out
}
