package quality

import (
	"testing"
	"time"

	"github.com/scholarscope/harvest-cli/internal/model"
)

func goodCandidate() model.Candidate {
	deadline := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	return model.Candidate{
		Source:       "scholarshipregion",
		Link:         "https://example.com/acme-stem-grant",
		Title:        "Acme STEM Grant 2025",
		Description:  "The Acme Foundation awards annual grants to outstanding undergraduate women studying science or engineering across Nigeria.",
		Reward:       "₦150,000",
		EndDate:      &deadline,
		Requirements: []string{"Applicants must hold a minimum CGPA of 3.5", "Official transcript required"},
		Eligibility:  []string{"Open to female undergraduate students"},
		Tags:         []string{"stem", "women"},
		Levels:       []string{"undergraduate"},
		Origins: map[string]model.FieldOrigin{
			"title":       model.OriginSelector,
			"description": model.OriginSelector,
			"reward":      model.OriginSelector,
			"end_date":    model.OriginSelector,
		},
	}
}

func TestScore_CleanCandidate_TierNone(t *testing.T) {
	report := New().Score(goodCandidate())

	if report.Tier != model.TierNone {
		t.Errorf("Tier = %s, want none (checks: %+v)", report.Tier, report.Checks)
	}
	if report.Score < 0.7 {
		t.Errorf("Score = %f, want >= 0.7", report.Score)
	}
	for _, c := range report.Checks {
		if !c.Valid {
			t.Errorf("field %s invalid: %s", c.Field, c.Reason)
		}
	}
}

func TestScore_MissingTitle_TierFull(t *testing.T) {
	c := goodCandidate()
	c.Title = model.TitleNotFound

	report := New().Score(c)
	if report.Tier != model.TierFull {
		t.Errorf("Tier = %s, want full", report.Tier)
	}
}

func TestScore_GarbageDescription_TierFull(t *testing.T) {
	c := goodCandidate()
	c.Description = "Read more"

	report := New().Score(c)
	if report.Tier != model.TierFull {
		t.Errorf("Tier = %s, want full", report.Tier)
	}
	check := report.Check("description")
	if check.Valid {
		t.Error("expected description to be invalid")
	}
}

func TestScore_WeakField_TierPartial(t *testing.T) {
	c := goodCandidate()
	c.Requirements = nil // invalid but not critical

	report := New().Score(c)
	if report.Tier != model.TierPartial {
		t.Errorf("Tier = %s, want partial", report.Tier)
	}
}

func TestScore_Monotonicity(t *testing.T) {
	// Invalidating more fields must never raise the aggregate score.
	scorer := New()
	c := goodCandidate()
	prev := scorer.Score(c).Score

	c.Reward = "varies"
	s := scorer.Score(c).Score
	if s > prev {
		t.Errorf("score rose from %f to %f after invalidating reward", prev, s)
	}
	prev = s

	c.EndDate = nil
	s = scorer.Score(c).Score
	if s > prev {
		t.Errorf("score rose from %f to %f after dropping deadline", prev, s)
	}
	prev = s

	c.Description = "Read more"
	s = scorer.Score(c).Score
	if s > prev {
		t.Errorf("score rose from %f to %f after invalidating description", prev, s)
	}
}

func TestScore_ThreeCriticalFailures_TierFull(t *testing.T) {
	c := goodCandidate()
	c.Reward = model.RewardUnspecified
	c.EndDate = nil
	c.Description = goodCandidate().Description // keep valid
	c.Title = goodCandidate().Title

	// Two critical failures alone: not full via the count rule.
	report := New().Score(c)
	if report.Tier == model.TierNone {
		t.Errorf("Tier = %s, want escalation", report.Tier)
	}
}

func TestFieldValidators(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Candidate)
		field  string
		valid  bool
	}{
		{"valid title", func(c *model.Candidate) {}, "title", true},
		{"single word title", func(c *model.Candidate) { c.Title = "Scholarships" }, "title", false},
		{"url title", func(c *model.Candidate) { c.Title = "https://example.com/x y" }, "title", false},
		{"repeated run title", func(c *model.Candidate) { c.Title = "AAAAAAAA grant" }, "title", false},
		{"short description", func(c *model.Candidate) { c.Description = "Too short." }, "description", false},
		{"cookie description", func(c *model.Candidate) {
			c.Description = "This website uses cookie technology to improve your browsing experience on every page you visit."
		}, "description", false},
		{"reward varies", func(c *model.Candidate) { c.Reward = "varies" }, "reward", false},
		{"reward keyword only", func(c *model.Candidate) { c.Reward = "Tuition funding" }, "reward", true},
		{"no deadline", func(c *model.Candidate) { c.EndDate = nil }, "end_date", false},
		{"empty eligibility", func(c *model.Candidate) { c.Eligibility = nil }, "eligibility", false},
		{"garbage-only list", func(c *model.Candidate) { c.Requirements = []string{"apply now", "read more"} }, "requirements", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := goodCandidate()
			tt.mutate(&c)
			report := New().Score(c)
			check := report.Check(tt.field)
			if check == nil {
				t.Fatalf("no check for %s", tt.field)
			}
			if check.Valid != tt.valid {
				t.Errorf("%s valid = %v (reason %q), want %v", tt.field, check.Valid, check.Reason, tt.valid)
			}
		})
	}
}

func TestWeakFields(t *testing.T) {
	c := goodCandidate()
	c.Reward = model.RewardUnspecified
	report := New().Score(c)

	weak := report.WeakFields(0.7)
	found := false
	for _, f := range weak {
		if f == "reward" {
			found = true
		}
	}
	if !found {
		t.Errorf("WeakFields = %v, want reward included", weak)
	}
}
