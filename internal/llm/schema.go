package llm

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/scholarscope/harvest-cli/internal/extract"
	"github.com/scholarscope/harvest-cli/internal/model"
)

const systemPrompt = `You extract scholarship data from web page text. Respond with a single JSON object matching this schema, and nothing else:

{
  "title": string|null,
  "description": string|null,
  "reward": string|null,
  "start_date": string|null,
  "end_date": string|null,
  "requirements": [string],
  "eligibility": [string],
  "tags": [string],
  "levels": [string]
}

Rules:
- Dates are ISO-8601 (YYYY-MM-DD). A month/year-only deadline resolves to the last day of that month.
- tags may only contain: %s
- levels may only contain: %s
- Use null for anything the text does not state. Never invent values.
- reward is the amount or funding phrase as written, e.g. "₦150,000" or "Full scholarship".`

const extractAllPrompt = `Extract the scholarship described at %s from the page text below. Return the full JSON object.

PAGE TEXT:
%s`

const recoverFieldsPrompt = `From the page text below, extract only these fields: %s. Return the full JSON object with null for every other field.

PAGE TEXT:
%s`

// Extraction is the schema-constrained model output. Pointer fields
// distinguish "not found" (null) from empty strings.
type Extraction struct {
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	Reward       *string  `json:"reward"`
	StartDate    *string  `json:"start_date"`
	EndDate      *string  `json:"end_date"`
	Requirements []string `json:"requirements"`
	Eligibility  []string `json:"eligibility"`
	Tags         []string `json:"tags"`
	Levels       []string `json:"levels"`
}

// parseExtraction decodes a model response, tolerating markdown code fences.
func parseExtraction(raw string) (*Extraction, error) {
	cleaned := cleanJSON(raw)
	if cleaned == "" {
		return nil, eris.New("llm: empty response")
	}
	var ext Extraction
	if err := json.Unmarshal([]byte(cleaned), &ext); err != nil {
		return nil, eris.Wrap(err, "llm: unmarshal extraction")
	}
	return &ext, nil
}

// cleanJSON strips code fences and surrounding prose down to the outermost
// JSON object.
func cleanJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

// sanitize drops values that violate the schema constraints: unknown tags
// and levels, unparseable dates.
func (x *Extraction) sanitize(vocab extract.Vocabulary) {
	x.Tags = canonicalize(x.Tags, vocab.CanonicalTag)
	x.Levels = canonicalize(x.Levels, vocab.CanonicalLevel)
	if x.StartDate != nil && parseISO(*x.StartDate) == nil {
		x.StartDate = nil
	}
	if x.EndDate != nil && parseISO(*x.EndDate) == nil {
		x.EndDate = nil
	}
}

// restrictTo nulls every field not in the requested set, so a chatty model
// cannot overwrite fields that were never asked for.
func (x *Extraction) restrictTo(fields []string) {
	want := make(map[string]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}
	if !want["title"] {
		x.Title = nil
	}
	if !want["description"] {
		x.Description = nil
	}
	if !want["reward"] {
		x.Reward = nil
	}
	if !want["start_date"] {
		x.StartDate = nil
	}
	if !want["end_date"] {
		x.EndDate = nil
	}
	if !want["requirements"] {
		x.Requirements = nil
	}
	if !want["eligibility"] {
		x.Eligibility = nil
	}
	if !want["tags"] {
		x.Tags = nil
	}
	if !want["levels"] {
		x.Levels = nil
	}
}

// Apply merges the extraction into a candidate, overwriting only with
// non-empty values and marking each touched field as model-sourced.
func (x *Extraction) Apply(c *model.Candidate) {
	if x.Title != nil && strings.TrimSpace(*x.Title) != "" {
		c.Title = strings.TrimSpace(*x.Title)
		c.SetOrigin("title", model.OriginLLM)
	}
	if x.Description != nil && strings.TrimSpace(*x.Description) != "" {
		c.Description = strings.TrimSpace(*x.Description)
		c.SetOrigin("description", model.OriginLLM)
	}
	if x.Reward != nil && strings.TrimSpace(*x.Reward) != "" {
		c.Reward = strings.TrimSpace(*x.Reward)
		c.SetOrigin("reward", model.OriginLLM)
	}
	if x.StartDate != nil {
		if d := parseISO(*x.StartDate); d != nil {
			c.StartDate = d
			c.SetOrigin("start_date", model.OriginLLM)
		}
	}
	if x.EndDate != nil {
		if d := parseISO(*x.EndDate); d != nil {
			c.EndDate = d
			c.SetOrigin("end_date", model.OriginLLM)
		}
	}
	if len(x.Requirements) > 0 {
		c.Requirements = x.Requirements
		c.SetOrigin("requirements", model.OriginLLM)
	}
	if len(x.Eligibility) > 0 {
		c.Eligibility = x.Eligibility
		c.SetOrigin("eligibility", model.OriginLLM)
	}
	if len(x.Tags) > 0 {
		c.Tags = x.Tags
		c.SetOrigin("tags", model.OriginLLM)
	}
	if len(x.Levels) > 0 {
		c.Levels = x.Levels
		c.SetOrigin("levels", model.OriginLLM)
	}
}

// parseISO accepts YYYY-MM-DD, or YYYY-MM which resolves to month end.
func parseISO(s string) *time.Time {
	s = strings.TrimSpace(s)
	if d, err := time.Parse("2006-01-02", s); err == nil {
		d = d.UTC()
		return &d
	}
	if d, err := time.Parse("2006-01", s); err == nil {
		d = time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC)
		return &d
	}
	return nil
}

func canonicalize(raw []string, canon func(string) (string, bool)) []string {
	seen := make(map[string]bool, len(raw))
	var out []string
	for _, r := range raw {
		if name, ok := canon(r); ok && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
