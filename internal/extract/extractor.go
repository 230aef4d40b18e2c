// Package extract turns a fetched page into a ScrapedCandidate. Every field
// runs a ladder of strategies (configured selector first, heuristics after)
// and degrades to a stable sentinel instead of failing, so extraction can run
// unboundedly in parallel and never throws.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/scholarscope/harvest-cli/internal/fetch"
	"github.com/scholarscope/harvest-cli/internal/model"
	"github.com/scholarscope/harvest-cli/internal/source"
)

const (
	titleMinLen       = 5
	titleMaxLen       = 200
	descriptionMinLen = 50
)

var headingSelectors = []string{
	"h1.entry-title", "h1.post-title", "h1.page-title", "h1", "h2.title",
}

var paragraphSelectors = "article p, div.entry-content p, main p, div.content p"

var boilerplateMarkers = []string{
	"cookie", "subscribe", "newsletter", "copyright", "all rights reserved",
	"privacy policy", "related posts", "share this", "leave a comment",
}

// Extractor runs the per-field strategy ladders. It is pure and stateless;
// one instance serves all pages concurrently.
type Extractor struct {
	vocab Vocabulary
	now   func() time.Time
}

// New creates an Extractor over the given vocabulary.
func New(vocab Vocabulary) *Extractor {
	return &Extractor{vocab: vocab, now: time.Now}
}

// Vocab exposes the vocabulary for callers that constrain LLM output to it.
func (e *Extractor) Vocab() Vocabulary { return e.vocab }

// Extract produces a fully-populated candidate from a detail page. Every
// field holds either a real value or its typed sentinel.
func (e *Extractor) Extract(page fetch.Page, src *source.Source) model.Candidate {
	now := e.now().UTC()
	text := page.Text()

	c := model.Candidate{
		Source:    src.Name,
		Link:      page.URL(),
		ScrapedAt: now,
	}

	e.extractTitle(&c, page, src.Selectors.Title)
	e.extractDescription(&c, page, src.Selectors.Description)
	e.extractReward(&c, page, text, src.Selectors.Reward)
	e.extractDates(&c, page, text, src.Selectors.StartDate, src.Selectors.EndDate, now)
	c.Requirements = e.extractList(&c, page, text, "requirements", src.Selectors.Requirements,
		requirementKeywords, requirementsSectionRe, requirementLabels)
	c.Eligibility = e.extractList(&c, page, text, "eligibility", src.Selectors.Eligibility,
		eligibilityKeywords, eligibilitySectionRe, eligibilityLabels)
	e.extractTags(&c, page, src.Selectors.Tags)
	e.extractLevels(&c, page, src.Selectors.Levels)

	return c
}

func (e *Extractor) extractTitle(c *model.Candidate, page fetch.Page, selector string) {
	if selector != "" {
		if t := cleanTitle(fetch.FirstText(page, selector)); t != "" {
			c.Title = t
			c.SetOrigin("title", model.OriginSelector)
			return
		}
	}
	for _, sel := range headingSelectors {
		if t := cleanTitle(fetch.FirstText(page, sel)); t != "" {
			c.Title = t
			c.SetOrigin("title", model.OriginFallback)
			return
		}
	}
	if t := cleanTitle(page.Title()); t != "" {
		c.Title = t
		c.SetOrigin("title", model.OriginFallback)
		return
	}
	c.Title = model.TitleNotFound
	c.SetOrigin("title", model.OriginSentinel)
}

// cleanTitle splits on common separators, keeps the first substantive
// segment, and bounds the length.
func cleanTitle(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, sep := range []string{"|", " - ", " – "} {
		if i := strings.Index(raw, sep); i > 0 {
			head := strings.TrimSpace(raw[:i])
			if len(head) >= titleMinLen {
				raw = head
			}
		}
	}
	if len(raw) < titleMinLen {
		return ""
	}
	if len(raw) > titleMaxLen {
		raw = strings.TrimSpace(raw[:titleMaxLen])
	}
	return raw
}

func (e *Extractor) extractDescription(c *model.Candidate, page fetch.Page, selector string) {
	if selector != "" {
		if d := strings.TrimSpace(fetch.FirstText(page, selector)); len(d) > descriptionMinLen {
			c.Description = d
			c.SetOrigin("description", model.OriginSelector)
			return
		}
	}
	if meta := page.Meta("description"); len(meta) > descriptionMinLen {
		c.Description = meta
		c.SetOrigin("description", model.OriginFallback)
		return
	}
	if d := substantiveParagraphs(page, paragraphSelectors); d != "" {
		c.Description = d
		c.SetOrigin("description", model.OriginFallback)
		return
	}
	// Last rung: pages without a recognizable content container still carry
	// prose in body-level paragraphs.
	if d := substantiveParagraphs(page, "body p"); d != "" {
		c.Description = d
		c.SetOrigin("description", model.OriginFallback)
		return
	}
	c.Description = model.NoDescription
	c.SetOrigin("description", model.OriginSentinel)
}

// substantiveParagraphs joins the first two paragraphs under selector that
// look like prose rather than navigation or footer boilerplate.
func substantiveParagraphs(page fetch.Page, selector string) string {
	var kept []string
	for _, el := range page.Find(selector) {
		text := strings.TrimSpace(el.Text())
		if len(text) <= descriptionMinLen || isBoilerplate(text) {
			continue
		}
		kept = append(kept, text)
		if len(kept) == 2 {
			break
		}
	}
	return strings.Join(kept, " ")
}

func isBoilerplate(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range boilerplateMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (e *Extractor) extractReward(c *model.Candidate, page fetch.Page, text, selector string) {
	if selector != "" {
		if raw := fetch.FirstText(page, selector); raw != "" {
			if r := ExtractReward(raw); r != model.RewardUnspecified {
				c.Reward = r
				c.SetOrigin("reward", model.OriginSelector)
				return
			}
		}
	}
	c.Reward = ExtractReward(text)
	if c.Reward == model.RewardUnspecified {
		c.SetOrigin("reward", model.OriginSentinel)
	} else {
		c.SetOrigin("reward", model.OriginFallback)
	}
}

func (e *Extractor) extractDates(c *model.Candidate, page fetch.Page, text, startSel, endSel string, now time.Time) {
	if endSel != "" {
		if d := ParseFuzzy(fetch.FirstText(page, endSel), now); d != nil {
			c.EndDate = d
			c.SetOrigin("end_date", model.OriginSelector)
		}
	}
	if c.EndDate == nil {
		if d := ExtractDeadline(text, now); d != nil {
			c.EndDate = d
			c.SetOrigin("end_date", model.OriginFallback)
		} else {
			c.SetOrigin("end_date", model.OriginSentinel)
		}
	}

	if startSel != "" {
		if d := ParseFuzzy(fetch.FirstText(page, startSel), now); d != nil {
			c.StartDate = d
			c.SetOrigin("start_date", model.OriginSelector)
		}
	}
	if c.StartDate == nil {
		if d := ExtractStart(text, now); d != nil {
			c.StartDate = d
			c.SetOrigin("start_date", model.OriginFallback)
		} else {
			c.SetOrigin("start_date", model.OriginSentinel)
		}
	}
}

func (e *Extractor) extractList(c *model.Candidate, page fetch.Page, text, field, selector string,
	keywords []string, sectionRe *regexp.Regexp,
	labels []struct{ keyword, label string }) []string {

	if selector != "" {
		var raw []string
		for _, el := range page.Find(selector) {
			raw = append(raw, el.Text())
		}
		if items := filterByKeywords(SplitListText(strings.Join(raw, "\n")), keywords); len(items) > 0 {
			c.SetOrigin(field, model.OriginSelector)
			return items
		}
	}

	// Structured list elements anywhere on the page.
	var raw []string
	for _, el := range page.Find("ul li, ol li") {
		raw = append(raw, el.Text())
	}
	if items := filterByKeywords(SplitListText(strings.Join(raw, "\n")), keywords); len(items) > 0 {
		c.SetOrigin(field, model.OriginFallback)
		return items
	}

	// Header-anchored section capture over raw text.
	if m := sectionRe.FindStringSubmatch(text); m != nil {
		if items := filterByKeywords(SplitListText(m[1]), keywords); len(items) > 0 {
			c.SetOrigin(field, model.OriginFallback)
			return items
		}
	}

	// Fixed keyword-to-label table as last resort.
	if items := labelFallback(text, labels); len(items) > 0 {
		c.SetOrigin(field, model.OriginFallback)
		return items
	}

	c.SetOrigin(field, model.OriginSentinel)
	return []string{}
}

func (e *Extractor) extractTags(c *model.Candidate, page fetch.Page, selector string) {
	if selector != "" {
		if tags := e.canonicalList(page, selector, e.vocab.CanonicalTag); len(tags) > 0 {
			c.Tags = tags
			c.SetOrigin("tags", model.OriginSelector)
			return
		}
	}
	c.Tags = e.vocab.MatchTags(c.Title + " " + c.Description + " " + page.Meta("keywords"))
	c.SetOrigin("tags", model.OriginFallback)
}

func (e *Extractor) extractLevels(c *model.Candidate, page fetch.Page, selector string) {
	if selector != "" {
		if levels := e.canonicalList(page, selector, e.vocab.CanonicalLevel); len(levels) > 0 {
			c.Levels = levels
			c.SetOrigin("levels", model.OriginSelector)
			return
		}
	}
	c.Levels = e.vocab.MatchLevels(c.Title + " " + c.Description)
	c.SetOrigin("levels", model.OriginFallback)
}

func (e *Extractor) canonicalList(page fetch.Page, selector string, canon func(string) (string, bool)) []string {
	seen := make(map[string]bool)
	var out []string
	for _, el := range page.Find(selector) {
		if name, ok := canon(el.Text()); ok && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
