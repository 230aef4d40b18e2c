package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarscope/harvest-cli/internal/extract"
	"github.com/scholarscope/harvest-cli/internal/model"
	"github.com/scholarscope/harvest-cli/pkg/anthropic"
)

// fakeClient returns canned responses and errors in sequence.
type fakeClient struct {
	responses []string
	errs      []error
	calls     int
	requests  []anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	i := f.calls
	f.calls++
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	body := ""
	if i < len(f.responses) {
		body = f.responses[i]
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: body}},
	}, nil
}

const goodJSON = "```json\n" + `{
  "title": "Acme STEM Grant 2025",
  "description": "Annual grants for undergraduate women in science and engineering.",
  "reward": "₦150,000",
  "start_date": null,
  "end_date": "2025-12",
  "requirements": ["Minimum CGPA of 3.5"],
  "eligibility": ["Open to female undergraduate students"],
  "tags": ["stem", "women", "robotics"],
  "levels": ["undergraduate"]
}` + "\n```"

func newTestFallback(client anthropic.Client) *Fallback {
	return New(client, Config{
		Model:             "claude-haiku-4-5-20251001",
		RequestsPerMinute: 6000, // keep tests fast
		InitialBackoff:    time.Millisecond,
	}, extract.DefaultVocabulary())
}

func TestExtractAll(t *testing.T) {
	client := &fakeClient{responses: []string{goodJSON}}
	f := newTestFallback(client)

	ext := f.ExtractAll(context.Background(), "page text", "https://example.com/x")
	require.NotNil(t, ext)

	assert.Equal(t, "Acme STEM Grant 2025", *ext.Title)
	assert.Equal(t, "₦150,000", *ext.Reward)
	// Unknown tag dropped by the vocabulary constraint.
	assert.Equal(t, []string{"stem", "women"}, ext.Tags)

	var c model.Candidate
	ext.Apply(&c)
	require.NotNil(t, c.EndDate)
	// Month-only deadline resolves to the last day of the month.
	assert.Equal(t, "2025-12-31", c.EndDate.Format("2006-01-02"))
	assert.Equal(t, model.OriginLLM, c.Origin("title"))
}

func TestExtractAll_MalformedJSON_DegradesToNil(t *testing.T) {
	client := &fakeClient{responses: []string{"I could not find a scholarship here."}}
	f := newTestFallback(client)

	assert.Nil(t, f.ExtractAll(context.Background(), "page text", "https://example.com/x"))
	assert.Equal(t, 1, client.calls, "non-overload failures must not retry")
}

func TestExtractAll_HardError_NoRetry(t *testing.T) {
	client := &fakeClient{errs: []error{errors.New("invalid_request_error: bad key")}}
	f := newTestFallback(client)

	assert.Nil(t, f.ExtractAll(context.Background(), "page text", "https://example.com/x"))
	assert.Equal(t, 1, client.calls)
}

func TestExtractAll_OverloadRetries(t *testing.T) {
	client := &fakeClient{
		errs:      []error{errors.New("429 Too Many Requests"), errors.New("overloaded_error"), nil},
		responses: []string{"", "", goodJSON},
	}
	f := newTestFallback(client)

	ext := f.ExtractAll(context.Background(), "page text", "https://example.com/x")
	require.NotNil(t, ext)
	assert.Equal(t, 3, client.calls)
}

func TestExtractAll_OverloadExhausted(t *testing.T) {
	overload := errors.New("529 overloaded")
	client := &fakeClient{errs: []error{overload, overload, overload}}
	f := newTestFallback(client)

	assert.Nil(t, f.ExtractAll(context.Background(), "page text", "https://example.com/x"))
	assert.Equal(t, 3, client.calls, "attempt cap")
}

func TestRecoverFields_RestrictsToRequested(t *testing.T) {
	client := &fakeClient{responses: []string{goodJSON}}
	f := newTestFallback(client)

	ext := f.RecoverFields(context.Background(), "page text", []string{"reward", "end_date"})
	require.NotNil(t, ext)

	assert.Nil(t, ext.Title, "unrequested fields must be nulled")
	assert.Nil(t, ext.Requirements)
	assert.Equal(t, "₦150,000", *ext.Reward)

	c := model.Candidate{Title: "Heuristic Title Kept"}
	ext.Apply(&c)
	assert.Equal(t, "Heuristic Title Kept", c.Title)
	assert.Equal(t, "₦150,000", c.Reward)
}

func TestRecoverFields_NoFields(t *testing.T) {
	client := &fakeClient{}
	f := newTestFallback(client)

	assert.Nil(t, f.RecoverFields(context.Background(), "page text", nil))
	assert.Equal(t, 0, client.calls)
}

func TestSystemPromptCarriesVocabulary(t *testing.T) {
	client := &fakeClient{responses: []string{goodJSON}}
	f := newTestFallback(client)

	f.ExtractAll(context.Background(), "page text", "https://example.com/x")
	require.Len(t, client.requests, 1)
	require.Len(t, client.requests[0].System, 1)

	sys := client.requests[0].System[0]
	assert.Contains(t, sys.Text, "stem")
	assert.Contains(t, sys.Text, "undergraduate")
	require.NotNil(t, sys.CacheControl)
	assert.Equal(t, "1h", sys.CacheControl.TTL)
}

func TestParseExtraction_CleansFences(t *testing.T) {
	ext, err := parseExtraction("Here is the data:\n```json\n{\"title\": \"X Y Grant\"}\n```\nDone.")
	require.NoError(t, err)
	require.NotNil(t, ext.Title)
	assert.Equal(t, "X Y Grant", *ext.Title)
}

func TestParseISO(t *testing.T) {
	d := parseISO("2025-12-31")
	require.NotNil(t, d)
	assert.Equal(t, "2025-12-31", d.Format("2006-01-02"))

	d = parseISO("2026-02")
	require.NotNil(t, d)
	assert.Equal(t, "2026-02-28", d.Format("2006-01-02"))

	assert.Nil(t, parseISO("tomorrow"))
}
