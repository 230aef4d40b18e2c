// Package llm is the escalation path for pages the heuristic extractor and
// scorer could not handle: full re-extraction or per-field recovery through
// a schema-constrained model call. Failures here always degrade to nil so a
// single page's LLM trouble never aborts the run.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/scholarscope/harvest-cli/internal/extract"
	"github.com/scholarscope/harvest-cli/internal/resilience"
	"github.com/scholarscope/harvest-cli/pkg/anthropic"
)

// maxPromptChars caps how much page text goes into a prompt.
const maxPromptChars = 12000

// Config tunes the fallback.
type Config struct {
	Model             string
	MaxTokens         int64
	RequestsPerMinute int
	MaxAttempts       int
	InitialBackoff    time.Duration
}

// Fallback performs LLM extraction. The limiter is global: however many
// pages are in flight, model calls are throttled as one stream.
type Fallback struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
	retry     resilience.RetryConfig
	vocab     extract.Vocabulary
}

// New creates a Fallback.
func New(client anthropic.Client, cfg Config, vocab extract.Vocabulary) *Fallback {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 15 * time.Second
	}

	retry := resilience.OverloadRetryConfig(cfg.MaxAttempts, cfg.InitialBackoff)
	retry.OnRetry = resilience.RetryLogger("anthropic", "extract")

	return &Fallback{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		retry:     retry,
		vocab:     vocab,
	}
}

// ExtractAll re-extracts every field from raw page text. Returns nil when
// the model fails or returns unusable output.
func (f *Fallback) ExtractAll(ctx context.Context, rawText, url string) *Extraction {
	prompt := fmt.Sprintf(extractAllPrompt, url, truncate(rawText, maxPromptChars))
	return f.run(ctx, "extract_all", prompt)
}

// RecoverFields re-extracts only the named fields. Returns nil when the
// model fails; the caller keeps its heuristic values.
func (f *Fallback) RecoverFields(ctx context.Context, rawText string, fields []string) *Extraction {
	if len(fields) == 0 {
		return nil
	}
	prompt := fmt.Sprintf(recoverFieldsPrompt,
		strings.Join(fields, ", "),
		truncate(rawText, maxPromptChars),
	)
	ext := f.run(ctx, "recover_fields", prompt)
	if ext != nil {
		ext.restrictTo(fields)
	}
	return ext
}

func (f *Fallback) run(ctx context.Context, operation, prompt string) *Extraction {
	raw, err := f.complete(ctx, operation, prompt)
	if err != nil {
		zap.L().Warn("llm extraction degraded",
			zap.String("operation", operation),
			zap.Error(err),
		)
		return nil
	}

	ext, err := parseExtraction(raw)
	if err != nil {
		zap.L().Warn("llm returned unusable output",
			zap.String("operation", operation),
			zap.Error(err),
		)
		return nil
	}

	ext.sanitize(f.vocab)
	return ext
}

func (f *Fallback) complete(ctx context.Context, operation, prompt string) (string, error) {
	resp, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "llm: rate limiter wait")
		}
		return f.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     f.model,
			MaxTokens: f.maxTokens,
			System:    anthropic.BuildCachedSystemBlocks(f.systemPrompt()),
			Messages: []anthropic.Message{
				{Role: "user", Content: prompt},
			},
		})
	})
	if err != nil {
		return "", err
	}

	resp.Usage.LogUsage(f.model, operation)
	return resp.Text(), nil
}

func (f *Fallback) systemPrompt() string {
	return fmt.Sprintf(systemPrompt,
		strings.Join(f.vocab.TagNames(), ", "),
		strings.Join(f.vocab.LevelNames(), ", "),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
