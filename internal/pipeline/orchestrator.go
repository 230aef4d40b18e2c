// Package pipeline orchestrates one harvest run: walk a source's listing
// page, fetch and extract each fresh detail page, score the extraction,
// escalate weak ones to the model fallback, and hand survivors to lifecycle
// resolution in listing order.
package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scholarscope/harvest-cli/internal/extract"
	"github.com/scholarscope/harvest-cli/internal/fetch"
	"github.com/scholarscope/harvest-cli/internal/lifecycle"
	"github.com/scholarscope/harvest-cli/internal/llm"
	"github.com/scholarscope/harvest-cli/internal/model"
	"github.com/scholarscope/harvest-cli/internal/quality"
	"github.com/scholarscope/harvest-cli/internal/resolve"
	"github.com/scholarscope/harvest-cli/internal/source"
	"github.com/scholarscope/harvest-cli/internal/store"
)

// Config tunes a harvest run.
type Config struct {
	// MaxItems caps how many listing items are considered per run. Default 30.
	MaxItems int
	// Concurrency bounds parallel detail-page processing. Default 4.
	Concurrency int
	// ConfidenceFloor marks fields below it as weak for recovery. Default 0.7.
	ConfidenceFloor float64
	// Resolve tunes duplicate detection for the listing walk.
	Resolve resolve.Config
}

func (c Config) withDefaults() Config {
	if c.MaxItems <= 0 {
		c.MaxItems = 30
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.ConfidenceFloor <= 0 {
		c.ConfidenceFloor = 0.7
	}
	return c
}

// Orchestrator wires the harvest stages together. Fallback may be nil, in
// which case weak extractions are kept or dropped on heuristics alone.
type Orchestrator struct {
	cfg       Config
	st        store.Store
	fetcher   fetch.Fetcher
	extractor *extract.Extractor
	scorer    *quality.Scorer
	fallback  *llm.Fallback
	lc        *lifecycle.Manager
}

func New(cfg Config, st store.Store, fetcher fetch.Fetcher, extractor *extract.Extractor,
	scorer *quality.Scorer, fallback *llm.Fallback, lc *lifecycle.Manager) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg.withDefaults(),
		st:        st,
		fetcher:   fetcher,
		extractor: extractor,
		scorer:    scorer,
		fallback:  fallback,
		lc:        lc,
	}
}

// listingItem is one anchor pulled off the listing page.
type listingItem struct {
	Title string
	Link  string
}

// Harvest runs the pipeline for one source and returns the completed run
// record. The returned run is persisted even when the run fails.
func (o *Orchestrator) Harvest(ctx context.Context, src *source.Source) (*model.Run, error) {
	log := zap.L().With(zap.String("source", src.Name))
	log.Info("harvest starting", zap.String("list_url", src.ListURL))

	run, err := o.st.CreateRun(ctx, src.Name)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	listing, err := o.fetcher.Fetch(ctx, src.ListURL)
	if err != nil {
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		o.completeRun(ctx, run, log)
		return run, eris.Wrapf(err, "pipeline: fetch listing %s", src.ListURL)
	}

	maxItems := o.cfg.MaxItems
	if src.MaxItems > 0 {
		maxItems = src.MaxItems
	}
	items := collectListingItems(listing, src, maxItems)
	run.Found = len(items)

	resolver := resolve.NewResolver(o.cfg.Resolve)
	if err := resolver.Load(ctx, o.st, src.Name); err != nil {
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		o.completeRun(ctx, run, log)
		return run, err
	}

	fresh := o.walkListing(items, resolver, run, log)
	candidates := o.processItems(ctx, fresh, src, run)
	o.resolveCandidates(ctx, candidates, resolver, run, log)

	switch {
	case run.Failed > 0:
		run.Status = model.RunStatusPartial
	default:
		run.Status = model.RunStatusCompleted
	}
	o.completeRun(ctx, run, log)

	log.Info("harvest finished",
		zap.String("status", string(run.Status)),
		zap.Int("found", run.Found),
		zap.Int("created", run.Created),
		zap.Int("renewed", run.Renewed),
		zap.Int("skipped", run.Skipped),
		zap.Int("failed", run.Failed),
	)
	return run, nil
}

// walkListing filters items through the duplicate ladder in listing order.
// Three consecutive known items trip the breaker and stop the walk: listing
// pages are newest-first, so everything past that point has been seen.
func (o *Orchestrator) walkListing(items []listingItem, resolver *resolve.Resolver, run *model.Run, log *zap.Logger) []listingItem {
	var fresh []listingItem
	for i, item := range items {
		if resolver.IsDuplicate(item.Title, item.Link) {
			run.Skipped++
			if resolver.Tripped() {
				log.Info("duplicate streak tripped, stopping listing walk",
					zap.Int("position", i+1),
					zap.Int("remaining", len(items)-i-1),
				)
				break
			}
			continue
		}
		fresh = append(fresh, item)
	}
	return fresh
}

// processItems fetches and extracts detail pages concurrently. Failures are
// recorded per page and never abort siblings. Result order matches input
// order; failed slots are nil.
func (o *Orchestrator) processItems(ctx context.Context, items []listingItem, src *source.Source, run *model.Run) []*model.Candidate {
	candidates := make([]*model.Candidate, len(items))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, item := range items {
		g.Go(func() error {
			cand, err := o.processItem(gCtx, item, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				run.Failed++
				if ferr := o.st.RecordPageFailure(gCtx, model.PageFailure{
					RunID:  run.ID,
					URL:    item.Link,
					Reason: err.Error(),
				}); ferr != nil {
					zap.L().Warn("failed to record page failure", zap.Error(ferr))
				}
				return nil
			}
			candidates[i] = cand
			return nil
		})
	}
	_ = g.Wait()
	return candidates
}

func (o *Orchestrator) processItem(ctx context.Context, item listingItem, src *source.Source) (*model.Candidate, error) {
	page, err := o.fetcher.Fetch(ctx, item.Link)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: fetch detail %s", item.Link)
	}

	cand := o.extractor.Extract(page, src)
	if cand.Title == model.TitleNotFound && item.Title != "" {
		cand.Title = item.Title
		cand.SetOrigin("title", model.OriginFallback)
	}

	report := o.scorer.Score(cand)
	switch report.Tier {
	case model.TierFull:
		if o.fallback != nil {
			if ext := o.fallback.ExtractAll(ctx, page.Text(), item.Link); ext != nil {
				ext.Apply(&cand)
				report = o.scorer.Score(cand)
			}
		}
	case model.TierPartial:
		if o.fallback != nil {
			weak := report.WeakFields(o.cfg.ConfidenceFloor)
			if ext := o.fallback.RecoverFields(ctx, page.Text(), weak); ext != nil {
				ext.Apply(&cand)
				report = o.scorer.Score(cand)
			}
		}
	}

	if report.Tier == model.TierFull {
		return nil, eris.Errorf("pipeline: extraction quality too low for %s (score %.2f)", item.Link, report.Score)
	}

	cand.Fingerprint = resolve.Fingerprint(cand.Title, cand.Link)
	return &cand, nil
}

// resolveCandidates hands candidates to lifecycle resolution sequentially in
// listing order, so identity decisions are deterministic.
func (o *Orchestrator) resolveCandidates(ctx context.Context, candidates []*model.Candidate, resolver *resolve.Resolver, run *model.Run, log *zap.Logger) {
	for _, cand := range candidates {
		if cand == nil {
			continue
		}
		// A sibling earlier in this run may have just claimed this identity.
		if resolver.IsDuplicate(cand.Title, cand.Link) {
			run.Skipped++
			continue
		}
		outcome, err := o.lc.Resolve(ctx, *cand)
		if err != nil {
			run.Failed++
			log.Warn("lifecycle resolution failed",
				zap.String("title", cand.Title),
				zap.Error(err),
			)
			continue
		}
		switch outcome {
		case lifecycle.OutcomeCreated:
			run.Created++
			resolver.RecordNew(cand.Title, cand.Link)
		case lifecycle.OutcomeRenewed:
			run.Renewed++
			resolver.RecordNew(cand.Title, cand.Link)
		default:
			run.Skipped++
		}
	}
}

func (o *Orchestrator) completeRun(ctx context.Context, run *model.Run, log *zap.Logger) {
	if err := o.st.CompleteRun(ctx, run); err != nil {
		log.Warn("failed to persist run result", zap.Error(err))
	}
}

// collectListingItems pulls candidate anchors off the listing page: visible
// text, a resolvable href, deduplicated by link, capped at maxItems.
func collectListingItems(page fetch.Page, src *source.Source, maxItems int) []listingItem {
	selector := src.ItemSelector
	if selector == "" {
		selector = "a"
	}

	seen := make(map[string]bool)
	var items []listingItem
	for _, el := range page.Find(selector) {
		href := el.Attr("href")
		title := el.Text()
		if href == "" || len(title) < 5 {
			continue
		}
		link := page.ResolveLink(href)
		if link == "" || seen[link] || link == page.URL() {
			continue
		}
		seen[link] = true
		items = append(items, listingItem{Title: title, Link: link})
		if len(items) == maxItems {
			break
		}
	}
	return items
}
