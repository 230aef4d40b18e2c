package resolve

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Snapshot is the slice of the store the resolver preloads at run start.
type Snapshot interface {
	ListFingerprints(ctx context.Context) ([]string, error)
	RecentTitles(ctx context.Context, source string, limit int) ([]string, error)
}

// Config tunes duplicate detection.
type Config struct {
	// DuplicateThreshold is the fuzzy similarity (0-100) at or above which a
	// candidate title is dropped as a duplicate. Default 85.
	DuplicateThreshold int
	// TitleWindow bounds how many recently-created titles are compared.
	// Default 100.
	TitleWindow int
	// StreakLimit is the consecutive-duplicate count that trips the listing
	// walk breaker. Default 3.
	StreakLimit int
}

func (c Config) withDefaults() Config {
	if c.DuplicateThreshold <= 0 {
		c.DuplicateThreshold = 85
	}
	if c.TitleWindow <= 0 {
		c.TitleWindow = 100
	}
	if c.StreakLimit <= 0 {
		c.StreakLimit = 3
	}
	return c
}

// minSourceWindow is the smallest per-source title window worth using;
// below it the global window is loaded instead so young sources still get
// fuzzy protection.
const minSourceWindow = 10

// Resolver holds the in-memory identity state for one run. It is owned by
// the single goroutine walking that run's candidates in order and must not
// be shared across concurrent runs.
type Resolver struct {
	cfg          Config
	fingerprints map[string]struct{}
	window       []string // normalized titles, newest first
	streak       int
}

// NewResolver creates an empty resolver; call Load before use.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{
		cfg:          cfg.withDefaults(),
		fingerprints: make(map[string]struct{}),
	}
}

// Load preloads the fingerprint set and the recent-title window from the
// store. The window is scoped to the candidate's source when that source has
// enough history, otherwise the global window is used.
func (r *Resolver) Load(ctx context.Context, snap Snapshot, source string) error {
	fps, err := snap.ListFingerprints(ctx)
	if err != nil {
		return eris.Wrap(err, "resolve: load fingerprints")
	}
	r.fingerprints = make(map[string]struct{}, len(fps))
	for _, fp := range fps {
		r.fingerprints[fp] = struct{}{}
	}

	titles, err := snap.RecentTitles(ctx, source, r.cfg.TitleWindow)
	if err != nil {
		return eris.Wrap(err, "resolve: load titles")
	}
	if len(titles) < minSourceWindow {
		titles, err = snap.RecentTitles(ctx, "", r.cfg.TitleWindow)
		if err != nil {
			return eris.Wrap(err, "resolve: load global titles")
		}
	}
	r.window = make([]string, 0, len(titles))
	for _, t := range titles {
		r.window = append(r.window, NormalizeTitle(t))
	}

	zap.L().Debug("resolver loaded",
		zap.String("source", source),
		zap.Int("fingerprints", len(r.fingerprints)),
		zap.Int("titles", len(r.window)),
	)
	return nil
}

// IsDuplicate runs the duplicate ladder for a candidate and updates the
// consecutive-duplicate streak: fingerprint set, then exact title in the
// window, then fuzzy title similarity. First hit wins.
func (r *Resolver) IsDuplicate(title, link string) bool {
	if r.isDuplicate(title, link) {
		r.streak++
		return true
	}
	r.streak = 0
	return false
}

func (r *Resolver) isDuplicate(title, link string) bool {
	if _, ok := r.fingerprints[Fingerprint(title, link)]; ok {
		return true
	}

	norm := NormalizeTitle(title)
	for _, seen := range r.window {
		if seen == norm {
			return true
		}
	}

	for _, seen := range r.window {
		// Length prefilter keeps the edit-distance work off hopeless pairs.
		if diff := len(seen) - len(norm); diff >= 10 || diff <= -10 {
			continue
		}
		if Similarity(seen, norm) >= r.cfg.DuplicateThreshold {
			return true
		}
	}
	return false
}

// RecordNew registers a newly persisted candidate so later items in the same
// run dedupe against it.
func (r *Resolver) RecordNew(title, link string) {
	r.fingerprints[Fingerprint(title, link)] = struct{}{}
	r.window = append([]string{NormalizeTitle(title)}, r.window...)
	if len(r.window) > r.cfg.TitleWindow {
		r.window = r.window[:r.cfg.TitleWindow]
	}
}

// Tripped reports whether the consecutive-duplicate breaker has fired for
// this listing walk.
func (r *Resolver) Tripped() bool {
	return r.streak >= r.cfg.StreakLimit
}

// ResetStreak clears the breaker, e.g. when a new listing page starts.
func (r *Resolver) ResetStreak() {
	r.streak = 0
}
