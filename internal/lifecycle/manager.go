// Package lifecycle moves records between active and expired, detects when
// an expired scholarship has reopened for a new batch year, and drives
// watcher notifications for those renewals.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scholarscope/harvest-cli/internal/model"
	"github.com/scholarscope/harvest-cli/internal/notify"
	"github.com/scholarscope/harvest-cli/internal/resolve"
	"github.com/scholarscope/harvest-cli/internal/store"
)

// Outcome is what happened to a candidate after lifecycle resolution.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeRenewed   Outcome = "renewed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeStale     Outcome = "stale"
)

// Config tunes lifecycle decisions.
type Config struct {
	// RenewalThreshold is the fuzzy similarity (0-100) at or above which a
	// candidate is treated as the same scholarship as a stored record.
	// Higher than the duplicate threshold: renaming a record's year is a
	// stronger claim than dropping a scrape. Default 90.
	RenewalThreshold int
	// ExpiryGraceDays keeps a record active for this long past its deadline
	// before the sweep expires it. Default 30.
	ExpiryGraceDays int
}

func (c Config) withDefaults() Config {
	if c.RenewalThreshold <= 0 {
		c.RenewalThreshold = 90
	}
	if c.ExpiryGraceDays <= 0 {
		c.ExpiryGraceDays = 30
	}
	return c
}

// Manager applies lifecycle rules on top of the store.
type Manager struct {
	st  store.Store
	cfg Config
	now func() time.Time
}

func New(st store.Store, cfg Config) *Manager {
	return &Manager{st: st, cfg: cfg.withDefaults(), now: func() time.Time { return time.Now().UTC() }}
}

// Sweep expires every active record whose deadline passed more than the
// grace period ago. Safe to run repeatedly.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	cutoff := m.now().AddDate(0, 0, -m.cfg.ExpiryGraceDays)
	n, err := m.st.ExpireRecords(ctx, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "lifecycle: sweep")
	}
	if n > 0 {
		zap.L().Info("records expired", zap.Int("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// Resolve decides what a fingerprint-novel candidate becomes: a renewal of
// an expired record, a duplicate of an active one, or a brand-new record.
// Candidates whose own deadline is already past the grace period are dropped
// without being stored.
func (m *Manager) Resolve(ctx context.Context, cand model.Candidate) (Outcome, error) {
	if cand.EndDate != nil && cand.EndDate.Before(m.now().AddDate(0, 0, -m.cfg.ExpiryGraceDays)) {
		return OutcomeStale, nil
	}

	match, score, err := m.bestMatch(ctx, cand)
	if err != nil {
		return "", err
	}
	if match != nil && score >= m.cfg.RenewalThreshold {
		if match.Status == model.RecordStatusExpired {
			if err := m.renew(ctx, match, cand); err != nil {
				return "", err
			}
			return OutcomeRenewed, nil
		}
		// Same scholarship, still active: nothing to update.
		zap.L().Debug("candidate matches active record",
			zap.String("title", cand.Title),
			zap.String("record_id", match.ID),
			zap.Int("score", score),
		)
		return OutcomeDuplicate, nil
	}

	created, err := m.st.CreateRecord(ctx, recordFromCandidate(cand))
	if err != nil {
		return "", eris.Wrap(err, "lifecycle: create record")
	}
	if !created {
		return OutcomeDuplicate, nil
	}
	return OutcomeCreated, nil
}

// bestMatch searches stored records by the candidate's distinctive title
// terms and returns the closest one with its similarity score.
func (m *Manager) bestMatch(ctx context.Context, cand model.Candidate) (*model.Record, int, error) {
	terms := resolve.SearchTerms(cand.Title)
	if len(terms) == 0 {
		return nil, 0, nil
	}
	matches, err := m.st.SearchRecords(ctx, terms)
	if err != nil {
		return nil, 0, eris.Wrap(err, "lifecycle: search records")
	}

	var best *model.Record
	bestScore := 0
	for i := range matches {
		if score := resolve.Similarity(matches[i].Title, cand.Title); score > bestScore {
			best = &matches[i]
			bestScore = score
		}
	}
	return best, bestScore, nil
}

func (m *Manager) renew(ctx context.Context, rec *model.Record, cand model.Candidate) error {
	priorYear := m.now().Year() - 1
	if rec.EndDate != nil {
		priorYear = rec.EndDate.Year()
	}
	newYear := m.now().Year()
	if cand.EndDate != nil {
		newYear = cand.EndDate.Year()
	}

	err := m.st.RenewRecord(ctx, store.RenewalRequest{
		RecordID:       rec.ID,
		Candidate:      cand,
		PriorBatchYear: priorYear,
		NewYear:        newYear,
		Message:        renewalMessage(rec.Title, newYear, cand.EndDate),
	})
	if err != nil {
		return eris.Wrapf(err, "lifecycle: renew %s", rec.ID)
	}

	zap.L().Info("record renewed",
		zap.String("record_id", rec.ID),
		zap.String("title", rec.Title),
		zap.Int("prior_year", priorYear),
		zap.Int("new_year", newYear),
	)
	return nil
}

func renewalMessage(title string, year int, deadline *time.Time) string {
	if deadline != nil {
		return fmt.Sprintf("%s is open again for %d. Applications close %s.",
			title, year, deadline.Format("2 January 2006"))
	}
	return fmt.Sprintf("%s is open again for %d.", title, year)
}

// EnqueueRecentRenewals queues notifications for watchers who registered
// after a renewal happened, so they are not silently skipped until the next
// renewal. Intended for a periodic (e.g. weekly) scan.
func (m *Manager) EnqueueRecentRenewals(ctx context.Context, since time.Time) (int, error) {
	recs, err := m.st.RecentlyRenewed(ctx, since)
	if err != nil {
		return 0, eris.Wrap(err, "lifecycle: recently renewed")
	}

	queued := 0
	for _, rec := range recs {
		year := rec.LastRenewedAt.Year()
		if rec.EndDate != nil {
			year = rec.EndDate.Year()
		}
		watchers, err := m.st.ListWatchers(ctx, rec.ID)
		if err != nil {
			return queued, eris.Wrapf(err, "lifecycle: watchers for %s", rec.ID)
		}
		for _, w := range watchers {
			if w.NotifiedForYear == year {
				continue
			}
			err := m.st.EnqueueNotification(ctx, model.Notification{
				WatcherID: w.ID,
				RecordID:  rec.ID,
				Email:     w.Email,
				Year:      year,
				Message:   renewalMessage(rec.Title, year, rec.EndDate),
			})
			if err != nil {
				return queued, eris.Wrapf(err, "lifecycle: queue for watcher %s", w.ID)
			}
			if err := m.st.MarkWatcherNotified(ctx, w.ID, year); err != nil {
				return queued, err
			}
			queued++
		}
	}
	return queued, nil
}

// Deliver sends pending notifications through the sender. A failed send
// marks the notification failed and moves on.
func (m *Manager) Deliver(ctx context.Context, sender notify.Sender, limit int) (sent, failed int, err error) {
	pending, err := m.st.PendingNotifications(ctx, limit)
	if err != nil {
		return 0, 0, eris.Wrap(err, "lifecycle: pending notifications")
	}

	for _, n := range pending {
		sendErr := sender.Send(ctx, n)
		if sendErr != nil {
			zap.L().Warn("notification delivery failed",
				zap.String("notification_id", n.ID),
				zap.String("email", n.Email),
				zap.Error(sendErr),
			)
			failed++
		} else {
			sent++
		}
		if err := m.st.MarkNotificationSent(ctx, n.ID, sendErr == nil); err != nil {
			return sent, failed, err
		}
	}
	return sent, failed, nil
}

func recordFromCandidate(c model.Candidate) *model.Record {
	return &model.Record{
		Fingerprint:  c.Fingerprint,
		Source:       c.Source,
		Link:         c.Link,
		Title:        c.Title,
		Description:  c.Description,
		Reward:       c.Reward,
		StartDate:    c.StartDate,
		EndDate:      c.EndDate,
		Requirements: c.Requirements,
		Eligibility:  c.Eligibility,
		Tags:         c.Tags,
		Levels:       c.Levels,
		Status:       model.RecordStatusActive,
	}
}
