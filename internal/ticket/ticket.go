// Package ticket refreshes cards from the external ticket system. There
// is no distributed lock: eligibility is a last-synced timestamp check,
// so a duplicate concurrent refresh is tolerated as an idempotent
// overwrite rather than prevented.
package ticket

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/dori/kardo/internal/db"
	"github.com/dori/kardo/internal/model"
)

// Update carries the status fields the ticket system reports for a card.
type Update struct {
	Title     string
	Category  string
	StartDate *time.Time
	DoneDate  *time.Time
}

// System is the boundary to the external tracker.
type System interface {
	Refresh(ctx context.Context, card *model.Card) (Update, error)
}

// Config tunes the refresh scheduler.
type Config struct {
	// Threshold is the per-card cooldown between refreshes.
	Threshold time.Duration
	// ActiveLimit and DoneLimit cap how many stale in-flight and
	// completed cards one sweep refreshes.
	ActiveLimit int
	DoneLimit   int
	// Concurrency bounds the refresh worker fan-out.
	Concurrency int
	// Attempts is the per-card retry budget against a flaky tracker.
	Attempts uint64
}

// DefaultConfig returns the scheduler defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:   time.Hour,
		ActiveLimit: 50,
		DoneLimit:   20,
		Concurrency: 4,
		Attempts:    3,
	}
}

// Outcome reports what a single refresh attempt did.
type Outcome int

const (
	// Refreshed means the ticket system was queried and the card saved.
	Refreshed Outcome = iota
	// Skipped means the card was refreshed recently enough; a no-op,
	// not an error.
	Skipped
	// Missing means the card no longer exists.
	Missing
)

// Stats summarizes one QueueUpdates sweep.
type Stats struct {
	New       int // never-synced cards queued
	Active    int // stale in-flight cards queued
	Done      int // stale completed cards queued
	Refreshed int64
	Skipped   int64
	Failed    int64
}

// Syncer runs cooldown-gated refreshes against the ticket system.
type Syncer struct {
	db  *db.DB
	ts  System
	cfg Config

	now func() time.Time // test hook
}

// New returns a syncer. Zero config fields fall back to defaults.
func New(database *db.DB, ts System, cfg Config) *Syncer {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.ActiveLimit <= 0 {
		cfg.ActiveLimit = def.ActiveLimit
	}
	if cfg.DoneLimit <= 0 {
		cfg.DoneLimit = def.DoneLimit
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = def.Attempts
	}
	return &Syncer{db: database, ts: ts, cfg: cfg, now: time.Now}
}

// RefreshCard refreshes one card unless its last refresh is within the
// cooldown threshold. The stale check happens before work is issued;
// two concurrent callers may both pass it, and both writes land.
func (s *Syncer) RefreshCard(ctx context.Context, cardID string) (Outcome, error) {
	card, err := s.db.GetCard(cardID)
	if err != nil {
		return Skipped, err
	}
	if card == nil {
		return Missing, nil
	}

	now := s.now()
	if card.TicketSyncedAt != nil && now.Sub(*card.TicketSyncedAt) < s.cfg.Threshold {
		return Skipped, nil
	}

	var update Update
	backoff := retry.WithMaxRetries(s.cfg.Attempts, retry.NewFibonacci(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var rerr error
		update, rerr = s.ts.Refresh(ctx, card)
		if rerr != nil {
			return retry.RetryableError(rerr)
		}
		return nil
	})
	if err != nil {
		return Skipped, fmt.Errorf("refresh %s: %w", card.Key, err)
	}

	s.apply(card, update)
	card.TicketSyncedAt = &now
	if err := s.db.SaveCard(card); err != nil {
		return Skipped, fmt.Errorf("save %s: %w", card.Key, err)
	}
	return Refreshed, nil
}

// apply overwrites the card's status fields with the tracker's answer.
// Lifecycle dates only move forward from absent; the tracker never
// un-completes a card here.
func (s *Syncer) apply(card *model.Card, u Update) {
	if u.Title != "" {
		card.Title = u.Title
	}
	if u.Category != "" {
		card.Category = u.Category
	}
	if card.StartDate == nil && u.StartDate != nil {
		card.StartDate = u.StartDate
	}
	if card.DoneDate == nil && u.DoneDate != nil && card.StartDate != nil {
		card.DoneDate = u.DoneDate
	}
}

// QueueUpdates sweeps the store and refreshes, with bounded
// concurrency: every never-synced card, the oldest stale in-flight
// cards, and the oldest stale completed cards.
func (s *Syncer) QueueUpdates(ctx context.Context) (Stats, error) {
	var stats Stats

	newCards, err := s.db.CardsNeverSynced()
	if err != nil {
		return stats, err
	}
	cutoff := s.now().Add(-s.cfg.Threshold)
	activeCards, err := s.db.CardsStaleActive(cutoff, s.cfg.ActiveLimit)
	if err != nil {
		return stats, err
	}
	doneCards, err := s.db.CardsStaleDone(cutoff, s.cfg.DoneLimit)
	if err != nil {
		return stats, err
	}

	stats.New = len(newCards)
	stats.Active = len(activeCards)
	stats.Done = len(doneCards)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	queue := make([]model.Card, 0, len(newCards)+len(activeCards)+len(doneCards))
	queue = append(queue, newCards...)
	queue = append(queue, activeCards...)
	queue = append(queue, doneCards...)

	for _, card := range queue {
		card := card
		g.Go(func() error {
			outcome, err := s.RefreshCard(ctx, card.ID)
			switch {
			case err != nil:
				// One bad ticket must not starve the sweep.
				atomic.AddInt64(&stats.Failed, 1)
			case outcome == Refreshed:
				atomic.AddInt64(&stats.Refreshed, 1)
			default:
				atomic.AddInt64(&stats.Skipped, 1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}
