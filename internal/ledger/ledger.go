// Package ledger maintains the append-only per-transition record of
// which workflow state each card occupies and for how long.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/dori/kardo/internal/calendar"
	"github.com/dori/kardo/internal/db"
	"github.com/dori/kardo/internal/model"
)

// Errors surfaced by ledger operations.
var (
	ErrDuplicateOpenInterval = errors.New("ledger: card already has an open interval")
	ErrNotOpen               = errors.New("ledger: interval is already closed")
)

// Ledger records state occupancy intervals for cards. A card occupies
// at most one state at a time; the ledger enforces that by refusing a
// second open interval.
type Ledger struct {
	db *db.DB
}

// New returns a ledger over the given store.
func New(database *db.DB) *Ledger {
	return &Ledger{db: database}
}

// OpenInterval starts a new occupancy interval for a card entering a
// state. Fails with ErrDuplicateOpenInterval while the card still
// occupies a state; close or transition first.
func (l *Ledger) OpenInterval(cardID, state string, enteredAt time.Time) (*model.StateLogEntry, error) {
	open, err := l.db.OpenStateLog(cardID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, fmt.Errorf("%w: card %s is in %q", ErrDuplicateOpenInterval, cardID, open.State)
	}

	e := &model.StateLogEntry{
		CardID:    cardID,
		State:     state,
		EnteredAt: enteredAt,
	}
	if err := l.db.InsertStateLog(e); err != nil {
		return nil, err
	}
	return e, nil
}

// CloseInterval stamps the exit time and freezes the duration. Closing
// an already-closed interval with the same exit time is a no-op; the
// frozen duration never changes.
func (l *Ledger) CloseInterval(e *model.StateLogEntry, exitedAt time.Time) error {
	if e.ExitedAt != nil {
		if e.ExitedAt.Equal(exitedAt) {
			return nil
		}
		return fmt.Errorf("%w: exited at %s", ErrNotOpen, e.ExitedAt.Format(time.RFC3339))
	}

	// An unblock was never recorded; the blocked span ends with the
	// interval.
	if e.IsBlocked() {
		if err := l.MarkUnblocked(e, exitedAt); err != nil {
			return err
		}
	}

	e.ExitedAt = &exitedAt
	return l.db.SaveStateLog(e)
}

// Transition closes the card's current interval (if any) and opens one
// for the next state, both at the same instant, so coverage never
// overlaps and never gaps.
func (l *Ledger) Transition(cardID, state string, at time.Time) (*model.StateLogEntry, error) {
	open, err := l.db.OpenStateLog(cardID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		if open.State == state {
			return open, nil
		}
		if err := l.CloseInterval(open, at); err != nil {
			return nil, err
		}
	}
	return l.OpenInterval(cardID, state, at)
}

// CurrentDuration reads the hours spent in the interval without
// mutating it: the frozen value for a closed interval, a live
// elapsed-to-now figure for an open one.
func (l *Ledger) CurrentDuration(e *model.StateLogEntry, now time.Time) int {
	return e.Duration(now)
}

// MarkBlocked opens a blocked sub-interval. Re-blocking an already
// blocked entry keeps the original blocked-at stamp; blocking again
// after an unblock starts a new span and discards the previous one.
func (l *Ledger) MarkBlocked(e *model.StateLogEntry, at time.Time, message string) error {
	if e.ExitedAt != nil {
		return ErrNotOpen
	}
	if e.IsBlocked() {
		return nil
	}

	e.Blocked = true
	e.BlockedAt = &at
	e.UnblockedAt = nil
	e.CachedBlockedDuration = nil
	if message != "" {
		e.Message = message
	}
	return l.db.SaveStateLog(e)
}

// MarkUnblocked closes the blocked sub-interval and freezes its
// duration, the same way CloseInterval freezes the interval's own.
func (l *Ledger) MarkUnblocked(e *model.StateLogEntry, at time.Time) error {
	if e.BlockedAt == nil || e.UnblockedAt != nil {
		return nil
	}

	e.UnblockedAt = &at
	hours := calendar.DurationInHours(at.Sub(*e.BlockedAt))
	e.CachedBlockedDuration = &hours
	return l.db.SaveStateLog(e)
}

// History returns the card's intervals, newest record first; together
// they reconstruct the card's full path through the workflow.
func (l *Ledger) History(cardID string) ([]model.StateLogEntry, error) {
	return l.db.StateLogsForCard(cardID)
}

// Current returns the card's open interval, or nil when the card
// occupies no state.
func (l *Ledger) Current(cardID string) (*model.StateLogEntry, error) {
	return l.db.OpenStateLog(cardID)
}
