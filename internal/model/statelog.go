package model

import (
	"time"

	"github.com/dori/kardo/internal/calendar"
)

// StateLogEntry records one contiguous interval a card spent in a
// workflow state. Entries for a card, ordered by created_at descending,
// reconstruct its full history; each interval begins where the previous
// one's ExitedAt falls.
type StateLogEntry struct {
	ID     string `json:"id"`
	CardID string `json:"card_id"`
	State  string `json:"state"`

	EnteredAt time.Time  `json:"entered_at"`
	ExitedAt  *time.Time `json:"exited_at,omitempty"`

	// Blocked sub-state. Only the most recent blocked span's bounds
	// are kept; earlier spans within the same interval are lost.
	Blocked     bool       `json:"blocked"`
	BlockedAt   *time.Time `json:"blocked_at,omitempty"`
	UnblockedAt *time.Time `json:"unblocked_at,omitempty"`

	// Frozen hour counts. Duration is cached at the first save where
	// both endpoints exist; BlockedDuration at unblock time.
	CachedDuration        *int `json:"duration,omitempty"`
	CachedBlockedDuration *int `json:"blocked_duration,omitempty"`

	Message string `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOpen reports whether the card still occupies this state.
func (e *StateLogEntry) IsOpen() bool {
	return e.ExitedAt == nil
}

// Duration returns the hours the card spent in this state. A frozen
// value always wins; an open interval is measured live against now
// without mutating the entry.
func (e *StateLogEntry) Duration(now time.Time) int {
	if e.CachedDuration != nil {
		return *e.CachedDuration
	}
	end := now
	if e.ExitedAt != nil {
		end = *e.ExitedAt
	}
	return calendar.DurationInHours(end.Sub(e.EnteredAt))
}

// BlockedDuration returns the hours of the most recent blocked span.
// Frozen once unblocked; measured live against now while still blocked.
func (e *StateLogEntry) BlockedDuration(now time.Time) int {
	if e.CachedBlockedDuration != nil {
		return *e.CachedBlockedDuration
	}
	if e.BlockedAt == nil {
		return 0
	}
	end := now
	if e.UnblockedAt != nil {
		end = *e.UnblockedAt
	}
	return calendar.DurationInHours(end.Sub(*e.BlockedAt))
}

// IsBlocked reports whether the entry is inside an unclosed blocked span.
func (e *StateLogEntry) IsBlocked() bool {
	return e.BlockedAt != nil && e.UnblockedAt == nil
}

// Freeze caches the final duration once both endpoints are known. The
// first computed value is authoritative; recomputation never overwrites it.
func (e *StateLogEntry) Freeze() {
	if e.CachedDuration != nil || e.ExitedAt == nil {
		return
	}
	hours := calendar.DurationInHours(e.ExitedAt.Sub(e.EnteredAt))
	e.CachedDuration = &hours
}
