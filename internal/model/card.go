package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/dori/kardo/internal/calendar"
)

// Validation errors for card construction.
var (
	ErrMissingKey         = errors.New("card: key is required")
	ErrMissingTitle       = errors.New("card: title is required")
	ErrMissingBacklogDate = errors.New("card: backlog date is required")
	ErrDoneBeforeStart    = errors.New("card: done date requires a start date")
)

// Card is a unit of work tracked through the workflow.
type Card struct {
	ID       string `json:"id"`
	Key      string `json:"key"` // unique human identifier, e.g. CMSAD-42
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`

	BacklogDate time.Time  `json:"backlog_date"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	DoneDate    *time.Time `json:"done_date,omitempty"`

	// Frozen business-day durations, set once at the save where
	// DoneDate first appears and never recomputed afterwards.
	CachedCycleTime *int `json:"cycle_time,omitempty"`
	CachedLeadTime  *int `json:"lead_time,omitempty"`

	// When the external ticket system last refreshed this card.
	TicketSyncedAt *time.Time `json:"ticket_synced_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCard validates required fields and returns a card ready to persist.
func NewCard(key, title, category string, backlogDate time.Time) (*Card, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	if title == "" {
		return nil, ErrMissingTitle
	}
	if backlogDate.IsZero() {
		return nil, ErrMissingBacklogDate
	}
	return &Card{
		Key:         key,
		Title:       title,
		Category:    category,
		BacklogDate: backlogDate,
	}, nil
}

// Validate checks the lifecycle date invariants.
func (c *Card) Validate() error {
	if c.Key == "" {
		return ErrMissingKey
	}
	if c.Title == "" {
		return ErrMissingTitle
	}
	if c.BacklogDate.IsZero() {
		return ErrMissingBacklogDate
	}
	if c.DoneDate != nil && c.StartDate == nil {
		return ErrDoneBeforeStart
	}
	return nil
}

// IsDone reports whether work on the card has completed.
func (c *Card) IsDone() bool {
	return c.DoneDate != nil
}

// IsStarted reports whether active work has begun.
func (c *Card) IsStarted() bool {
	return c.StartDate != nil
}

// CycleTime returns the frozen business-day span from start to done,
// or nil while the card is incomplete.
func (c *Card) CycleTime() *int {
	return c.CachedCycleTime
}

// LeadTime returns the frozen business-day span from backlog to done,
// or nil while the card is incomplete.
func (c *Card) LeadTime() *int {
	return c.CachedLeadTime
}

// CurrentCycleTime returns the business days from start to today for a
// card still in flight. It is recomputed on every call and returns nil
// when the card never left the backlog. Completed cards report their
// frozen cycle time.
func (c *Card) CurrentCycleTime(today time.Time) *int {
	if c.DoneDate != nil {
		return c.CachedCycleTime
	}
	if c.StartDate == nil {
		return nil
	}
	days, err := calendar.BusinessDaysBetween(*c.StartDate, today)
	if err != nil {
		return nil
	}
	return &days
}

// InProgressAsOf reports whether the card was in progress on the given
// date: backlogged on or before it and not yet done. The answer is
// reconstructed purely from lifecycle dates, so it holds for any past
// date, not only the present.
func (c *Card) InProgressAsOf(d time.Time) bool {
	day := calendar.Day(d)
	if calendar.Day(c.BacklogDate).After(day) {
		return false
	}
	return c.DoneDate == nil || calendar.Day(*c.DoneDate).After(day)
}

// Finalize freezes cycle and lead time once the done date is set. The
// first computation wins; calling Finalize again is a no-op even if
// lifecycle dates were edited in the meantime.
func (c *Card) Finalize() error {
	if c.DoneDate == nil {
		return nil
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if c.CachedCycleTime == nil {
		days, err := calendar.BusinessDaysBetween(*c.StartDate, *c.DoneDate)
		if err != nil {
			return fmt.Errorf("cycle time for %s: %w", c.Key, err)
		}
		c.CachedCycleTime = &days
	}
	if c.CachedLeadTime == nil {
		days, err := calendar.BusinessDaysBetween(c.BacklogDate, *c.DoneDate)
		if err != nil {
			return fmt.Errorf("lead time for %s: %w", c.Key, err)
		}
		c.CachedLeadTime = &days
	}
	return nil
}
