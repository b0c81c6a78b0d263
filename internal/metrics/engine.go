// Package metrics answers reporting queries over cards and their state
// history: work in progress as of any date, completions per window, and
// moving averages. Queries read stored lifecycle dates only; they never
// replay mutation history, which is what makes past-date reconstruction
// cheap and exact.
package metrics

import (
	"math"
	"time"

	"github.com/dori/kardo/internal/calendar"
	"github.com/dori/kardo/internal/db"
	"github.com/dori/kardo/internal/model"
)

// Config carries the engine's calendar parameters. The zero value is
// usable: Sunday-start weeks.
type Config struct {
	WeekStart time.Weekday
}

// Engine is the windowing query layer over the store. Safe to run
// concurrently with ongoing state transitions; results are a snapshot,
// not linearized with in-flight writes.
type Engine struct {
	db  *db.DB
	cfg Config
}

// New returns an engine over the given store.
func New(database *db.DB, cfg Config) *Engine {
	return &Engine{db: database, cfg: cfg}
}

// InProgress returns the cards that were in progress as of the given
// date: backlogged on or before it and not yet done. Works for any
// past date, not only now.
func (e *Engine) InProgress(asOf time.Time) ([]model.Card, error) {
	return e.db.CardsInProgress(asOf)
}

// DoneInMonth returns the cards completed during the given month.
func (e *Engine) DoneInMonth(year int, month time.Month) ([]model.Card, error) {
	start, end := calendar.MonthRange(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
	return e.db.CardsDoneInRange(start, end)
}

// DoneInWeek returns the cards completed during the week containing
// the given date.
func (e *Engine) DoneInWeek(year int, month time.Month, day int) ([]model.Card, error) {
	start, end := calendar.WeekRange(time.Date(year, month, day, 0, 0, 0, 0, time.UTC), e.cfg.WeekStart)
	return e.db.CardsDoneInRange(start, end)
}

// MovingCycleTime returns the mean frozen cycle time across every card
// completed on or before the given date, rounded half up. Zero when
// nothing has completed yet.
func (e *Engine) MovingCycleTime(year int, month time.Month, day int) (int, error) {
	done, err := e.db.CardsDoneThrough(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return 0, err
	}

	sum, n := 0, 0
	for _, c := range done {
		if c.CachedCycleTime != nil {
			sum += *c.CachedCycleTime
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return int(math.Floor(float64(sum)/float64(n) + 0.5)), nil
}

// MovingLeadTime is MovingCycleTime over the backlog-to-done span.
func (e *Engine) MovingLeadTime(year int, month time.Month, day int) (int, error) {
	done, err := e.db.CardsDoneThrough(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return 0, err
	}

	sum, n := 0, 0
	for _, c := range done {
		if c.CachedLeadTime != nil {
			sum += *c.CachedLeadTime
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return int(math.Floor(float64(sum)/float64(n) + 0.5)), nil
}

// WIPByState counts the open ledger intervals per workflow state.
func (e *Engine) WIPByState() (map[string]int, error) {
	open, err := e.db.OpenStateLogs()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, entry := range open {
		counts[entry.State]++
	}
	return counts, nil
}

// OpenBlocked returns the open intervals currently inside a blocked span.
func (e *Engine) OpenBlocked() ([]model.StateLogEntry, error) {
	open, err := e.db.OpenStateLogs()
	if err != nil {
		return nil, err
	}

	var blocked []model.StateLogEntry
	for _, entry := range open {
		if entry.IsBlocked() {
			blocked = append(blocked, entry)
		}
	}
	return blocked, nil
}

// WeekCount is one week's completion tally.
type WeekCount struct {
	Start time.Time
	End   time.Time
	Count int
}

// WeeklyThroughput returns completion counts for the given number of
// weeks ending with the week containing end, oldest week first.
func (e *Engine) WeeklyThroughput(end time.Time, weeks int) ([]WeekCount, error) {
	out := make([]WeekCount, 0, weeks)

	start, _ := calendar.WeekRange(end, e.cfg.WeekStart)
	start = start.AddDate(0, 0, -7*(weeks-1))

	for i := 0; i < weeks; i++ {
		ws, we := calendar.WeekRange(start.AddDate(0, 0, 7*i), e.cfg.WeekStart)
		done, err := e.db.CardsDoneInRange(ws, we)
		if err != nil {
			return nil, err
		}
		out = append(out, WeekCount{Start: ws, End: we, Count: len(done)})
	}
	return out, nil
}
