package model

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func makeCard(t *testing.T) *Card {
	t.Helper()
	c, err := NewCard("CMSAD-1", "There's always money in the banana stand", "Feature",
		date(2011, 5, 2))
	if err != nil {
		t.Fatalf("NewCard: %v", err)
	}
	return c
}

func TestNewCardRequiredFields(t *testing.T) {
	if _, err := NewCard("", "title", "", date(2011, 5, 2)); err != ErrMissingKey {
		t.Errorf("missing key: err = %v", err)
	}
	if _, err := NewCard("K-1", "", "", date(2011, 5, 2)); err != ErrMissingTitle {
		t.Errorf("missing title: err = %v", err)
	}
	if _, err := NewCard("K-1", "title", "", time.Time{}); err != ErrMissingBacklogDate {
		t.Errorf("missing backlog date: err = %v", err)
	}
}

func TestValidateDoneRequiresStart(t *testing.T) {
	c := makeCard(t)
	done := date(2011, 6, 12)
	c.DoneDate = &done

	if err := c.Validate(); err != ErrDoneBeforeStart {
		t.Errorf("err = %v, want ErrDoneBeforeStart", err)
	}
}

func TestDoneCardCycleAndLeadTime(t *testing.T) {
	c := makeCard(t)
	start := date(2011, 5, 9)
	done := date(2011, 6, 12)
	c.StartDate = &start
	c.DoneDate = &done

	if err := c.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if ct := c.CycleTime(); ct == nil || *ct != 25 {
		t.Errorf("CycleTime = %v, want 25", ct)
	}
	if lt := c.LeadTime(); lt == nil || *lt != 30 {
		t.Errorf("LeadTime = %v, want 30", lt)
	}
}

func TestFinalizeFreezesFirstComputation(t *testing.T) {
	c := makeCard(t)
	start := date(2011, 5, 9)
	done := date(2011, 6, 12)
	c.StartDate = &start
	c.DoneDate = &done

	if err := c.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	// Editing dates after completion must not move the frozen values.
	laterDone := date(2011, 7, 1)
	c.DoneDate = &laterDone
	if err := c.Finalize(); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}

	if *c.CycleTime() != 25 || *c.LeadTime() != 30 {
		t.Errorf("frozen durations changed: cycle=%d lead=%d", *c.CycleTime(), *c.LeadTime())
	}
}

func TestWipCardCycleTime(t *testing.T) {
	c := makeCard(t)
	start := date(2011, 5, 9)
	c.StartDate = &start

	if c.CycleTime() != nil {
		t.Error("CycleTime should be nil while in progress")
	}
	if c.LeadTime() != nil {
		t.Error("LeadTime should be nil while in progress")
	}

	got := c.CurrentCycleTime(date(2011, 6, 12))
	if got == nil || *got != 25 {
		t.Errorf("CurrentCycleTime = %v, want 25", got)
	}
}

func TestBackloggedCardHasNoCycleTime(t *testing.T) {
	c := makeCard(t)

	if got := c.CurrentCycleTime(date(2011, 6, 12)); got != nil {
		t.Errorf("CurrentCycleTime = %v, want nil for a card never started", got)
	}
}

func TestInProgressAsOf(t *testing.T) {
	c := makeCard(t)
	c.BacklogDate = date(2011, 5, 30)
	start := date(2011, 5, 31)
	done := date(2011, 6, 2)
	c.StartDate = &start
	c.DoneDate = &done

	tests := []struct {
		asOf time.Time
		want bool
	}{
		{date(2011, 5, 29), false}, // before backlog
		{date(2011, 5, 30), true},  // backlogged that day
		{date(2011, 5, 31), true},  // started
		{date(2011, 6, 1), true},
		{date(2011, 6, 2), false}, // done that day no longer counts
		{date(2011, 6, 12), false},
	}
	for _, tt := range tests {
		if got := c.InProgressAsOf(tt.asOf); got != tt.want {
			t.Errorf("InProgressAsOf(%s) = %v, want %v",
				tt.asOf.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Operation Hot Mother", "operation-hot-mother"},
		{"Teamocil Board 7", "teamocil-board-7"},
		{"  Spaced   Out!  ", "spaced-out"},
		{"Already-Hyphenated", "already-hyphenated"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.name); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
