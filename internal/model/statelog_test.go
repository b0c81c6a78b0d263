package model

import (
	"testing"
	"time"
)

func TestOpenEntryDurationIsLive(t *testing.T) {
	entered := time.Date(2011, 6, 1, 9, 0, 0, 0, time.UTC)
	e := &StateLogEntry{CardID: "c1", State: "Doing", EnteredAt: entered}

	now := entered.Add(5 * time.Hour)
	if got := e.Duration(now); got != 5 {
		t.Errorf("Duration = %d, want 5", got)
	}

	// A later now moves the live reading; nothing was cached.
	now = entered.Add(7*time.Hour + 40*time.Minute)
	if got := e.Duration(now); got != 8 {
		t.Errorf("Duration = %d, want 8 (round half up)", got)
	}
	if e.CachedDuration != nil {
		t.Error("live read must not cache a duration")
	}
}

func TestFreezeIsIdempotent(t *testing.T) {
	entered := time.Date(2011, 6, 1, 9, 0, 0, 0, time.UTC)
	exited := entered.Add(30 * time.Hour)
	e := &StateLogEntry{CardID: "c1", State: "Doing", EnteredAt: entered, ExitedAt: &exited}

	e.Freeze()
	if e.CachedDuration == nil || *e.CachedDuration != 30 {
		t.Fatalf("CachedDuration = %v, want 30", e.CachedDuration)
	}

	// The frozen value survives later edits to the endpoints.
	laterExit := entered.Add(50 * time.Hour)
	e.ExitedAt = &laterExit
	e.Freeze()
	if *e.CachedDuration != 30 {
		t.Errorf("CachedDuration = %d, want frozen 30", *e.CachedDuration)
	}

	// Frozen value wins over any now.
	if got := e.Duration(entered.Add(100 * time.Hour)); got != 30 {
		t.Errorf("Duration = %d, want 30", got)
	}
}

func TestBlockedDuration(t *testing.T) {
	entered := time.Date(2011, 6, 1, 9, 0, 0, 0, time.UTC)
	e := &StateLogEntry{CardID: "c1", State: "Doing", EnteredAt: entered}

	if e.IsBlocked() {
		t.Error("new entry should not be blocked")
	}
	if got := e.BlockedDuration(entered.Add(time.Hour)); got != 0 {
		t.Errorf("BlockedDuration = %d, want 0 before any block", got)
	}

	blockedAt := entered.Add(2 * time.Hour)
	e.Blocked = true
	e.BlockedAt = &blockedAt

	if !e.IsBlocked() {
		t.Error("entry should be blocked")
	}
	if got := e.BlockedDuration(blockedAt.Add(3 * time.Hour)); got != 3 {
		t.Errorf("live BlockedDuration = %d, want 3", got)
	}

	unblockedAt := blockedAt.Add(6 * time.Hour)
	e.UnblockedAt = &unblockedAt
	frozen := 6
	e.CachedBlockedDuration = &frozen

	if e.IsBlocked() {
		t.Error("entry should no longer be blocked")
	}
	if got := e.BlockedDuration(unblockedAt.Add(48 * time.Hour)); got != 6 {
		t.Errorf("BlockedDuration = %d, want frozen 6", got)
	}
}
