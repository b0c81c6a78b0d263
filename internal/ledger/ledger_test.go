package ledger

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dori/kardo/internal/db"
	"github.com/dori/kardo/internal/model"
)

func openTestLedger(t *testing.T) (*Ledger, *db.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database), database
}

func seedCard(t *testing.T, database *db.DB, key string) *model.Card {
	t.Helper()
	c, err := model.NewCard(key, "banana stand", "Feature",
		time.Date(2011, 5, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewCard: %v", err)
	}
	if err := database.CreateCard(c); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	return c
}

func TestOpenIntervalRejectsSecondOpen(t *testing.T) {
	l, database := openTestLedger(t)
	c := seedCard(t, database, "LED-1")

	entered := time.Date(2011, 6, 1, 9, 0, 0, 0, time.UTC)
	if _, err := l.OpenInterval(c.ID, "Todo", entered); err != nil {
		t.Fatalf("OpenInterval: %v", err)
	}

	_, err := l.OpenInterval(c.ID, "Doing", entered.Add(time.Hour))
	if !errors.Is(err, ErrDuplicateOpenInterval) {
		t.Errorf("err = %v, want ErrDuplicateOpenInterval", err)
	}
}

func TestCloseIntervalIsIdempotent(t *testing.T) {
	l, database := openTestLedger(t)
	c := seedCard(t, database, "LED-2")

	entered := time.Date(2011, 6, 1, 9, 0, 0, 0, time.UTC)
	e, err := l.OpenInterval(c.ID, "Doing", entered)
	if err != nil {
		t.Fatalf("OpenInterval: %v", err)
	}

	exited := entered.Add(30 * time.Hour)
	if err := l.CloseInterval(e, exited); err != nil {
		t.Fatalf("CloseInterval: %v", err)
	}
	if e.CachedDuration == nil || *e.CachedDuration != 30 {
		t.Fatalf("CachedDuration = %v, want 30", e.CachedDuration)
	}

	// Closing again with the same instant changes nothing.
	if err := l.CloseInterval(e, exited); err != nil {
		t.Fatalf("second CloseInterval: %v", err)
	}
	if *e.CachedDuration != 30 {
		t.Errorf("CachedDuration = %d, want 30", *e.CachedDuration)
	}

	// Closing with a different instant is an invariant violation.
	if err := l.CloseInterval(e, exited.Add(time.Hour)); !errors.Is(err, ErrNotOpen) {
		t.Errorf("err = %v, want ErrNotOpen", err)
	}
}

func TestTransitionKeepsCoverageContiguous(t *testing.T) {
	l, database := openTestLedger(t)
	c := seedCard(t, database, "LED-3")

	t0 := time.Date(2011, 6, 1, 9, 0, 0, 0, time.UTC)
	if _, err := l.Transition(c.ID, "Todo", t0); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	t1 := t0.Add(24 * time.Hour)
	if _, err := l.Transition(c.ID, "Doing", t1); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	t2 := t1.Add(48 * time.Hour)
	if _, err := l.Transition(c.ID, "Done", t2); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	history, err := l.History(c.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history = %d entries, want 3", len(history))
	}

	// Newest first; each closed interval ends where the next begins.
	if history[0].State != "Done" || !history[0].IsOpen() {
		t.Errorf("head = %s open=%v, want open Done", history[0].State, history[0].IsOpen())
	}
	for i := 1; i < len(history); i++ {
		prev, next := history[i], history[i-1]
		if prev.ExitedAt == nil {
			t.Fatalf("%s interval left open", prev.State)
		}
		if !prev.ExitedAt.Equal(next.EnteredAt) {
			t.Errorf("%s exits %v but %s enters %v",
				prev.State, prev.ExitedAt, next.State, next.EnteredAt)
		}
	}

	// Transition into the current state is a no-op.
	e, err := l.Transition(c.ID, "Done", t2.Add(time.Hour))
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !e.EnteredAt.Equal(t2) {
		t.Errorf("re-entering current state must keep the open interval")
	}
}

func TestCurrentDurationDoesNotMutate(t *testing.T) {
	l, database := openTestLedger(t)
	c := seedCard(t, database, "LED-4")

	entered := time.Date(2011, 6, 1, 9, 0, 0, 0, time.UTC)
	e, err := l.OpenInterval(c.ID, "Doing", entered)
	if err != nil {
		t.Fatalf("OpenInterval: %v", err)
	}

	if got := l.CurrentDuration(e, entered.Add(5*time.Hour)); got != 5 {
		t.Errorf("CurrentDuration = %d, want 5", got)
	}

	stored, _ := database.GetStateLog(e.ID)
	if stored.CachedDuration != nil {
		t.Error("reading a live duration must not freeze it")
	}
}

func TestBlockedSubInterval(t *testing.T) {
	l, database := openTestLedger(t)
	c := seedCard(t, database, "LED-5")

	entered := time.Date(2011, 6, 1, 9, 0, 0, 0, time.UTC)
	e, err := l.OpenInterval(c.ID, "Doing", entered)
	if err != nil {
		t.Fatalf("OpenInterval: %v", err)
	}

	blockedAt := entered.Add(2 * time.Hour)
	if err := l.MarkBlocked(e, blockedAt, "waiting on ops"); err != nil {
		t.Fatalf("MarkBlocked: %v", err)
	}
	if !e.Blocked || !e.IsBlocked() {
		t.Fatal("entry should be blocked")
	}

	unblockedAt := blockedAt.Add(6 * time.Hour)
	if err := l.MarkUnblocked(e, unblockedAt); err != nil {
		t.Fatalf("MarkUnblocked: %v", err)
	}

	stored, _ := database.GetStateLog(e.ID)
	if stored.CachedBlockedDuration == nil || *stored.CachedBlockedDuration != 6 {
		t.Errorf("CachedBlockedDuration = %v, want 6", stored.CachedBlockedDuration)
	}
	if !stored.Blocked {
		t.Error("blocked flag records that the card was ever blocked")
	}

	// A second blocked span replaces the first one's bounds.
	again := unblockedAt.Add(time.Hour)
	if err := l.MarkBlocked(e, again, ""); err != nil {
		t.Fatalf("MarkBlocked: %v", err)
	}
	if e.UnblockedAt != nil || e.CachedBlockedDuration != nil {
		t.Error("new blocked span must reset the previous bounds")
	}
}

func TestCloseWhileBlockedEndsBlockedSpan(t *testing.T) {
	l, database := openTestLedger(t)
	c := seedCard(t, database, "LED-6")

	entered := time.Date(2011, 6, 1, 9, 0, 0, 0, time.UTC)
	e, _ := l.OpenInterval(c.ID, "Doing", entered)

	blockedAt := entered.Add(time.Hour)
	if err := l.MarkBlocked(e, blockedAt, ""); err != nil {
		t.Fatalf("MarkBlocked: %v", err)
	}

	exited := entered.Add(4 * time.Hour)
	if err := l.CloseInterval(e, exited); err != nil {
		t.Fatalf("CloseInterval: %v", err)
	}

	if e.UnblockedAt == nil || !e.UnblockedAt.Equal(exited) {
		t.Errorf("UnblockedAt = %v, want %v", e.UnblockedAt, exited)
	}
	if e.CachedBlockedDuration == nil || *e.CachedBlockedDuration != 3 {
		t.Errorf("CachedBlockedDuration = %v, want 3", e.CachedBlockedDuration)
	}
}
