package ticket

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dori/kardo/internal/db"
	"github.com/dori/kardo/internal/model"
)

// fakeTracker records which cards were refreshed and can fail the
// first N attempts per card.
type fakeTracker struct {
	mu        sync.Mutex
	refreshed map[string]int
	failFirst int
	update    Update
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{refreshed: make(map[string]int)}
}

func (f *fakeTracker) Refresh(ctx context.Context, card *model.Card) (Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed[card.Key]++
	if f.refreshed[card.Key] <= f.failFirst {
		return Update{}, errors.New("tracker unavailable")
	}
	return f.update, nil
}

func (f *fakeTracker) calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshed[key]
}

func openTestSyncer(t *testing.T, tracker System, cfg Config) (*Syncer, *db.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database, tracker, cfg), database
}

func seedCard(t *testing.T, database *db.DB, key string, syncedAt *time.Time, done bool) *model.Card {
	t.Helper()
	c, err := model.NewCard(key, "banana stand", "Feature",
		time.Date(2011, 5, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewCard: %v", err)
	}
	if done {
		start := time.Date(2011, 5, 9, 0, 0, 0, 0, time.UTC)
		doneDate := time.Date(2011, 6, 12, 0, 0, 0, 0, time.UTC)
		c.StartDate = &start
		c.DoneDate = &doneDate
	}
	c.TicketSyncedAt = syncedAt
	if err := database.CreateCard(c); err != nil {
		t.Fatalf("CreateCard(%s): %v", key, err)
	}
	return c
}

func TestRefreshCardWithinThresholdIsSkipped(t *testing.T) {
	tracker := newFakeTracker()
	s, database := openTestSyncer(t, tracker, Config{Threshold: time.Hour})

	recent := time.Now().Add(-10 * time.Minute)
	c := seedCard(t, database, "SYNC-1", &recent, false)

	outcome, err := s.RefreshCard(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("RefreshCard: %v", err)
	}
	if outcome != Skipped {
		t.Errorf("outcome = %v, want Skipped", outcome)
	}
	if tracker.calls("SYNC-1") != 0 {
		t.Error("tracker must not be called inside the cooldown window")
	}
}

func TestRefreshCardStampsSyncedAt(t *testing.T) {
	tracker := newFakeTracker()
	tracker.update = Update{Title: "updated from tracker"}
	s, database := openTestSyncer(t, tracker, Config{Threshold: time.Hour})

	old := time.Now().Add(-2 * time.Hour)
	c := seedCard(t, database, "SYNC-2", &old, false)

	outcome, err := s.RefreshCard(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("RefreshCard: %v", err)
	}
	if outcome != Refreshed {
		t.Fatalf("outcome = %v, want Refreshed", outcome)
	}

	got, _ := database.GetCard(c.ID)
	if got.Title != "updated from tracker" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.TicketSyncedAt == nil || !got.TicketSyncedAt.After(old) {
		t.Errorf("TicketSyncedAt = %v, want a fresh stamp", got.TicketSyncedAt)
	}
}

func TestRefreshCardRetriesFlakyTracker(t *testing.T) {
	tracker := newFakeTracker()
	tracker.failFirst = 2
	s, database := openTestSyncer(t, tracker, Config{Attempts: 3})

	c := seedCard(t, database, "SYNC-3", nil, false)

	outcome, err := s.RefreshCard(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("RefreshCard: %v", err)
	}
	if outcome != Refreshed {
		t.Errorf("outcome = %v, want Refreshed after retries", outcome)
	}
	if tracker.calls("SYNC-3") != 3 {
		t.Errorf("tracker calls = %d, want 3", tracker.calls("SYNC-3"))
	}
}

func TestRefreshMissingCard(t *testing.T) {
	s, _ := openTestSyncer(t, newFakeTracker(), Config{})

	outcome, err := s.RefreshCard(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("RefreshCard: %v", err)
	}
	if outcome != Missing {
		t.Errorf("outcome = %v, want Missing", outcome)
	}
}

func TestQueueUpdatesBatches(t *testing.T) {
	tracker := newFakeTracker()
	s, database := openTestSyncer(t, tracker, Config{
		Threshold:   time.Hour,
		ActiveLimit: 2,
		DoneLimit:   1,
		Concurrency: 2,
	})

	stale := time.Now().Add(-3 * time.Hour)
	recent := time.Now().Add(-5 * time.Minute)

	// Never synced: always queued.
	seedCard(t, database, "NEW-1", nil, false)
	seedCard(t, database, "NEW-2", nil, false)
	// Stale active: queued up to the limit.
	seedCard(t, database, "OLD-1", &stale, false)
	seedCard(t, database, "OLD-2", &stale, false)
	seedCard(t, database, "OLD-3", &stale, false)
	// Stale done: queued up to the (smaller) limit.
	seedCard(t, database, "DONE-1", &stale, true)
	seedCard(t, database, "DONE-2", &stale, true)
	// Fresh: not queued at all.
	seedCard(t, database, "FRESH-1", &recent, false)

	stats, err := s.QueueUpdates(context.Background())
	if err != nil {
		t.Fatalf("QueueUpdates: %v", err)
	}

	if stats.New != 2 {
		t.Errorf("New = %d, want 2", stats.New)
	}
	if stats.Active != 2 {
		t.Errorf("Active = %d, want 2 (limit)", stats.Active)
	}
	if stats.Done != 1 {
		t.Errorf("Done = %d, want 1 (limit)", stats.Done)
	}
	if stats.Refreshed != 5 {
		t.Errorf("Refreshed = %d, want 5", stats.Refreshed)
	}
	if tracker.calls("FRESH-1") != 0 {
		t.Error("fresh card must not be refreshed")
	}
}
