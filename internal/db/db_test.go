package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dori/kardo/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedCard(t *testing.T, db *DB, key string, backlog time.Time, start, done *time.Time) *model.Card {
	t.Helper()
	c, err := model.NewCard(key, "There's always money in the banana stand", "Feature", backlog)
	if err != nil {
		t.Fatalf("NewCard: %v", err)
	}
	c.StartDate = start
	c.DoneDate = done
	if err := db.CreateCard(c); err != nil {
		t.Fatalf("CreateCard(%s): %v", key, err)
	}
	return c
}

func TestCreateCardEnforcesKeyUniqueness(t *testing.T) {
	db := openTestDB(t)

	seedCard(t, db, "CMSIF-199", date(2011, 6, 11), nil, nil)

	dup, err := model.NewCard("CMSIF-199", "You gotta lock that down", "Bug", date(2011, 6, 12))
	if err != nil {
		t.Fatalf("NewCard: %v", err)
	}
	if err := db.CreateCard(dup); err != ErrDuplicateKey {
		t.Errorf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestGetCardAbsenceIsNil(t *testing.T) {
	db := openTestDB(t)

	c, err := db.GetCard("nope")
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if c != nil {
		t.Errorf("GetCard = %+v, want nil", c)
	}

	c, err = db.GetCardByKey("NOPE-1")
	if err != nil {
		t.Fatalf("GetCardByKey: %v", err)
	}
	if c != nil {
		t.Errorf("GetCardByKey = %+v, want nil", c)
	}
}

func TestCardRoundTrip(t *testing.T) {
	db := openTestDB(t)

	start := date(2011, 5, 9)
	done := date(2011, 6, 12)
	c := seedCard(t, db, "CMSAD-1", date(2011, 5, 2), &start, &done)

	got, err := db.GetCardByKey("CMSAD-1")
	if err != nil {
		t.Fatalf("GetCardByKey: %v", err)
	}
	if got == nil {
		t.Fatal("card not found")
	}
	if got.ID != c.ID {
		t.Errorf("ID = %s, want %s", got.ID, c.ID)
	}
	if got.StartDate == nil || !got.StartDate.Equal(start) {
		t.Errorf("StartDate = %v, want %v", got.StartDate, start)
	}
	// CreateCard froze the durations for a card arriving complete.
	if got.CachedCycleTime == nil || *got.CachedCycleTime != 25 {
		t.Errorf("CachedCycleTime = %v, want 25", got.CachedCycleTime)
	}
	if got.CachedLeadTime == nil || *got.CachedLeadTime != 30 {
		t.Errorf("CachedLeadTime = %v, want 30", got.CachedLeadTime)
	}
}

func TestSaveCardFreezesDurationsOnce(t *testing.T) {
	db := openTestDB(t)

	start := date(2011, 5, 9)
	c := seedCard(t, db, "CMSLUCILLE-2", date(2011, 5, 2), &start, nil)
	if c.CachedCycleTime != nil {
		t.Fatal("in-flight card must have no cached cycle time")
	}

	done := date(2011, 6, 12)
	c.DoneDate = &done
	if err := db.SaveCard(c); err != nil {
		t.Fatalf("SaveCard: %v", err)
	}

	got, _ := db.GetCard(c.ID)
	if got.CachedCycleTime == nil || *got.CachedCycleTime != 25 {
		t.Fatalf("CachedCycleTime = %v, want 25", got.CachedCycleTime)
	}

	// A later edit to done_date does not move the frozen values.
	laterDone := date(2011, 7, 1)
	got.DoneDate = &laterDone
	if err := db.SaveCard(got); err != nil {
		t.Fatalf("SaveCard after edit: %v", err)
	}
	got, _ = db.GetCard(c.ID)
	if *got.CachedCycleTime != 25 || *got.CachedLeadTime != 30 {
		t.Errorf("frozen durations changed: cycle=%d lead=%d",
			*got.CachedCycleTime, *got.CachedLeadTime)
	}
}

func TestCardsInProgressTimeMachine(t *testing.T) {
	db := openTestDB(t)

	// 5 cards backlogged 2011-05-30; 2 of them started 05-31 and
	// finished 06-02.
	backlog := date(2011, 5, 30)
	start := date(2011, 5, 31)
	done := date(2011, 6, 2)
	for i := 0; i < 3; i++ {
		seedCard(t, db, "WIP-"+string(rune('1'+i)), backlog, nil, nil)
	}
	seedCard(t, db, "DONE-1", backlog, &start, &done)
	seedCard(t, db, "DONE-2", backlog, &start, &done)

	tests := []struct {
		asOf time.Time
		want int
	}{
		{date(2011, 5, 30), 5},
		{date(2011, 5, 31), 5},
		{date(2011, 6, 2), 3},
		{date(2011, 6, 12), 3},
	}
	for _, tt := range tests {
		cards, err := db.CardsInProgress(tt.asOf)
		if err != nil {
			t.Fatalf("CardsInProgress(%s): %v", tt.asOf.Format("2006-01-02"), err)
		}
		if len(cards) != tt.want {
			t.Errorf("CardsInProgress(%s) = %d cards, want %d",
				tt.asOf.Format("2006-01-02"), len(cards), tt.want)
		}
	}
}

func TestCardsDoneInRange(t *testing.T) {
	db := openTestDB(t)

	start := date(2011, 5, 9)
	doneJune := date(2011, 6, 12)
	doneMay := date(2011, 5, 15)
	seedCard(t, db, "JUNE-1", date(2011, 5, 2), &start, &doneJune)
	seedCard(t, db, "MAY-1", date(2011, 5, 2), &start, &doneMay)

	cards, err := db.CardsDoneInRange(date(2011, 6, 1), date(2011, 6, 30))
	if err != nil {
		t.Fatalf("CardsDoneInRange: %v", err)
	}
	if len(cards) != 1 || cards[0].Key != "JUNE-1" {
		t.Errorf("june completions = %v", cards)
	}

	if _, err := db.CardsDoneInRange(date(2011, 6, 30), date(2011, 6, 1)); err == nil {
		t.Error("inverted range should error")
	}
}

func TestStateLogRoundTrip(t *testing.T) {
	db := openTestDB(t)

	c := seedCard(t, db, "LOG-1", date(2011, 5, 2), nil, nil)

	e := &model.StateLogEntry{
		CardID:    c.ID,
		State:     "Doing",
		EnteredAt: time.Date(2011, 6, 1, 9, 0, 0, 0, time.UTC),
		Message:   "picked up",
	}
	if err := db.InsertStateLog(e); err != nil {
		t.Fatalf("InsertStateLog: %v", err)
	}

	open, err := db.OpenStateLog(c.ID)
	if err != nil {
		t.Fatalf("OpenStateLog: %v", err)
	}
	if open == nil || open.ID != e.ID {
		t.Fatalf("OpenStateLog = %+v, want entry %s", open, e.ID)
	}
	if open.CachedDuration != nil {
		t.Error("open interval must not have a frozen duration")
	}

	exited := e.EnteredAt.Add(30 * time.Hour)
	open.ExitedAt = &exited
	if err := db.SaveStateLog(open); err != nil {
		t.Fatalf("SaveStateLog: %v", err)
	}

	got, _ := db.GetStateLog(e.ID)
	if got.CachedDuration == nil || *got.CachedDuration != 30 {
		t.Errorf("CachedDuration = %v, want 30", got.CachedDuration)
	}

	none, err := db.OpenStateLog(c.ID)
	if err != nil {
		t.Fatalf("OpenStateLog: %v", err)
	}
	if none != nil {
		t.Errorf("card should have no open interval, got %+v", none)
	}
}

func TestStateLogEnteredAtDefaults(t *testing.T) {
	db := openTestDB(t)
	c := seedCard(t, db, "LOG-2", date(2011, 5, 2), nil, nil)

	e := &model.StateLogEntry{CardID: c.ID, State: "Todo"}
	before := time.Now()
	if err := db.InsertStateLog(e); err != nil {
		t.Fatalf("InsertStateLog: %v", err)
	}
	if e.EnteredAt.Before(before.Add(-time.Second)) {
		t.Errorf("EnteredAt = %v, should default to save time", e.EnteredAt)
	}
}

func TestBoardMembership(t *testing.T) {
	db := openTestDB(t)

	b := model.NewBoard("Operation Hot Mother",
		[]string{"Numbness", "Short-term memory loss", "Reduced sex-drive"})
	if err := db.CreateBoard(b); err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	if b.Slug != "operation-hot-mother" {
		t.Errorf("Slug = %q", b.Slug)
	}

	got, err := db.GetBoardBySlug("operation-hot-mother")
	if err != nil {
		t.Fatalf("GetBoardBySlug: %v", err)
	}
	if got == nil || len(got.Categories) != 3 {
		t.Fatalf("board = %+v", got)
	}

	c1 := seedCard(t, db, "B-1", date(2011, 5, 2), nil, nil)
	c2 := seedCard(t, db, "B-2", date(2011, 5, 3), nil, nil)

	for _, id := range []string{c1.ID, c2.ID, c1.ID} { // duplicate add is a no-op
		if err := db.AddCardToBoard(b.ID, id); err != nil {
			t.Fatalf("AddCardToBoard: %v", err)
		}
	}

	cards, err := db.BoardCards(b.ID)
	if err != nil {
		t.Fatalf("BoardCards: %v", err)
	}
	if len(cards) != 2 {
		t.Errorf("BoardCards = %d cards, want 2", len(cards))
	}

	if err := db.RemoveCardFromBoard(b.ID, c1.ID); err != nil {
		t.Fatalf("RemoveCardFromBoard: %v", err)
	}
	cards, _ = db.BoardCards(b.ID)
	if len(cards) != 1 || cards[0].Key != "B-2" {
		t.Errorf("after removal: %v", cards)
	}
}
