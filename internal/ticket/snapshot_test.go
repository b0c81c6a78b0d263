package ticket

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dori/kardo/internal/model"
)

func writeSnapshot(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tickets.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	return path
}

func TestSnapshotRefresh(t *testing.T) {
	path := writeSnapshot(t, `{
		"CMSAD-1": {
			"title": "banana stand repairs",
			"category": "Bug",
			"start_date": "2011-05-09T00:00:00Z",
			"done_date": "2011-06-12T00:00:00Z"
		},
		"CMSAD-2": {
			"title": "light the lighthouse",
			"category": "Feature"
		}
	}`)

	snapshot, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snapshot.Len() != 2 {
		t.Fatalf("Len = %d, want 2", snapshot.Len())
	}

	card, err := model.NewCard("CMSAD-1", "placeholder", "",
		time.Date(2011, 5, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewCard: %v", err)
	}

	u, err := snapshot.Refresh(context.Background(), card)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if u.Title != "banana stand repairs" || u.Category != "Bug" {
		t.Errorf("unexpected update: %+v", u)
	}
	if u.StartDate == nil || !u.StartDate.Equal(time.Date(2011, 5, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartDate = %v, want 2011-05-09", u.StartDate)
	}
	if u.DoneDate == nil {
		t.Error("DoneDate = nil, want 2011-06-12")
	}
}

func TestSnapshotRefreshUnknownKey(t *testing.T) {
	path := writeSnapshot(t, `{}`)

	snapshot, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	card, err := model.NewCard("GOB-1", "placeholder", "",
		time.Date(2011, 5, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewCard: %v", err)
	}

	if _, err := snapshot.Refresh(context.Background(), card); !errors.Is(err, ErrUnknownTicket) {
		t.Errorf("err = %v, want ErrUnknownTicket", err)
	}
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
