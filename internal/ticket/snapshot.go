package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dori/kardo/internal/model"
)

// ErrUnknownTicket is returned when the snapshot has no entry for a key.
var ErrUnknownTicket = fmt.Errorf("ticket: key not in snapshot")

// snapshotRecord is one exported ticket in the snapshot file.
type snapshotRecord struct {
	Title     string     `json:"title"`
	Category  string     `json:"category"`
	StartDate *time.Time `json:"start_date,omitempty"`
	DoneDate  *time.Time `json:"done_date,omitempty"`
}

// Snapshot serves refreshes from a JSON export of the tracker, keyed
// by card key. It covers air-gapped setups where the tracker is only
// reachable as a periodic dump.
type Snapshot struct {
	records map[string]snapshotRecord
}

// LoadSnapshot reads a tracker export from path.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ticket snapshot: %w", err)
	}

	records := make(map[string]snapshotRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse ticket snapshot: %w", err)
	}

	return &Snapshot{records: records}, nil
}

// Refresh implements System from the loaded export.
func (s *Snapshot) Refresh(ctx context.Context, card *model.Card) (Update, error) {
	rec, ok := s.records[card.Key]
	if !ok {
		return Update{}, fmt.Errorf("%w: %s", ErrUnknownTicket, card.Key)
	}
	return Update{
		Title:     rec.Title,
		Category:  rec.Category,
		StartDate: rec.StartDate,
		DoneDate:  rec.DoneDate,
	}, nil
}

// Len reports how many tickets the snapshot holds.
func (s *Snapshot) Len() int {
	return len(s.records)
}
