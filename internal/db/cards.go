package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/dori/kardo/internal/calendar"
	"github.com/dori/kardo/internal/model"
)

// ErrDuplicateKey is returned when a card's key is already taken.
var ErrDuplicateKey = errors.New("db: card key already exists")

const cardColumns = `id, key, title, category, backlog_date, start_date, done_date,
	       cycle_time, lead_time, ticket_synced_at, created_at, updated_at`

// CreateCard persists a new card. The key uniqueness constraint is
// enforced here, at the storage boundary.
func (db *DB) CreateCard(c *model.Card) error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	// Freeze durations if the card arrives already completed
	// (e.g. imported from the ticket system).
	if err := c.Finalize(); err != nil {
		return err
	}

	_, err := db.Exec(`
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Key, c.Title, c.Category, c.BacklogDate,
		fromTimePtr(c.StartDate), fromTimePtr(c.DoneDate),
		fromIntPtr(c.CachedCycleTime), fromIntPtr(c.CachedLeadTime),
		fromTimePtr(c.TicketSyncedAt), c.CreatedAt, c.UpdatedAt)

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrDuplicateKey
	}
	return err
}

// SaveCard writes a card back. Cycle and lead time freeze on the save
// where the done date first appears; once frozen they are stored as-is
// and never recomputed.
func (db *DB) SaveCard(c *model.Card) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := c.Finalize(); err != nil {
		return err
	}
	c.UpdatedAt = time.Now()

	_, err := db.Exec(`
		UPDATE cards
		SET key = ?, title = ?, category = ?, backlog_date = ?, start_date = ?,
		    done_date = ?, cycle_time = ?, lead_time = ?, ticket_synced_at = ?,
		    updated_at = ?
		WHERE id = ?
	`, c.Key, c.Title, c.Category, c.BacklogDate,
		fromTimePtr(c.StartDate), fromTimePtr(c.DoneDate),
		fromIntPtr(c.CachedCycleTime), fromIntPtr(c.CachedLeadTime),
		fromTimePtr(c.TicketSyncedAt), c.UpdatedAt, c.ID)

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrDuplicateKey
	}
	return err
}

// GetCard returns a card by ID, or nil if it does not exist.
func (db *DB) GetCard(id string) (*model.Card, error) {
	row := db.QueryRow(`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// GetCardByKey returns a card by its human key, or nil if it does not exist.
func (db *DB) GetCardByKey(key string) (*model.Card, error) {
	row := db.QueryRow(`SELECT `+cardColumns+` FROM cards WHERE key = ?`, key)
	c, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// GetCards returns all cards, newest first.
func (db *DB) GetCards() ([]model.Card, error) {
	rows, err := db.Query(`SELECT ` + cardColumns + ` FROM cards ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCards(rows)
}

// CardsInProgress returns cards that were in progress as of the given
// date: backlogged on or before it and not done by end of that day.
// All comparisons are at day granularity.
func (db *DB) CardsInProgress(asOf time.Time) ([]model.Card, error) {
	nextDay := calendar.Day(asOf).AddDate(0, 0, 1)

	rows, err := db.Query(`
		SELECT `+cardColumns+` FROM cards
		WHERE backlog_date < ?
		  AND (done_date IS NULL OR done_date >= ?)
		ORDER BY backlog_date
	`, nextDay, nextDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCards(rows)
}

// CardsDoneInRange returns cards completed within [start, end], at day
// granularity, inclusive on both sides.
func (db *DB) CardsDoneInRange(start, end time.Time) ([]model.Card, error) {
	if calendar.Day(end).Before(calendar.Day(start)) {
		return nil, calendar.ErrInvalidRange
	}
	lo := calendar.Day(start)
	hi := calendar.Day(end).AddDate(0, 0, 1)

	rows, err := db.Query(`
		SELECT `+cardColumns+` FROM cards
		WHERE done_date IS NOT NULL AND done_date >= ? AND done_date < ?
		ORDER BY done_date
	`, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCards(rows)
}

// CardsDoneThrough returns all cards completed on or before the given date.
func (db *DB) CardsDoneThrough(d time.Time) ([]model.Card, error) {
	hi := calendar.Day(d).AddDate(0, 0, 1)

	rows, err := db.Query(`
		SELECT `+cardColumns+` FROM cards
		WHERE done_date IS NOT NULL AND done_date < ?
		ORDER BY done_date
	`, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCards(rows)
}

// CardsNeverSynced returns cards the ticket system has never refreshed.
func (db *DB) CardsNeverSynced() ([]model.Card, error) {
	rows, err := db.Query(`
		SELECT ` + cardColumns + ` FROM cards
		WHERE ticket_synced_at IS NULL
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCards(rows)
}

// CardsStaleActive returns in-flight cards whose last refresh is older
// than the cutoff, oldest refresh first.
func (db *DB) CardsStaleActive(cutoff time.Time, limit int) ([]model.Card, error) {
	rows, err := db.Query(`
		SELECT `+cardColumns+` FROM cards
		WHERE ticket_synced_at IS NOT NULL AND ticket_synced_at <= ?
		  AND done_date IS NULL
		ORDER BY ticket_synced_at
		LIMIT ?
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCards(rows)
}

// CardsStaleDone returns completed cards whose last refresh is older
// than the cutoff, oldest refresh first.
func (db *DB) CardsStaleDone(cutoff time.Time, limit int) ([]model.Card, error) {
	rows, err := db.Query(`
		SELECT `+cardColumns+` FROM cards
		WHERE ticket_synced_at IS NOT NULL AND ticket_synced_at <= ?
		  AND done_date IS NOT NULL
		ORDER BY ticket_synced_at
		LIMIT ?
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCards(rows)
}

// DeleteCard removes a card and, via cascade, its state log entries and
// board memberships. Administrative action; metrics never delete.
func (db *DB) DeleteCard(id string) error {
	_, err := db.Exec(`DELETE FROM cards WHERE id = ?`, id)
	return err
}

// Helper functions

func scanCards(rows *sql.Rows) ([]model.Card, error) {
	var cards []model.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCard(s scanner) (*model.Card, error) {
	var c model.Card
	var category sql.NullString
	var startDate, doneDate, syncedAt sql.NullTime
	var cycleTime, leadTime sql.NullInt64

	err := s.Scan(
		&c.ID, &c.Key, &c.Title, &category, &c.BacklogDate,
		&startDate, &doneDate, &cycleTime, &leadTime, &syncedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Category = category.String
	c.StartDate = toTimePtr(startDate)
	c.DoneDate = toTimePtr(doneDate)
	c.TicketSyncedAt = toTimePtr(syncedAt)
	c.CachedCycleTime = toIntPtr(cycleTime)
	c.CachedLeadTime = toIntPtr(leadTime)

	return &c, nil
}

func fromTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func toTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func fromIntPtr(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func toIntPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}
