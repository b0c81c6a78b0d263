package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/dori/kardo/internal/model"
)

const stateLogColumns = `id, card_id, state, entered_at, exited_at, blocked,
	       blocked_at, unblocked_at, blocked_duration, duration, message,
	       created_at, updated_at`

// InsertStateLog persists a new state log entry. EnteredAt defaults to
// the save time when unset, matching the entry invariant.
func (db *DB) InsertStateLog(e *model.StateLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.EnteredAt.IsZero() {
		e.EnteredAt = now
	}
	e.Freeze()

	_, err := db.Exec(`
		INSERT INTO state_logs (`+stateLogColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.CardID, e.State, e.EnteredAt, fromTimePtr(e.ExitedAt),
		boolToInt(e.Blocked), fromTimePtr(e.BlockedAt), fromTimePtr(e.UnblockedAt),
		fromIntPtr(e.CachedBlockedDuration), fromIntPtr(e.CachedDuration),
		e.Message, e.CreatedAt, e.UpdatedAt)
	return err
}

// SaveStateLog writes an entry back. The duration freezes on the first
// save where both endpoints are present; a frozen value is stored
// unchanged forever after.
func (db *DB) SaveStateLog(e *model.StateLogEntry) error {
	e.UpdatedAt = time.Now()
	e.Freeze()

	_, err := db.Exec(`
		UPDATE state_logs
		SET state = ?, entered_at = ?, exited_at = ?, blocked = ?, blocked_at = ?,
		    unblocked_at = ?, blocked_duration = ?, duration = ?, message = ?,
		    updated_at = ?
		WHERE id = ?
	`, e.State, e.EnteredAt, fromTimePtr(e.ExitedAt), boolToInt(e.Blocked),
		fromTimePtr(e.BlockedAt), fromTimePtr(e.UnblockedAt),
		fromIntPtr(e.CachedBlockedDuration), fromIntPtr(e.CachedDuration),
		e.Message, e.UpdatedAt, e.ID)
	return err
}

// GetStateLog returns an entry by ID, or nil if it does not exist.
func (db *DB) GetStateLog(id string) (*model.StateLogEntry, error) {
	row := db.QueryRow(`SELECT `+stateLogColumns+` FROM state_logs WHERE id = ?`, id)
	e, err := scanStateLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// StateLogsForCard returns a card's full history, newest record first.
func (db *DB) StateLogsForCard(cardID string) ([]model.StateLogEntry, error) {
	rows, err := db.Query(`
		SELECT `+stateLogColumns+` FROM state_logs
		WHERE card_id = ?
		ORDER BY created_at DESC
	`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStateLogs(rows)
}

// OpenStateLog returns the card's currently open interval, or nil when
// the card occupies no state.
func (db *DB) OpenStateLog(cardID string) (*model.StateLogEntry, error) {
	row := db.QueryRow(`
		SELECT `+stateLogColumns+` FROM state_logs
		WHERE card_id = ? AND exited_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, cardID)
	e, err := scanStateLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// OpenStateLogs returns every open interval across all cards.
func (db *DB) OpenStateLogs() ([]model.StateLogEntry, error) {
	rows, err := db.Query(`
		SELECT ` + stateLogColumns + ` FROM state_logs
		WHERE exited_at IS NULL
		ORDER BY entered_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStateLogs(rows)
}

// StateLogsForState returns all intervals spent in one state, newest first.
func (db *DB) StateLogsForState(state string) ([]model.StateLogEntry, error) {
	rows, err := db.Query(`
		SELECT `+stateLogColumns+` FROM state_logs
		WHERE state = ?
		ORDER BY created_at DESC
	`, state)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStateLogs(rows)
}

// Helper functions

func scanStateLogs(rows *sql.Rows) ([]model.StateLogEntry, error) {
	var entries []model.StateLogEntry
	for rows.Next() {
		e, err := scanStateLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanStateLog(s scanner) (*model.StateLogEntry, error) {
	var e model.StateLogEntry
	var exitedAt, blockedAt, unblockedAt sql.NullTime
	var blockedDuration, duration sql.NullInt64
	var blocked int
	var message sql.NullString

	err := s.Scan(
		&e.ID, &e.CardID, &e.State, &e.EnteredAt, &exitedAt, &blocked,
		&blockedAt, &unblockedAt, &blockedDuration, &duration, &message,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.ExitedAt = toTimePtr(exitedAt)
	e.Blocked = blocked == 1
	e.BlockedAt = toTimePtr(blockedAt)
	e.UnblockedAt = toTimePtr(unblockedAt)
	e.CachedBlockedDuration = toIntPtr(blockedDuration)
	e.CachedDuration = toIntPtr(duration)
	e.Message = message.String

	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
