package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dori/kardo/internal/model"
)

// CreateBoard persists a new board. The slug is derived from the name
// if the caller has not set one.
func (db *DB) CreateBoard(b *model.Board) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Slug == "" {
		b.Slug = model.Slugify(b.Name)
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now

	categories, err := json.Marshal(b.Categories)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO boards (id, name, slug, categories, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, b.ID, b.Name, b.Slug, string(categories), b.CreatedAt, b.UpdatedAt)
	return err
}

// SaveBoard writes a board back, re-deriving the slug from the name.
func (db *DB) SaveBoard(b *model.Board) error {
	b.Slug = model.Slugify(b.Name)
	b.UpdatedAt = time.Now()

	categories, err := json.Marshal(b.Categories)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		UPDATE boards SET name = ?, slug = ?, categories = ?, updated_at = ?
		WHERE id = ?
	`, b.Name, b.Slug, string(categories), b.UpdatedAt, b.ID)
	return err
}

// GetBoard returns a board by ID, or nil if it does not exist.
func (db *DB) GetBoard(id string) (*model.Board, error) {
	row := db.QueryRow(`
		SELECT id, name, slug, categories, created_at, updated_at
		FROM boards WHERE id = ?
	`, id)
	return scanBoard(row)
}

// GetBoardBySlug returns a board by slug, or nil if it does not exist.
func (db *DB) GetBoardBySlug(slug string) (*model.Board, error) {
	row := db.QueryRow(`
		SELECT id, name, slug, categories, created_at, updated_at
		FROM boards WHERE slug = ?
	`, slug)
	return scanBoard(row)
}

// GetBoards returns all boards ordered by name.
func (db *DB) GetBoards() ([]model.Board, error) {
	rows, err := db.Query(`
		SELECT id, name, slug, categories, created_at, updated_at
		FROM boards ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boards []model.Board
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, err
		}
		boards = append(boards, *b)
	}
	return boards, rows.Err()
}

// AddCardToBoard records board membership. Adding twice is a no-op;
// membership is shared, not owned.
func (db *DB) AddCardToBoard(boardID, cardID string) error {
	_, err := db.Exec(`
		INSERT OR IGNORE INTO board_cards (board_id, card_id) VALUES (?, ?)
	`, boardID, cardID)
	return err
}

// RemoveCardFromBoard drops a membership without touching the card.
func (db *DB) RemoveCardFromBoard(boardID, cardID string) error {
	_, err := db.Exec(`
		DELETE FROM board_cards WHERE board_id = ? AND card_id = ?
	`, boardID, cardID)
	return err
}

// BoardCards returns the cards on a board, newest first.
func (db *DB) BoardCards(boardID string) ([]model.Card, error) {
	rows, err := db.Query(`
		SELECT `+cardPrefixedColumns+`
		FROM cards c
		JOIN board_cards bc ON c.id = bc.card_id
		WHERE bc.board_id = ?
		ORDER BY c.created_at DESC
	`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCards(rows)
}

const cardPrefixedColumns = `c.id, c.key, c.title, c.category, c.backlog_date,
	       c.start_date, c.done_date, c.cycle_time, c.lead_time,
	       c.ticket_synced_at, c.created_at, c.updated_at`

func scanBoard(s scanner) (*model.Board, error) {
	var b model.Board
	var categories sql.NullString

	err := s.Scan(&b.ID, &b.Name, &b.Slug, &categories, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if categories.Valid && categories.String != "" {
		if err := json.Unmarshal([]byte(categories.String), &b.Categories); err != nil {
			return nil, err
		}
	}

	return &b, nil
}
