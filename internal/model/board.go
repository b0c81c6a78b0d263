package model

import (
	"strings"
	"time"
	"unicode"
)

// Board is a named grouping of cards with a fixed set of category
// labels. Membership is shared: a card may sit on several boards, and
// a board never owns a card's lifecycle.
type Board struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	Categories []string  `json:"categories,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Loaded relationship (not stored in the boards table).
	Cards []Card `json:"cards,omitempty"`
}

// NewBoard returns a board with its slug derived from the name.
func NewBoard(name string, categories []string) *Board {
	return &Board{
		Name:       name,
		Slug:       Slugify(name),
		Categories: categories,
	}
}

// Rename updates the name and re-derives the slug.
func (b *Board) Rename(name string) {
	b.Name = name
	b.Slug = Slugify(name)
}

// Slugify lowercases, turns spaces into hyphens, and strips punctuation.
// "Operation Hot Mother" becomes "operation-hot-mother".
func Slugify(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			sb.WriteRune('-')
		}
	}
	// Collapse runs of hyphens left by consecutive spaces.
	slug := sb.String()
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}
