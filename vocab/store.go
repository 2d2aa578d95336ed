// Package vocab stores the words a learner has committed from the camera and builds quizzes
// from them.
package vocab

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when no word has the requested ID.
	ErrNotFound = errors.New("word not found")
	// ErrEmptyTerm is returned when adding or updating a word without a term.
	ErrEmptyTerm = errors.New("word has no term")
)

// Word is a committed vocabulary entry.
type Word struct {
	ID            uuid.UUID `json:"id"`
	Term          string    `json:"term"`
	Meaning       string    `json:"meaning"`
	Pronunciation string    `json:"pronunciation,omitempty"`
	Example       string    `json:"example,omitempty"`
	Learned       bool      `json:"learned"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store persists words. List and Search return words in the order they were added.
type Store interface {
	// Add assigns an ID and creation time when they are zero and stores the word.
	Add(ctx context.Context, w Word) (Word, error)
	Get(ctx context.Context, id uuid.UUID) (Word, error)
	// Update replaces the stored word with the same ID.
	Update(ctx context.Context, w Word) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]Word, error)
	// Search returns words whose term or meaning contains query, ignoring case.
	// An empty query matches everything.
	Search(ctx context.Context, query string) ([]Word, error)
	ToggleLearned(ctx context.Context, id uuid.UUID) (Word, error)
	Close(ctx context.Context) error
}

func prepare(w Word, now time.Time) (Word, error) {
	w.Term = strings.TrimSpace(w.Term)
	if w.Term == "" {
		return Word{}, ErrEmptyTerm
	}
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	return w, nil
}

func matches(w Word, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(w.Term), query) ||
		strings.Contains(strings.ToLower(w.Meaning), query)
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
