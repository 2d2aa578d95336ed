package vocab

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MemoryStore is a Store that keeps words in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	clk   clock.Clock
	words []Word
}

// NewMemoryStore returns an empty MemoryStore. A nil clock means the wall clock.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryStore{clk: clk}
}

// Add stores w at the end of the list.
func (ms *MemoryStore) Add(ctx context.Context, w Word) (Word, error) {
	w, err := prepare(w, ms.clk.Now())
	if err != nil {
		return Word{}, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.words = append(ms.words, w)
	return w, nil
}

func (ms *MemoryStore) indexOf(id uuid.UUID) int {
	_, idx, ok := lo.FindIndexOf(ms.words, func(w Word) bool { return w.ID == id })
	if !ok {
		return -1
	}
	return idx
}

// Get returns the word with the given ID.
func (ms *MemoryStore) Get(ctx context.Context, id uuid.UUID) (Word, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	idx := ms.indexOf(id)
	if idx < 0 {
		return Word{}, ErrNotFound
	}
	return ms.words[idx], nil
}

// Update replaces the word with w.ID, keeping its position and creation time.
func (ms *MemoryStore) Update(ctx context.Context, w Word) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	idx := ms.indexOf(w.ID)
	if idx < 0 {
		return ErrNotFound
	}
	w, err := prepare(w, ms.words[idx].CreatedAt)
	if err != nil {
		return err
	}
	w.CreatedAt = ms.words[idx].CreatedAt
	ms.words[idx] = w
	return nil
}

// Delete removes the word with the given ID.
func (ms *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	idx := ms.indexOf(id)
	if idx < 0 {
		return ErrNotFound
	}
	ms.words = append(ms.words[:idx], ms.words[idx+1:]...)
	return nil
}

// List returns a copy of every word.
func (ms *MemoryStore) List(ctx context.Context) ([]Word, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]Word{}, ms.words...), nil
}

// Search returns the words whose term or meaning contains query.
func (ms *MemoryStore) Search(ctx context.Context, query string) ([]Word, error) {
	query = normalizeQuery(query)
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return lo.Filter(ms.words, func(w Word, _ int) bool { return matches(w, query) }), nil
}

// ToggleLearned flips the learned flag and returns the updated word.
func (ms *MemoryStore) ToggleLearned(ctx context.Context, id uuid.UUID) (Word, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	idx := ms.indexOf(id)
	if idx < 0 {
		return Word{}, ErrNotFound
	}
	ms.words[idx].Learned = !ms.words[idx].Learned
	return ms.words[idx], nil
}

// Close does nothing.
func (ms *MemoryStore) Close(ctx context.Context) error {
	return nil
}
