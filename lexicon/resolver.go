// Package lexicon resolves raw classifier labels to vocabulary entries.
package lexicon

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Entry is one vocabulary word: the canonical term, its translation and pronunciation, and the
// surface forms a classifier may report for it.
type Entry struct {
	Term          string   `json:"term"`
	Translation   string   `json:"translation"`
	Pronunciation string   `json:"pronunciation,omitempty"`
	Synonyms      []string `json:"synonyms,omitempty"`
}

// Keys returns the distinct normalized lookup keys of the entry, term first.
func (e Entry) Keys() []string {
	keys := make([]string, 0, len(e.Synonyms)+1)
	keys = append(keys, Normalize(e.Term))
	for _, syn := range e.Synonyms {
		keys = append(keys, Normalize(syn))
	}
	return lo.Uniq(keys)
}

func (e Entry) clone() Entry {
	e.Synonyms = append([]string(nil), e.Synonyms...)
	return e
}

// Resolver maps raw labels to entries. It is immutable once built and safe for concurrent use.
type Resolver struct {
	entries []Entry
	direct  map[string]*Entry
}

// NewResolver indexes the entries by every normalized term and synonym. It returns an error if
// an entry has no term or if two entries claim the same key, since one of them would then be
// unreachable.
func NewResolver(entries []Entry) (*Resolver, error) {
	r := &Resolver{
		entries: make([]Entry, len(entries)),
		direct:  make(map[string]*Entry, len(entries)*4),
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Term) == "" {
			return nil, errors.Errorf("lexicon entry %d has no term", i)
		}
		r.entries[i] = e.clone()
	}
	for i := range r.entries {
		e := &r.entries[i]
		for _, key := range e.Keys() {
			if key == "" {
				return nil, errors.Errorf("lexicon entry %q has a blank synonym", e.Term)
			}
			if other, ok := r.direct[key]; ok {
				return nil, errors.Errorf("lexicon key %q is claimed by both %q and %q", key, other.Term, e.Term)
			}
			r.direct[key] = e
		}
	}
	return r, nil
}

// LoadJSON reads a JSON array of entries and builds a Resolver from it.
func LoadJSON(rd io.Reader) (*Resolver, error) {
	var entries []Entry
	if err := json.NewDecoder(rd).Decode(&entries); err != nil {
		return nil, errors.Wrap(err, "cannot decode lexicon")
	}
	return NewResolver(entries)
}

// Resolve returns the entry for a raw label. It tries, in order: the normalized label, each
// comma, underscore or whitespace separated token of it, and finally every synonym set. A miss
// is not an error; callers show the raw label instead.
func (r *Resolver) Resolve(raw string) (Entry, bool) {
	key := Normalize(raw)
	if key == "" {
		return Entry{}, false
	}
	if e, ok := r.direct[key]; ok {
		return e.clone(), true
	}
	for _, token := range tokenize(key) {
		if e, ok := r.direct[Normalize(token)]; ok {
			return e.clone(), true
		}
	}
	for _, e := range r.entries {
		if lo.Contains(e.Synonyms, key) {
			return e.clone(), true
		}
	}
	return Entry{}, false
}

// Entries returns a copy of the table in load order.
func (r *Resolver) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.clone())
	}
	return out
}

// Len returns the number of entries.
func (r *Resolver) Len() int {
	return len(r.entries)
}
