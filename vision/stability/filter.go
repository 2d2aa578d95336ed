// Package stability latches a recognized label only after it repeats across inference cycles.
package stability

import (
	"fmt"
	"math"

	"github.com/lexicam/lexicam/lexicon"
)

// DefaultStableNeeded is the number of consecutive matching cycles required to publish.
const DefaultStableNeeded = 2

// Candidate is what one inference cycle proposes: a lexicon entry, a raw label that did not
// resolve, or nothing at all (the zero value).
type Candidate struct {
	Entry    lexicon.Entry
	Raw      string
	Resolved bool
}

// Resolved returns a candidate for a lexicon entry.
func Resolved(e lexicon.Entry) Candidate {
	return Candidate{Entry: e, Raw: e.Term, Resolved: true}
}

// Unresolved returns a candidate for a raw label that is shown as is.
func Unresolved(raw string) Candidate {
	return Candidate{Raw: raw}
}

// Term returns the canonical term, or the raw label when unresolved.
func (c Candidate) Term() string {
	if c.Resolved {
		return c.Entry.Term
	}
	return c.Raw
}

// Empty reports whether the candidate is "no candidate".
func (c Candidate) Empty() bool {
	return !c.Resolved && c.Raw == ""
}

func (c Candidate) same(o Candidate) bool {
	return c.Resolved == o.Resolved && c.Term() == o.Term()
}

// Label is the published result shown to the user.
type Label struct {
	Term          string  `json:"term"`
	Translation   string  `json:"translation"`
	Pronunciation string  `json:"pronunciation"`
	Confidence    float64 `json:"confidence"`
	Resolved      bool    `json:"resolved"`
}

func (l Label) String() string {
	return fmt.Sprintf("%s (%s) %.2f", l.Term, l.Translation, l.Confidence)
}

// State is the phase of a Filter.
type State int

const (
	// Cold means nothing has been published yet.
	Cold State = iota
	// Tracking means a label has been published and the tracked candidate has not yet repeated
	// enough times to replace or refresh it.
	Tracking
	// Latched means the tracked candidate reached the threshold and is the published label.
	Latched
)

func (s State) String() string {
	switch s {
	case Cold:
		return "cold"
	case Tracking:
		return "tracking"
	case Latched:
		return "latched"
	}
	return "unknown"
}

// Filter is the per-session latch. It is not safe for concurrent use; the owning session
// serializes calls.
type Filter struct {
	stableNeeded int

	tracked    Candidate
	confidence float64
	count      int

	published bool
	last      Label
}

// NewFilter returns a cold filter. stableNeeded below 1 is treated as 1.
func NewFilter(stableNeeded int) *Filter {
	if stableNeeded < 1 {
		stableNeeded = 1
	}
	return &Filter{stableNeeded: stableNeeded}
}

// Observe folds one cycle's candidate into the filter and returns the label to publish, if any.
//
// The same candidate as last cycle increments the streak and keeps the higher confidence. Any
// other candidate, including "no candidate", restarts the streak at 1 with its own confidence.
// A label is published when the streak reaches the threshold, or on the very first
// observation of a session so the display is never left blank. "No candidate" is never
// published and a label identical to the last published one is not published again.
func (f *Filter) Observe(c Candidate, confidence float64) (Label, bool) {
	if math.IsNaN(confidence) {
		confidence = 0
	}
	if f.count > 0 && c.same(f.tracked) {
		f.count++
		f.confidence = math.Max(f.confidence, confidence)
	} else {
		f.tracked = c
		f.confidence = confidence
		f.count = 1
	}

	if c.Empty() {
		return Label{}, false
	}
	if f.count < f.stableNeeded && f.published {
		return Label{}, false
	}
	label := Label{
		Term:       c.Term(),
		Confidence: f.confidence,
		Resolved:   c.Resolved,
	}
	if c.Resolved {
		label.Translation = c.Entry.Translation
		label.Pronunciation = c.Entry.Pronunciation
	}
	if f.published && label == f.last {
		return Label{}, false
	}
	f.published = true
	f.last = label
	return label, true
}

// Published returns the last published label.
func (f *Filter) Published() (Label, bool) {
	return f.last, f.published
}

// Streak returns the tracked candidate, its latched confidence and how many consecutive
// cycles it has been seen.
func (f *Filter) Streak() (Candidate, float64, int) {
	return f.tracked, f.confidence, f.count
}

// State returns the current phase.
func (f *Filter) State() State {
	switch {
	case !f.published:
		return Cold
	case f.count >= f.stableNeeded && !f.tracked.Empty() && f.tracked.Term() == f.last.Term:
		return Latched
	default:
		return Tracking
	}
}

// Reset returns the filter to cold.
func (f *Filter) Reset() {
	*f = Filter{stableNeeded: f.stableNeeded}
}
