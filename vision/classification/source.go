package classification

import (
	"context"
	"image"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Raw is a classification as it is recorded on disk.
type Raw struct {
	Name       string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Label returns the class name.
func (r Raw) Label() string { return r.Name }

// Score returns the confidence.
func (r Raw) Score() float64 { return r.Confidence }

// Cycle is the outcome of one recorded classifier call.
type Cycle struct {
	Classifications Classifications
	Err             error
}

// Source plays back recorded classifier cycles, one per call.
type Source struct {
	mutex  sync.Mutex
	cycles []Cycle
	next   int
}

// NewSource returns a Source that plays back the given cycles in order.
func NewSource(cycles []Cycle) *Source {
	return &Source{cycles: cycles}
}

// Classify ignores the image and returns up to n classifications of the next recorded cycle.
// It returns io.EOF once every cycle has been played.
func (s *Source) Classify(ctx context.Context, img image.Image, n int) (Classifications, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.next >= len(s.cycles) {
		return nil, io.EOF
	}
	c := s.cycles[s.next]
	s.next++
	if c.Err != nil {
		return nil, errors.Wrapf(c.Err, "recorded cycle %d", s.next-1)
	}
	return c.Classifications.TopN(n), nil
}

// Classifier returns Classify as a Classifier.
func (s *Source) Classifier() Classifier {
	return s.Classify
}

// Remaining returns how many cycles have not been played yet.
func (s *Source) Remaining() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.cycles) - s.next
}
