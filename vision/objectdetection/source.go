package objectdetection

import (
	"context"
	"image"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Raw is a detection as it is recorded on disk.
type Raw struct {
	Name       string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Label returns the class name.
func (r Raw) Label() string { return r.Name }

// Score returns the confidence.
func (r Raw) Score() float64 { return r.Confidence }

// BoundingBox returns the normalized box.
func (r Raw) BoundingBox() Box { return r.Box }

// Cycle is the outcome of one recorded inference call.
type Cycle struct {
	Detections []Detection
	Err        error
}

// Source plays back recorded inference cycles, one per call, in place of a live model.
type Source struct {
	mutex  sync.Mutex
	cycles []Cycle
	next   int
}

// NewSource returns a Source that plays back the given cycles in order.
func NewSource(cycles []Cycle) *Source {
	return &Source{cycles: cycles}
}

// Detect ignores the image and returns the next recorded cycle. It returns io.EOF once every
// cycle has been played.
func (s *Source) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
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
	return c.Detections, nil
}

// Detector returns Detect as a Detector.
func (s *Source) Detector() Detector {
	return s.Detect
}

// Remaining returns how many cycles have not been played yet.
func (s *Source) Remaining() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.cycles) - s.next
}
