// Package selection picks the tracked object the user is pointing the camera at.
package selection

import (
	"math"

	"github.com/lexicam/lexicam/vision/objectdetection"
	"github.com/lexicam/lexicam/vision/tracking"
)

const (
	// DefaultRadius is how far from the frame center a box center may be and still be selected.
	DefaultRadius = 0.15
	// DefaultSmoothing is the fraction the selected box moves toward a same-label selection.
	DefaultSmoothing = 0.25

	centerX = 0.5
	centerY = 0.5

	containsBase   = 10000.0
	containsConf   = 1000.0
	containsArea   = 100.0
	nearbyScale    = 100.0
	distanceOffset = 0.001
)

// Selector scores tracks by how central they are.
type Selector struct {
	radius float64
}

// NewSelector returns a Selector with the given eligibility radius.
func NewSelector(radius float64) *Selector {
	return &Selector{radius: radius}
}

// Score returns the score of a track and whether it is eligible at all. A box containing the
// frame center always scores above 10000, which no merely nearby box can reach.
func (s *Selector) Score(t tracking.Track) (float64, bool) {
	if t.Box.Contains(centerX, centerY) {
		return containsBase + t.Confidence*containsConf + t.Box.Area()*containsArea, true
	}
	bx, by := t.Box.Center()
	d := math.Hypot(bx-centerX, by-centerY)
	if s.radius <= 0 || d >= s.radius {
		return 0, false
	}
	falloff := 1 - d/s.radius
	return (1 / (d + distanceOffset)) * falloff * falloff * nearbyScale * t.Confidence * t.Box.Area(), true
}

// Select returns the highest scoring eligible track. On a tie the earlier track wins.
func (s *Selector) Select(tracks []tracking.Track) (tracking.Track, bool) {
	best, bestScore := -1, math.Inf(-1)
	for i, t := range tracks {
		score, ok := s.Score(t)
		if !ok {
			continue
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return tracking.Track{}, false
	}
	return tracks[best], true
}

// Smoother steadies the selection across cycles. It is not safe for concurrent use.
type Smoother struct {
	factor   float64
	previous tracking.Track
	has      bool
}

// NewSmoother returns a Smoother with the given blend factor.
func NewSmoother(factor float64) *Smoother {
	return &Smoother{factor: factor}
}

// Smooth folds this cycle's selection into the previous one. A new label switches at once, the
// same label moves the previous box and confidence toward the new ones, and no selection clears
// the state.
func (s *Smoother) Smooth(sel tracking.Track, ok bool) (tracking.Track, bool) {
	if !ok {
		s.Reset()
		return tracking.Track{}, false
	}
	if !s.has || s.previous.Label != sel.Label {
		s.previous, s.has = sel, true
		return sel, true
	}
	smoothed := sel
	smoothed.Box = s.previous.Box.Lerp(sel.Box, s.factor)
	smoothed.Confidence = objectdetection.Lerp(s.previous.Confidence, sel.Confidence, s.factor)
	s.previous = smoothed
	return smoothed, true
}

// Reset forgets the previous selection.
func (s *Smoother) Reset() {
	s.previous, s.has = tracking.Track{}, false
}
