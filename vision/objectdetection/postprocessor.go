package objectdetection

import (
	"math"
	"strings"
)

// Postprocessor defines a function that filters/modifies on an incoming array of Detections.
type Postprocessor func([]Detection) []Detection

// NewAreaFilter returns a function that filters out detections below a certain normalized area.
func NewAreaFilter(area float64) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if d.BoundingBox().Area() >= area {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewScoreFilter returns a function that filters out detections below a certain confidence.
func NewScoreFilter(conf float64) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if d.Score() >= conf {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewGeometryFilter returns a function that drops detections that cannot be tracked: boxes
// that are not finite, have no area, or fall outside the unit frame, scores outside [0, 1],
// and blank labels.
func NewGeometryFilter() Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			score := d.Score()
			if math.IsNaN(score) || score < 0 || score > 1 {
				continue
			}
			if strings.TrimSpace(d.Label()) == "" {
				continue
			}
			if !d.BoundingBox().Valid() {
				continue
			}
			out = append(out, d)
		}
		return out
	}
}

// Chain applies the postprocessors in order.
func Chain(posts ...Postprocessor) Postprocessor {
	return func(in []Detection) []Detection {
		for _, p := range posts {
			if p != nil {
				in = p(in)
			}
		}
		return in
	}
}
