// Package tracking associates raw detections across inference cycles and smooths them.
package tracking

import (
	"github.com/google/uuid"

	"github.com/lexicam/lexicam/lexicon"
	"github.com/lexicam/lexicam/vision/objectdetection"
)

const (
	// DefaultIoUThreshold is the overlap a detection must exceed to continue a track.
	DefaultIoUThreshold = 0.1
	// DefaultSmoothing is the fraction a matched track moves toward its new observation.
	DefaultSmoothing = 0.2
)

// Track is one object followed across cycles.
type Track struct {
	Key        uuid.UUID           `json:"key"`
	Label      string              `json:"label"`
	Entry      *lexicon.Entry      `json:"entry,omitempty"`
	Confidence float64             `json:"confidence"`
	Box        objectdetection.Box `json:"box"`
	Hits       int                 `json:"hits"`
}

// Term returns the resolved term of the track, or its raw label.
func (t Track) Term() string {
	if t.Entry != nil {
		return t.Entry.Term
	}
	return t.Label
}

// Tracker holds the track table. It is not safe for concurrent use; the owning session
// serializes calls.
type Tracker struct {
	iouThreshold float64
	smoothing    float64
	resolver     *lexicon.Resolver
	newKey       func() uuid.UUID

	tracks []Track
}

// NewTracker returns an empty tracker. resolver may be nil, in which case tracks carry only
// their raw label.
func NewTracker(iouThreshold, smoothing float64, resolver *lexicon.Resolver) *Tracker {
	return &Tracker{
		iouThreshold: iouThreshold,
		smoothing:    smoothing,
		resolver:     resolver,
		newKey:       uuid.New,
	}
}

// Update folds one cycle of detections into the track table and returns the new table, in the
// order of raw.
//
// Each detection is matched to the unclaimed track with the same label and the highest IoU
// above the threshold; on a tie the earlier track wins. A matched track moves toward the
// detection by the smoothing factor. An unmatched detection starts a new track as is. Tracks
// that no detection claims are dropped.
func (tr *Tracker) Update(raw []objectdetection.Detection) []Track {
	claimed := make([]bool, len(tr.tracks))
	next := make([]Track, 0, len(raw))
	for _, det := range raw {
		best, bestIoU := -1, tr.iouThreshold
		for j, old := range tr.tracks {
			if claimed[j] || old.Label != det.Label() {
				continue
			}
			if iou := objectdetection.IoU(old.Box, det.BoundingBox()); iou > bestIoU {
				best, bestIoU = j, iou
			}
		}
		if best < 0 {
			next = append(next, tr.newTrack(det))
			continue
		}
		claimed[best] = true
		matched := tr.tracks[best]
		matched.Box = matched.Box.Lerp(det.BoundingBox(), tr.smoothing)
		matched.Confidence = objectdetection.Lerp(matched.Confidence, det.Score(), tr.smoothing)
		matched.Hits++
		next = append(next, matched)
	}
	tr.tracks = next
	return tr.Tracks()
}

func (tr *Tracker) newTrack(det objectdetection.Detection) Track {
	t := Track{
		Key:        tr.newKey(),
		Label:      det.Label(),
		Confidence: det.Score(),
		Box:        det.BoundingBox(),
		Hits:       1,
	}
	if tr.resolver != nil {
		if e, ok := tr.resolver.Resolve(det.Label()); ok {
			t.Entry = &e
		}
	}
	return t
}

// Tracks returns a copy of the current table.
func (tr *Tracker) Tracks() []Track {
	out := make([]Track, len(tr.tracks))
	copy(out, tr.tracks)
	return out
}

// Reset drops every track.
func (tr *Tracker) Reset() {
	tr.tracks = nil
}
