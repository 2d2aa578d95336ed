package session

import (
	"image"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Orientation is how the captured image is rotated relative to the device held upright.
type Orientation int

// The orientations a capture source can report.
const (
	OrientationUp Orientation = iota
	OrientationDown
	OrientationLeft
	OrientationRight
)

func (o Orientation) String() string {
	switch o {
	case OrientationUp:
		return "up"
	case OrientationDown:
		return "down"
	case OrientationLeft:
		return "left"
	case OrientationRight:
		return "right"
	default:
		return "unknown"
	}
}

// ParseOrientation is the inverse of Orientation.String.
func ParseOrientation(s string) (Orientation, error) {
	for _, o := range []Orientation{OrientationUp, OrientationDown, OrientationLeft, OrientationRight} {
		if strings.EqualFold(strings.TrimSpace(s), o.String()) {
			return o, nil
		}
	}
	return OrientationUp, errors.Errorf("unknown orientation %q", s)
}

// Frame is one captured image handed to the scheduler.
type Frame struct {
	Image       image.Image
	Orientation Orientation
	CapturedAt  time.Time
}
