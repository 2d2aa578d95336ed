package session

import (
	"image"

	"github.com/disintegration/imaging"
)

// Upright returns the frame's image rotated so that inference sees it the way the user held the
// device. Up frames are returned as is.
func Upright(frame Frame) image.Image {
	img := frame.Image
	if img == nil {
		return nil
	}
	switch frame.Orientation {
	case OrientationDown:
		return imaging.Rotate180(img)
	case OrientationLeft:
		// the top of the scene is on the left edge; rotate clockwise
		return imaging.Rotate270(img)
	case OrientationRight:
		// the top of the scene is on the right edge; rotate counterclockwise
		return imaging.Rotate90(img)
	case OrientationUp:
		return img
	default:
		return img
	}
}
