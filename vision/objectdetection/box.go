package objectdetection

import (
	"fmt"
	"math"
)

// Box is an axis-aligned rectangle in normalized frame coordinates: X and Y locate the origin
// corner and Width and Height extend from it, all as fractions of the frame size. Which corner
// the origin is and which way Y grows is decided by the inference service; every operation here
// is agnostic to it.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewBox returns the box spanning from (x0, y0) to (x1, y1).
func NewBox(x0, y0, x1, y1 float64) Box {
	return Box{X: math.Min(x0, x1), Y: math.Min(y0, y1), Width: math.Abs(x1 - x0), Height: math.Abs(y1 - y0)}
}

// MaxX is the far edge along X.
func (b Box) MaxX() float64 {
	return b.X + b.Width
}

// MaxY is the far edge along Y.
func (b Box) MaxY() float64 {
	return b.Y + b.Height
}

// Area returns Width*Height.
func (b Box) Area() float64 {
	return b.Width * b.Height
}

// Center returns the midpoint of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains reports whether the point lies inside the box. The origin edges are inclusive and
// the far edges exclusive.
func (b Box) Contains(x, y float64) bool {
	return x >= b.X && x < b.MaxX() && y >= b.Y && y < b.MaxY()
}

// Intersect returns the overlapping region of two boxes, or the zero Box when they do not overlap.
func (b Box) Intersect(o Box) Box {
	x0 := math.Max(b.X, o.X)
	y0 := math.Max(b.Y, o.Y)
	x1 := math.Min(b.MaxX(), o.MaxX())
	y1 := math.Min(b.MaxY(), o.MaxY())
	if x1 <= x0 || y1 <= y0 {
		return Box{}
	}
	return Box{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// IoU returns the intersection-over-union of two boxes, in [0, 1]. A zero-area union yields 0.
func IoU(a, b Box) float64 {
	inter := a.Intersect(b).Area()
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Lerp moves every coordinate of b toward target by factor t, where t = 0 keeps b and t = 1
// returns target.
func (b Box) Lerp(target Box, t float64) Box {
	return Box{
		X:      Lerp(b.X, target.X, t),
		Y:      Lerp(b.Y, target.Y, t),
		Width:  Lerp(b.Width, target.Width, t),
		Height: Lerp(b.Height, target.Height, t),
	}
}

// Lerp linearly interpolates from old toward next by factor t.
func Lerp(old, next, t float64) float64 {
	return old + (next-old)*t
}

// Valid reports whether the box has finite coordinates, positive size, and lies within the
// unit frame, allowing for float rounding.
func (b Box) Valid() bool {
	const eps = 1e-6
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if b.Width <= 0 || b.Height <= 0 {
		return false
	}
	return b.X >= -eps && b.Y >= -eps && b.MaxX() <= 1+eps && b.MaxY() <= 1+eps
}

func (b Box) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f x %.3f)", b.X, b.Y, b.Width, b.Height)
}
