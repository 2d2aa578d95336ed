package objectdetection

import (
	"context"
	"image"
	"image/color"
)

// simpleDetector converts an image to gray and then finds the connected components with values below a certain
// luminance threshold. threshold is between 0.0 and 256.0, with 256.0 being white, and 0.0 being black.
type simpleDetector struct {
	threshold float64
	label     string
}

// NewSimpleDetector creates a detector useful for local testing without a model. It looks for dark objects in
// the image and returns a normalized box around each connected component, all with score 1 and the given label.
func NewSimpleDetector(threshold float64, label string) Detector {
	sd := &simpleDetector{threshold: threshold, label: label}
	return sd.Inference
}

// Inference takes in an image frame and returns the detection bounding boxes found in the image.
func (sd *simpleDetector) Inference(ctx context.Context, img image.Image) ([]Detection, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return []Detection{}, nil
	}
	seen := make([]bool, width*height)
	queue := []image.Point{}
	detections := []Detection{}
	for i := bounds.Min.X; i < bounds.Max.X; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := bounds.Min.Y; j < bounds.Max.Y; j++ {
			pt := image.Point{i, j}
			indx := sd.index(pt, bounds)
			if seen[indx] {
				continue
			}
			if !sd.pass(img.At(i, j)) {
				seen[indx] = true
				continue
			}
			seen[indx] = true
			queue = append(queue, pt)
			x0, y0, x1, y1 := pt.X, pt.Y, pt.X, pt.Y // the bounding box of the segment
			for len(queue) != 0 {
				newPt := queue[0]
				queue = queue[1:]
				if newPt.X < x0 {
					x0 = newPt.X
				}
				if newPt.X > x1 {
					x1 = newPt.X
				}
				if newPt.Y < y0 {
					y0 = newPt.Y
				}
				if newPt.Y > y1 {
					y1 = newPt.Y
				}
				queue = append(queue, sd.getNeighbors(newPt, img, seen)...)
			}
			// pixel boxes are inclusive, so the far edge is one past the last pixel
			box := NewBox(
				float64(x0-bounds.Min.X)/float64(width),
				float64(y0-bounds.Min.Y)/float64(height),
				float64(x1+1-bounds.Min.X)/float64(width),
				float64(y1+1-bounds.Min.Y)/float64(height),
			)
			detections = append(detections, NewDetection(box, 1.0, sd.label))
		}
	}
	return detections, nil
}

func (sd *simpleDetector) index(pt image.Point, bounds image.Rectangle) int {
	return (pt.Y-bounds.Min.Y)*bounds.Dx() + (pt.X - bounds.Min.X)
}

func (sd *simpleDetector) pass(c color.Color) bool {
	lum := float64(color.GrayModel.Convert(c).(color.Gray).Y)
	return lum < sd.threshold
}

func (sd *simpleDetector) getNeighbors(pt image.Point, img image.Image, seen []bool) []image.Point {
	bounds := img.Bounds()
	neighbors := make([]image.Point, 0, 4)
	fourPoints := []image.Point{{pt.X, pt.Y - 1}, {pt.X, pt.Y + 1}, {pt.X - 1, pt.Y}, {pt.X + 1, pt.Y}}
	for _, p := range fourPoints {
		if !p.In(bounds) {
			continue
		}
		indx := sd.index(p, bounds)
		if seen[indx] {
			continue
		}
		seen[indx] = true
		if sd.pass(img.At(p.X, p.Y)) {
			neighbors = append(neighbors, p)
		}
	}
	return neighbors
}
