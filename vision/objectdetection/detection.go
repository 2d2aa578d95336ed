// Package objectdetection defines the raw detections produced by an inference service and the
// functions used to filter them before tracking.
package objectdetection

import (
	"context"
	"fmt"
	"image"

	"github.com/pkg/errors"
)

// Detection is a single object found in one inference cycle.
type Detection interface {
	BoundingBox() Box
	Score() float64
	Label() string
}

// Detector returns the detections found in an image.
type Detector func(context.Context, image.Image) ([]Detection, error)

// Preprocessor prepares an image before it is handed to a Detector.
type Preprocessor func(image.Image) image.Image

// NewDetection creates a simple detection from a box, score, and label.
func NewDetection(box Box, score float64, label string) Detection {
	return &detection2D{boundingBox: box, score: score, label: label}
}

type detection2D struct {
	boundingBox Box
	score       float64
	label       string
}

func (d *detection2D) BoundingBox() Box {
	return d.boundingBox
}

func (d *detection2D) Score() float64 {
	return d.score
}

func (d *detection2D) Label() string {
	return d.label
}

func (d *detection2D) String() string {
	return fmt.Sprintf("Label: %s, Score: %.2f, Box: %s", d.label, d.score, d.boundingBox)
}

// Build zips up a preprocessor, detector and postprocessor into one Detector. Only the
// detector is required.
func Build(prep Preprocessor, det Detector, post Postprocessor) (Detector, error) {
	if det == nil {
		return nil, errors.New("object detection pipeline must have a Detector")
	}
	if prep == nil {
		prep = func(img image.Image) image.Image { return img }
	}
	if post == nil {
		post = func(inp []Detection) []Detection { return inp }
	}
	return func(ctx context.Context, img image.Image) ([]Detection, error) {
		dets, err := det(ctx, prep(img))
		if err != nil {
			return nil, err
		}
		return post(dets), nil
	}, nil
}
