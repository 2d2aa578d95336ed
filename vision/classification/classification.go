// Package classification defines the single-label outputs of an image classifier.
package classification

import (
	"context"
	"image"
	"sort"
)

// Classification is one label and its confidence.
type Classification interface {
	Label() string
	Score() float64
}

// Classifications is a list of classification results.
type Classifications []Classification

// Classifier returns up to n classifications for an image, ordered by descending score.
type Classifier func(ctx context.Context, img image.Image, n int) (Classifications, error)

// NewClassification creates a simple classification from a score and label.
func NewClassification(score float64, label string) Classification {
	return &classification2D{score: score, label: label}
}

type classification2D struct {
	score float64
	label string
}

func (c *classification2D) Score() float64 {
	return c.score
}

func (c *classification2D) Label() string {
	return c.label
}

// TopN returns the n highest scoring classifications, highest first. Equal scores keep their
// input order.
func (cls Classifications) TopN(n int) Classifications {
	sorted := make(Classifications, len(cls))
	copy(sorted, cls)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score() > sorted[j].Score()
	})
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
