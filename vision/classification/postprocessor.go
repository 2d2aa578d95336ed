package classification

import (
	"strings"

	"github.com/samber/lo"
)

// Postprocessor defines a function that filters/modifies on an incoming array of Classifications.
type Postprocessor func(Classifications) Classifications

// NewExcludeLabelFilter returns a function that filters out classifications with one of the
// given labels, such as labels too broad to teach a word from. Matching ignores case.
func NewExcludeLabelFilter(labels []string) Postprocessor {
	theLabels := lowerSet(labels)
	return func(in Classifications) Classifications {
		if len(theLabels) < 1 {
			return in
		}
		return lo.Reject(in, func(c Classification, _ int) bool {
			_, ok := theLabels[strings.ToLower(strings.TrimSpace(c.Label()))]
			return ok
		})
	}
}

// NewTopNFilter returns a function that keeps the n highest scoring classifications.
func NewTopNFilter(n int) Postprocessor {
	return func(in Classifications) Classifications {
		return in.TopN(n)
	}
}

func lowerSet(labels []string) map[string]struct{} {
	return lo.SliceToMap(labels, func(l string) (string, struct{}) {
		return strings.ToLower(strings.TrimSpace(l)), struct{}{}
	})
}
