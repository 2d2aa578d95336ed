package tracking

import (
	"testing"

	"github.com/google/uuid"
	"go.viam.com/test"

	"github.com/lexicam/lexicam/lexicon"
	od "github.com/lexicam/lexicam/vision/objectdetection"
)

func det(label string, score, x, y, w, h float64) od.Detection {
	return od.NewDetection(od.Box{X: x, Y: y, Width: w, Height: h}, score, label)
}

func TestMergeOverlappingDetections(t *testing.T) {
	tr := NewTracker(DefaultIoUThreshold, DefaultSmoothing, nil)

	first := tr.Update([]od.Detection{det("cup", 0.5, 0, 0, 0.5, 0.5)})
	test.That(t, first, test.ShouldHaveLength, 1)
	key := first[0].Key
	// new tracks are not smoothed
	test.That(t, first[0].Box, test.ShouldResemble, od.Box{X: 0, Y: 0, Width: 0.5, Height: 0.5})
	test.That(t, first[0].Confidence, test.ShouldEqual, 0.5)

	second := tr.Update([]od.Detection{det("cup", 1.0, 0.02, 0.02, 0.5, 0.5)})
	test.That(t, second, test.ShouldHaveLength, 1)
	test.That(t, second[0].Key, test.ShouldEqual, key)
	test.That(t, second[0].Hits, test.ShouldEqual, 2)
	// 20% of the way from the old box to the new one
	test.That(t, second[0].Box.X, test.ShouldAlmostEqual, 0.004)
	test.That(t, second[0].Box.Y, test.ShouldAlmostEqual, 0.004)
	test.That(t, second[0].Box.Width, test.ShouldAlmostEqual, 0.5)
	test.That(t, second[0].Box.Height, test.ShouldAlmostEqual, 0.5)
	test.That(t, second[0].Confidence, test.ShouldAlmostEqual, 0.6)
}

func TestNinetyFivePercentOverlapIsOneTrack(t *testing.T) {
	tr := NewTracker(DefaultIoUThreshold, DefaultSmoothing, nil)
	a := od.Box{X: 0.2, Y: 0.2, Width: 0.4, Height: 0.4}
	b := od.Box{X: 0.2, Y: 0.2, Width: 0.4, Height: 0.38}
	test.That(t, od.IoU(a, b), test.ShouldAlmostEqual, 0.95)

	tr.Update([]od.Detection{od.NewDetection(a, 0.8, "book")})
	out := tr.Update([]od.Detection{od.NewDetection(b, 0.8, "book")})
	test.That(t, out, test.ShouldHaveLength, 1)
	test.That(t, tr.Tracks(), test.ShouldHaveLength, 1)
}

func TestUnmatchedTracksAreDropped(t *testing.T) {
	tr := NewTracker(DefaultIoUThreshold, DefaultSmoothing, nil)
	out := tr.Update([]od.Detection{
		det("cup", 0.8, 0.1, 0.1, 0.2, 0.2),
		det("pen", 0.8, 0.6, 0.6, 0.2, 0.2),
	})
	test.That(t, out, test.ShouldHaveLength, 2)
	penKey := out[1].Key

	out = tr.Update([]od.Detection{det("cup", 0.8, 0.1, 0.1, 0.2, 0.2)})
	test.That(t, out, test.ShouldHaveLength, 1)
	test.That(t, out[0].Label, test.ShouldEqual, "cup")

	// reappearing after one missed cycle is a new track
	out = tr.Update([]od.Detection{
		det("cup", 0.8, 0.1, 0.1, 0.2, 0.2),
		det("pen", 0.8, 0.6, 0.6, 0.2, 0.2),
	})
	test.That(t, out, test.ShouldHaveLength, 2)
	test.That(t, out[1].Key, test.ShouldNotEqual, penKey)
	test.That(t, out[1].Hits, test.ShouldEqual, 1)

	out = tr.Update(nil)
	test.That(t, out, test.ShouldHaveLength, 0)
}

func TestLabelsMustMatchExactly(t *testing.T) {
	tr := NewTracker(DefaultIoUThreshold, DefaultSmoothing, nil)
	first := tr.Update([]od.Detection{det("cup", 0.8, 0.1, 0.1, 0.2, 0.2)})
	out := tr.Update([]od.Detection{det("mug", 0.8, 0.1, 0.1, 0.2, 0.2)})
	test.That(t, out, test.ShouldHaveLength, 1)
	test.That(t, out[0].Key, test.ShouldNotEqual, first[0].Key)
	test.That(t, out[0].Label, test.ShouldEqual, "mug")
}

func TestIoUThresholdIsExclusive(t *testing.T) {
	tr := NewTracker(DefaultIoUThreshold, DefaultSmoothing, nil)
	// overlap 0.02, union 0.2 - 0.02 = 0.18 -> IoU ~0.111
	first := tr.Update([]od.Detection{det("cup", 0.8, 0, 0, 0.1, 1)})
	out := tr.Update([]od.Detection{det("cup", 0.8, 0.08, 0, 0.1, 1)})
	test.That(t, out[0].Key, test.ShouldEqual, first[0].Key)

	// exactly at the threshold is not a match
	tr = NewTracker(0.5, DefaultSmoothing, nil)
	first = tr.Update([]od.Detection{det("cup", 0.8, 0, 0, 0.5, 0.5)})
	half := od.Box{X: 0, Y: 0, Width: 0.5, Height: 0.25}
	test.That(t, od.IoU(first[0].Box, half), test.ShouldEqual, 0.5)
	out = tr.Update([]od.Detection{od.NewDetection(half, 0.8, "cup")})
	test.That(t, out[0].Key, test.ShouldNotEqual, first[0].Key)
}

func TestEachTrackClaimedOnce(t *testing.T) {
	tr := NewTracker(DefaultIoUThreshold, DefaultSmoothing, nil)
	first := tr.Update([]od.Detection{det("cup", 0.8, 0.4, 0.4, 0.2, 0.2)})

	out := tr.Update([]od.Detection{
		det("cup", 0.8, 0.41, 0.41, 0.2, 0.2),
		det("cup", 0.8, 0.4, 0.4, 0.2, 0.2),
	})
	test.That(t, out, test.ShouldHaveLength, 2)
	// the first detection in input order claims the track even though the second overlaps more
	test.That(t, out[0].Key, test.ShouldEqual, first[0].Key)
	test.That(t, out[1].Key, test.ShouldNotEqual, first[0].Key)
}

func TestGreedyPicksHighestIoUAndEarlierOnTie(t *testing.T) {
	tr := NewTracker(DefaultIoUThreshold, DefaultSmoothing, nil)
	keys := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	i := 0
	tr.newKey = func() uuid.UUID {
		k := keys[i]
		i++
		return k
	}
	tr.Update([]od.Detection{
		det("cup", 0.8, 0.1, 0.1, 0.2, 0.2),
		det("cup", 0.8, 0.5, 0.5, 0.2, 0.2),
	})
	out := tr.Update([]od.Detection{det("cup", 0.8, 0.48, 0.48, 0.2, 0.2)})
	test.That(t, out, test.ShouldHaveLength, 1)
	test.That(t, out[0].Key, test.ShouldEqual, keys[1])

	// two identical tracks tie; the earlier one wins
	tr = NewTracker(DefaultIoUThreshold, DefaultSmoothing, nil)
	twins := tr.Update([]od.Detection{
		det("cup", 0.8, 0.3, 0.3, 0.2, 0.2),
		det("cup", 0.8, 0.3, 0.3, 0.2, 0.2),
	})
	out = tr.Update([]od.Detection{det("cup", 0.8, 0.3, 0.3, 0.2, 0.2)})
	test.That(t, out[0].Key, test.ShouldEqual, twins[0].Key)
}

func TestTracksAreTaggedWithEntries(t *testing.T) {
	r, err := lexicon.Default()
	test.That(t, err, test.ShouldBeNil)
	tr := NewTracker(DefaultIoUThreshold, DefaultSmoothing, r)

	out := tr.Update([]od.Detection{
		det("cell phone", 0.8, 0.1, 0.1, 0.2, 0.2),
		det("spaceship", 0.8, 0.6, 0.6, 0.2, 0.2),
	})
	test.That(t, out[0].Entry, test.ShouldNotBeNil)
	test.That(t, out[0].Term(), test.ShouldEqual, "phone")
	test.That(t, out[1].Entry, test.ShouldBeNil)
	test.That(t, out[1].Term(), test.ShouldEqual, "spaceship")

	// the entry is carried on match
	out = tr.Update([]od.Detection{det("cell phone", 0.8, 0.1, 0.1, 0.2, 0.2)})
	test.That(t, out[0].Term(), test.ShouldEqual, "phone")

	tr.Reset()
	test.That(t, tr.Tracks(), test.ShouldHaveLength, 0)
}
