package session

import (
	"context"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.viam.com/test"

	"github.com/lexicam/lexicam/config"
	"github.com/lexicam/lexicam/logging"
	"github.com/lexicam/lexicam/vision/classification"
	od "github.com/lexicam/lexicam/vision/objectdetection"
)

const recording = `
# phone held at the center, one failed call, then a charger
{"detections": [{"label": "cellphone", "confidence": 0.9, "box": {"x": 0.4, "y": 0.4, "width": 0.2, "height": 0.2}}]}
{"error": "camera busy"}
{"detections": [{"label": "cellphone", "confidence": 0.9, "box": {"x": 0.4, "y": 0.4, "width": 0.2, "height": 0.2}}]}

{"detections": []}
{"detections": [{"label": "charger", "confidence": 0.8, "box": {"x": 0.45, "y": 0.45, "width": 0.1, "height": 0.1}}]}
{"detections": [{"label": "charger", "confidence": 0.8, "box": {"x": 0.45, "y": 0.45, "width": 0.1, "height": 0.1}}]}
`

func TestReadRecording(t *testing.T) {
	cycles, err := ReadRecording(strings.NewReader(recording))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cycles, test.ShouldHaveLength, 6)
	test.That(t, cycles[0].Detections[0].Name, test.ShouldEqual, "cellphone")
	test.That(t, cycles[0].Detections[0].Box.Width, test.ShouldEqual, 0.2)
	test.That(t, cycles[1].Error, test.ShouldEqual, "camera busy")
	test.That(t, cycles[3].Detections, test.ShouldBeEmpty)

	_, err = ReadRecording(strings.NewReader("{}\n{}\n{\"detections\": 7}\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 3")

	_, err = ReadRecording(strings.NewReader(`{"frames": []}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown field")
}

func TestDetectionPipelineReplay(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	metrics := NewMetrics()
	sess := New(mustResolver(t), DefaultOptions(), metrics, logger)
	clk := clock.NewMock()

	cycles, err := ReadRecording(strings.NewReader(recording))
	test.That(t, err, test.ShouldBeNil)
	src := DetectionSource(cycles)
	p, err := NewDetectionPipeline(sess, src.Detector(), 33*time.Millisecond, clk, metrics, logger)
	test.That(t, err, test.ShouldBeNil)
	p.Start()
	defer p.Stop()

	snaps := Replay(context.Background(), p, clk, 33*time.Millisecond, len(cycles))
	test.That(t, src.Remaining(), test.ShouldEqual, 0)
	// the failed call leaves no cycle behind
	test.That(t, snaps, test.ShouldHaveLength, 5)

	test.That(t, snaps[0].Label.Term, test.ShouldEqual, "phone")
	test.That(t, snaps[0].Changed, test.ShouldBeTrue)
	test.That(t, snaps[1].Label.Term, test.ShouldEqual, "phone")
	// empty cycle keeps the label on display
	test.That(t, snaps[2].Label.Term, test.ShouldEqual, "phone")
	test.That(t, snaps[2].Selected, test.ShouldBeNil)
	test.That(t, snaps[2].Tracks, test.ShouldBeEmpty)
	test.That(t, snaps[3].Label.Term, test.ShouldEqual, "phone")
	test.That(t, snaps[4].Label.Term, test.ShouldEqual, "charger")
	test.That(t, snaps[4].Label.Translation, test.ShouldEqual, "sạc")

	test.That(t, logs.FilterMessage("inference failed").Len(), test.ShouldEqual, 1)
	failure := logs.FilterMessage("inference failed").All()[0]
	test.That(t, failure.ContextMap()["path"], test.ShouldEqual, config.PathDetector)
	test.That(t, failure.ContextMap()["error"], test.ShouldContainSubstring, "camera busy")

	test.That(t, testutil.ToFloat64(metrics.inferences.WithLabelValues(config.PathDetector, "ok")), test.ShouldEqual, 5)
	test.That(t, testutil.ToFloat64(metrics.inferences.WithLabelValues(config.PathDetector, "error")), test.ShouldEqual, 1)
	test.That(t, testutil.ToFloat64(metrics.cycles), test.ShouldEqual, 5)
	test.That(t, testutil.ToFloat64(metrics.publishes), test.ShouldEqual, 2)
}

func TestClassificationPipelineReplay(t *testing.T) {
	logger := logging.NewTestLogger(t)
	sess := New(mustResolver(t), DefaultOptions(), nil, logger)
	clk := clock.NewMock()

	cycles, err := ReadRecording(strings.NewReader(`
{"classifications": [{"label": "tool", "confidence": 0.9}, {"label": "mug", "confidence": 0.6}]}
{"classifications": [{"label": "mug", "confidence": 0.7}, {"label": "equipment", "confidence": 0.2}]}
{"classifications": [{"label": "keyboard", "confidence": 0.8}]}
`))
	test.That(t, err, test.ShouldBeNil)
	src := ClassificationSource(cycles)
	p, err := NewClassificationPipeline(sess, src.Classifier(), 300*time.Millisecond, clk, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	p.Start()
	defer p.Stop()

	snaps := Replay(context.Background(), p, clk, 300*time.Millisecond, 3)
	test.That(t, snaps, test.ShouldHaveLength, 3)
	test.That(t, snaps[0].Label.Term, test.ShouldEqual, "cup")
	test.That(t, snaps[0].Label.Confidence, test.ShouldEqual, 0.6)
	test.That(t, snaps[1].Label.Confidence, test.ShouldEqual, 0.7)
	test.That(t, snaps[2].Label.Term, test.ShouldEqual, "cup")
	test.That(t, snaps[2].Changed, test.ShouldBeFalse)
}

func TestPipelineStopDiscardsInFlightResult(t *testing.T) {
	metrics := NewMetrics()
	logger := logging.NewTestLogger(t)
	sess := New(mustResolver(t), DefaultOptions(), metrics, logger)

	started := make(chan struct{})
	release := make(chan struct{})
	detector := func(ctx context.Context, img image.Image) ([]od.Detection, error) {
		close(started)
		<-release
		return []od.Detection{det("cup", 0.9, 0.4, 0.4, 0.2, 0.2)}, nil
	}
	p, err := NewDetectionPipeline(sess, detector, 0, clock.NewMock(), metrics, logger)
	test.That(t, err, test.ShouldBeNil)

	// frames before Start are dropped
	test.That(t, p.Offer(context.Background(), Frame{}), test.ShouldBeFalse)

	p.Start()
	test.That(t, p.Offer(context.Background(), Frame{}), test.ShouldBeTrue)
	<-started
	p.Stop()
	close(release)
	p.Wait()

	test.That(t, sess.Snapshot().Cycle, test.ShouldEqual, 0)
	test.That(t, sess.Snapshot().Published, test.ShouldBeFalse)
	test.That(t, testutil.ToFloat64(metrics.staleResults), test.ShouldEqual, 1)
	test.That(t, dropped(metrics, DropStopped), test.ShouldEqual, 1)
}

func TestPipelineOfferDoesNotWaitForCycle(t *testing.T) {
	sess := New(mustResolver(t), DefaultOptions(), nil, logging.NewTestLogger(t))
	detector := func(ctx context.Context, img image.Image) ([]od.Detection, error) {
		return nil, nil
	}
	p, err := NewDetectionPipeline(sess, detector, 0, clock.NewMock(), nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	p.Start()
	defer p.Close()

	// a cycle in progress holds the session lock
	sess.mu.Lock()
	offered := make(chan bool, 1)
	go func() {
		offered <- p.Offer(context.Background(), Frame{})
	}()
	select {
	case ok := <-offered:
		test.That(t, ok, test.ShouldBeTrue)
	case <-time.After(5 * time.Second):
		sess.mu.Unlock()
		t.Fatal("Offer waited on the session lock")
	}
	// the dispatched cycle is the one waiting
	test.That(t, p.Offer(context.Background(), Frame{}), test.ShouldBeFalse)
	sess.mu.Unlock()

	p.Wait()
	test.That(t, sess.Snapshot().Cycle, test.ShouldEqual, 1)
}

func TestPipelineCancelledInferenceIsNotAWarning(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	sess := New(mustResolver(t), DefaultOptions(), nil, logger)
	started := make(chan struct{})
	classifier := func(ctx context.Context, img image.Image, n int) (classification.Classifications, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	p, err := NewClassificationPipeline(sess, classifier, 0, nil, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	p.Start()
	test.That(t, p.Offer(context.Background(), Frame{}), test.ShouldBeTrue)
	<-started
	p.Stop()
	p.Wait()
	test.That(t, logs.FilterMessage("inference failed").Len(), test.ShouldEqual, 0)
	test.That(t, logs.FilterMessage("inference cancelled").Len(), test.ShouldEqual, 1)
}

func TestPipelineNeedsInference(t *testing.T) {
	sess := New(mustResolver(t), DefaultOptions(), nil, logging.NewTestLogger(t))
	_, err := NewDetectionPipeline(sess, nil, 0, nil, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewClassificationPipeline(sess, nil, 0, nil, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPipelineUsesUprightImage(t *testing.T) {
	sess := New(mustResolver(t), DefaultOptions(), nil, logging.NewTestLogger(t))
	var seen image.Rectangle
	detector := func(ctx context.Context, img image.Image) ([]od.Detection, error) {
		seen = img.Bounds()
		return nil, errors.New("no model")
	}
	p, err := NewDetectionPipeline(sess, detector, 0, nil, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	p.Start()
	defer p.Stop()

	img := image.NewGray(image.Rect(0, 0, 4, 2))
	test.That(t, p.Offer(context.Background(), Frame{Image: img, Orientation: OrientationLeft}), test.ShouldBeTrue)
	p.Wait()
	test.That(t, seen, test.ShouldResemble, image.Rect(0, 0, 2, 4))
}

func TestUpright(t *testing.T) {
	// a 3x2 image with one marked pixel at the top left
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	img.SetGray(0, 0, color.Gray{Y: 255})
	marked := func(out image.Image) (int, int) {
		b := out.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if r, _, _, _ := out.At(x, y).RGBA(); r > 0 {
					return x, y
				}
			}
		}
		return -1, -1
	}

	for _, o := range []Orientation{OrientationUp, OrientationDown, OrientationLeft, OrientationRight} {
		parsed, err := ParseOrientation(" " + strings.ToUpper(o.String()))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, o)
	}
	_, err := ParseOrientation("sideways")
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, Upright(Frame{Image: img}), test.ShouldEqual, img)
	test.That(t, Upright(Frame{}), test.ShouldBeNil)

	for _, tc := range []struct {
		orientation Orientation
		size        image.Point
		x, y        int
	}{
		{OrientationDown, image.Pt(3, 2), 2, 1},
		{OrientationLeft, image.Pt(2, 3), 1, 0},
		{OrientationRight, image.Pt(2, 3), 0, 2},
	} {
		t.Run(tc.orientation.String(), func(t *testing.T) {
			out := Upright(Frame{Image: img, Orientation: tc.orientation})
			test.That(t, out.Bounds().Size(), test.ShouldResemble, tc.size)
			x, y := marked(out)
			test.That(t, x, test.ShouldEqual, tc.x)
			test.That(t, y, test.ShouldEqual, tc.y)
		})
	}
}
