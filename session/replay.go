package session

import (
	"bufio"
	"context"
	"encoding/json"
	"image"
	"io"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/lexicam/lexicam/vision/classification"
	"github.com/lexicam/lexicam/vision/objectdetection"
)

// RecordedCycle is one line of a recording: the outcome of one inference call. Exactly one of
// the fields is expected to be set; a line with none set is an empty cycle.
type RecordedCycle struct {
	Detections      []objectdetection.Raw `json:"detections,omitempty"`
	Classifications []classification.Raw  `json:"classifications,omitempty"`
	Error           string                `json:"error,omitempty"`
}

// ReadRecording reads a JSON Lines recording. Blank lines and lines starting with # are skipped.
func ReadRecording(r io.Reader) ([]RecordedCycle, error) {
	var cycles []RecordedCycle
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var c RecordedCycle
		dec := json.NewDecoder(strings.NewReader(line))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		cycles = append(cycles, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cycles, nil
}

// DetectionSource plays the recording back as a detector.
func DetectionSource(cycles []RecordedCycle) *objectdetection.Source {
	out := make([]objectdetection.Cycle, 0, len(cycles))
	for _, c := range cycles {
		oc := objectdetection.Cycle{Err: recordedErr(c)}
		for _, d := range c.Detections {
			oc.Detections = append(oc.Detections, d)
		}
		out = append(out, oc)
	}
	return objectdetection.NewSource(out)
}

// ClassificationSource plays the recording back as a classifier.
func ClassificationSource(cycles []RecordedCycle) *classification.Source {
	out := make([]classification.Cycle, 0, len(cycles))
	for _, c := range cycles {
		cc := classification.Cycle{Err: recordedErr(c)}
		for _, cls := range c.Classifications {
			cc.Classifications = append(cc.Classifications, cls)
		}
		out = append(out, cc)
	}
	return classification.NewSource(out)
}

func recordedErr(c RecordedCycle) error {
	if c.Error == "" {
		return nil
	}
	return errors.New(c.Error)
}

// Replay offers frames frames to p, advancing clk past interval before each so that none is
// throttled, and waits for each inference before the next. It returns the snapshot of every
// cycle that reached the session.
func Replay(ctx context.Context, p *Pipeline, clk *clock.Mock, interval time.Duration, frames int) []Snapshot {
	blank := image.NewGray(image.Rect(0, 0, 1, 1))
	var snaps []Snapshot
	var lastCycle uint64
	for i := 0; i < frames; i++ {
		if ctx.Err() != nil {
			break
		}
		clk.Add(interval + time.Millisecond)
		if !p.Offer(ctx, Frame{Image: blank, CapturedAt: clk.Now()}) {
			continue
		}
		p.Wait()
		snap := p.Session().Snapshot()
		if snap.Cycle != lastCycle {
			lastCycle = snap.Cycle
			snaps = append(snaps, snap)
		}
	}
	return snaps
}
