// Package session turns a stream of inference results into a stable, published label for one
// camera session. A Session owns the tracker, the selection smoother and the stability filter;
// a Pipeline feeds it from a throttled Scheduler.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/lexicam/lexicam/config"
	"github.com/lexicam/lexicam/lexicon"
	"github.com/lexicam/lexicam/logging"
	"github.com/lexicam/lexicam/vision/classification"
	"github.com/lexicam/lexicam/vision/objectdetection"
	"github.com/lexicam/lexicam/vision/selection"
	"github.com/lexicam/lexicam/vision/stability"
	"github.com/lexicam/lexicam/vision/tracking"
	"github.com/lexicam/lexicam/vocab"
)

var (
	// ErrNothingPublished is returned by Commit before any label has been published.
	ErrNothingPublished = errors.New("no label has been published")
	// ErrBelowCommitGate is returned by Commit when the published confidence is too low.
	ErrBelowCommitGate = errors.New("published label is not confident enough to commit")
)

// Options tune a Session.
type Options struct {
	StableNeeded       int
	IoUThreshold       float64
	TrackSmoothing     float64
	SelectionSmoothing float64
	CenterRadius       float64
	MinConfidence      float64
	CommitConfidence   float64
	TopK               int
	GenericLabels      []string
}

// OptionsFromConfig copies the session tunables out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StableNeeded:       cfg.StableNeeded,
		IoUThreshold:       cfg.IoUThreshold,
		TrackSmoothing:     cfg.TrackSmoothing,
		SelectionSmoothing: cfg.SelectionSmoothing,
		CenterRadius:       cfg.CenterRadius,
		MinConfidence:      cfg.MinConfidence,
		CommitConfidence:   cfg.CommitConfidence,
		TopK:               cfg.TopK,
		GenericLabels:      append([]string{}, cfg.GenericLabels...),
	}
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

// Snapshot is what the presentation layer reads after each cycle.
type Snapshot struct {
	// Label is the last published label. It is zero until Published is true.
	Label     stability.Label `json:"label"`
	Published bool            `json:"published"`
	// Changed is true when this cycle published a new label.
	Changed  bool             `json:"changed"`
	Selected *tracking.Track  `json:"selected,omitempty"`
	Tracks   []tracking.Track `json:"tracks,omitempty"`
	Cycle    uint64           `json:"cycle"`
}

// Session holds the per-camera state. Process calls are serialized by a single mutex held for
// the whole cycle. The generation and running flag are written under that mutex but read without
// it, so the capture path never waits on a cycle.
type Session struct {
	logger   logging.Logger
	metrics  *Metrics
	resolver *lexicon.Resolver
	opts     Options

	detectionFilter objectdetection.Postprocessor
	topK            classification.Postprocessor
	excludeGeneric  classification.Postprocessor

	generation atomic.Uint64
	running    atomic.Bool

	mu         sync.Mutex
	cycle      uint64
	tracker    *tracking.Tracker
	selector   *selection.Selector
	smoother   *selection.Smoother
	filter     *stability.Filter
	snapshot   Snapshot

	subs *broadcaster
}

// New returns a stopped session. resolver must not be nil; metrics may be.
func New(resolver *lexicon.Resolver, opts Options, metrics *Metrics, logger logging.Logger) *Session {
	return &Session{
		logger:   logger,
		metrics:  metrics,
		resolver: resolver,
		opts:     opts,
		detectionFilter: objectdetection.Chain(
			objectdetection.NewGeometryFilter(),
			objectdetection.NewScoreFilter(opts.MinConfidence),
		),
		topK:           classification.NewTopNFilter(opts.TopK),
		excludeGeneric: classification.NewExcludeLabelFilter(opts.GenericLabels),
		tracker:        tracking.NewTracker(opts.IoUThreshold, opts.TrackSmoothing, resolver),
		selector:       selection.NewSelector(opts.CenterRadius),
		smoother:       selection.NewSmoother(opts.SelectionSmoothing),
		filter:         stability.NewFilter(opts.StableNeeded),
		subs:           newBroadcaster(),
	}
}

// Start begins a new generation with fresh state and returns it. Results must carry this
// generation to be folded in.
func (s *Session) Start() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen := s.generation.Inc()
	s.running.Store(true)
	s.cycle = 0
	s.tracker.Reset()
	s.smoother.Reset()
	s.filter.Reset()
	s.snapshot = Snapshot{}
	s.logger.Infow("session started", "generation", gen)
	return gen
}

// Stop ends the current generation. Results dispatched before Stop are ignored when they arrive.
// The last snapshot stays readable.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	s.generation.Inc()
	s.logger.Infow("session stopped", "cycles", s.cycle)
}

// Generation returns the current generation and whether the session is running. It takes no
// lock. A reader racing Stop may see the old generation as running; results carrying it are
// dropped as stale.
func (s *Session) Generation() (uint64, bool) {
	return s.generation.Load(), s.running.Load()
}

// current must be called with mu held.
func (s *Session) current(gen uint64) bool {
	current := s.generation.Load()
	if s.running.Load() && gen == current {
		return true
	}
	s.metrics.staleResult()
	s.logger.Debugw("ignoring stale result", "generation", gen, "current", current)
	return false
}

// ProcessDetections folds one detector cycle into the session and returns the label published
// by this cycle, if any.
func (s *Session) ProcessDetections(gen uint64, raw []objectdetection.Detection) (stability.Label, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		return stability.Label{}, false
	}

	tracks := s.tracker.Update(s.detectionFilter(raw))
	selected, ok := s.smoother.Smooth(s.selector.Select(tracks))

	var (
		candidate  stability.Candidate
		confidence float64
		sel        *tracking.Track
	)
	if ok {
		sel = &selected
		confidence = selected.Confidence
		if selected.Entry != nil {
			candidate = stability.Resolved(*selected.Entry)
		} else {
			candidate = stability.Unresolved(rawLabel(selected.Label))
		}
	}
	return s.finish(candidate, confidence, sel, tracks)
}

// ProcessClassifications folds one classifier cycle into the session. The top K labels are
// scanned in descending confidence, skipping generic ones, and the first that resolves wins.
// When none resolves the single most confident label is used as is.
func (s *Session) ProcessClassifications(gen uint64, cls classification.Classifications) (stability.Label, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		return stability.Label{}, false
	}

	candidate, confidence := s.pickClassification(s.topK(cls))
	return s.finish(candidate, confidence, nil, nil)
}

func (s *Session) pickClassification(top classification.Classifications) (stability.Candidate, float64) {
	if len(top) == 0 {
		return stability.Candidate{}, 0
	}
	for _, c := range s.excludeGeneric(top) {
		if entry, ok := s.resolver.Resolve(rawLabel(c.Label())); ok {
			return stability.Resolved(entry), c.Score()
		}
	}
	return stability.Unresolved(rawLabel(top[0].Label())), top[0].Score()
}

func rawLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// finish must be called with mu held.
func (s *Session) finish(
	candidate stability.Candidate,
	confidence float64,
	selected *tracking.Track,
	tracks []tracking.Track,
) (stability.Label, bool) {
	label, published := s.filter.Observe(candidate, confidence)
	s.cycle++

	snap := Snapshot{
		Label:     s.snapshot.Label,
		Published: s.snapshot.Published,
		Changed:   published,
		Selected:  selected,
		Tracks:    tracks,
		Cycle:     s.cycle,
	}
	if published {
		snap.Label = label
		snap.Published = true
		s.logger.Infow("label published",
			"term", label.Term,
			"translation", label.Translation,
			"confidence", label.Confidence,
			"resolved", label.Resolved)
	}
	s.snapshot = snap
	s.metrics.cycleDone(len(tracks), published)
	s.subs.send(snap.clone())

	tracked, _, count := s.filter.Streak()
	s.logger.Debugw("cycle",
		"cycle", s.cycle,
		"tracks", len(tracks),
		"candidate", tracked.Term(),
		"streak", count,
		"state", s.filter.State().String())
	return label, published
}

func (snap Snapshot) clone() Snapshot {
	if snap.Selected != nil {
		sel := *snap.Selected
		snap.Selected = &sel
	}
	if snap.Tracks != nil {
		snap.Tracks = append([]tracking.Track{}, snap.Tracks...)
	}
	return snap
}

// Snapshot returns a copy of the latest snapshot.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.clone()
}

// Subscribe returns a channel that receives a snapshot after every cycle, and a function that
// cancels the subscription and closes the channel. A slow reader misses intermediate snapshots
// but always sees the latest.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	id, ch := s.subs.subscribe()
	return ch, func() { s.subs.unsubscribe(id) }
}

// Commit hands the published label to store as a new word. It fails when nothing has been
// published or the published confidence is below the commit gate.
func (s *Session) Commit(ctx context.Context, store vocab.Store) (vocab.Word, error) {
	s.mu.Lock()
	label, ok := s.filter.Published()
	gate := s.opts.CommitConfidence
	s.mu.Unlock()

	if !ok {
		return vocab.Word{}, ErrNothingPublished
	}
	if label.Confidence < gate {
		return vocab.Word{}, errors.Wrapf(ErrBelowCommitGate, "%q at %.2f, need %.2f", label.Term, label.Confidence, gate)
	}
	word, err := store.Add(ctx, vocab.Word{
		Term:          label.Term,
		Meaning:       label.Translation,
		Pronunciation: label.Pronunciation,
	})
	if err != nil {
		return vocab.Word{}, errors.Wrapf(err, "cannot commit %q", label.Term)
	}
	s.logger.Infow("word committed", "term", word.Term, "id", word.ID)
	return word, nil
}

// Close stops the session and closes every subscription.
func (s *Session) Close() {
	s.Stop()
	s.subs.closeAll()
}
