package session

import (
	"context"
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/lexicam/lexicam/config"
	"github.com/lexicam/lexicam/logging"
	"github.com/lexicam/lexicam/utils"
	"github.com/lexicam/lexicam/vision/classification"
	"github.com/lexicam/lexicam/vision/objectdetection"
)

// Pipeline feeds frames through a Scheduler into an inference call and folds the results into
// a Session.
type Pipeline struct {
	path      string
	sess      *Session
	scheduler *Scheduler
	clk       clock.Clock
	metrics   *Metrics
	logger    logging.Logger
	infer     func(ctx context.Context, img image.Image, gen uint64) error
}

// NewDetectionPipeline returns a pipeline running detector no more often than interval.
func NewDetectionPipeline(
	sess *Session,
	detector objectdetection.Detector,
	interval time.Duration,
	clk clock.Clock,
	metrics *Metrics,
	logger logging.Logger,
) (*Pipeline, error) {
	if detector == nil {
		return nil, errors.New("detection pipeline must have a Detector")
	}
	p := newPipeline(config.PathDetector, sess, interval, clk, metrics, logger)
	p.infer = func(ctx context.Context, img image.Image, gen uint64) error {
		dets, err := detector(ctx, img)
		if err != nil {
			return err
		}
		sess.ProcessDetections(gen, dets)
		return nil
	}
	return p, nil
}

// NewClassificationPipeline returns a pipeline asking classifier for the session's top K labels
// no more often than interval.
func NewClassificationPipeline(
	sess *Session,
	classifier classification.Classifier,
	interval time.Duration,
	clk clock.Clock,
	metrics *Metrics,
	logger logging.Logger,
) (*Pipeline, error) {
	if classifier == nil {
		return nil, errors.New("classification pipeline must have a Classifier")
	}
	p := newPipeline(config.PathClassifier, sess, interval, clk, metrics, logger)
	p.infer = func(ctx context.Context, img image.Image, gen uint64) error {
		cls, err := classifier(ctx, img, sess.opts.TopK)
		if err != nil {
			return err
		}
		sess.ProcessClassifications(gen, cls)
		return nil
	}
	return p, nil
}

func newPipeline(
	path string,
	sess *Session,
	interval time.Duration,
	clk clock.Clock,
	metrics *Metrics,
	logger logging.Logger,
) *Pipeline {
	if clk == nil {
		clk = clock.New()
	}
	return &Pipeline{
		path:      path,
		sess:      sess,
		scheduler: NewScheduler(interval, clk, metrics, logger.Sublogger("scheduler")),
		clk:       clk,
		metrics:   metrics,
		logger:    logger,
	}
}

// Start starts a new session generation and begins accepting frames.
func (p *Pipeline) Start() uint64 {
	gen := p.sess.Start()
	p.scheduler.Start()
	return gen
}

// Offer hands a frame to the scheduler. It never blocks and reports whether the frame was
// dispatched.
func (p *Pipeline) Offer(ctx context.Context, frame Frame) bool {
	gen, running := p.sess.Generation()
	if !running {
		p.metrics.frameOffered()
		p.scheduler.drop(DropStopped)
		return false
	}
	return p.scheduler.Offer(ctx, func(ctx context.Context) {
		p.run(ctx, frame, gen)
	})
}

func (p *Pipeline) run(ctx context.Context, frame Frame, gen uint64) {
	stopSlowLogger := utils.SlowLogger(ctx, p.clk, "inference is slow", "path", p.path, p.logger)
	start := p.clk.Now()
	err := p.infer(ctx, Upright(frame), gen)
	stopSlowLogger()
	p.metrics.inferenceDone(p.path, p.clk.Since(start), err)

	if err == nil {
		return
	}
	if ctx.Err() != nil {
		p.logger.Debugw("inference cancelled", "path", p.path, "error", err)
		return
	}
	// the published label is left as is; the next accepted frame tries again
	p.logger.Warnw("inference failed", "path", p.path, "error", err)
}

// Stop stops the session and cancels in-flight inference without waiting for it.
func (p *Pipeline) Stop() {
	p.sess.Stop()
	p.scheduler.Stop()
}

// Close stops the session and waits for in-flight inference to return.
func (p *Pipeline) Close() {
	p.sess.Stop()
	p.scheduler.Close()
}

// Wait blocks until every dispatched inference has returned.
func (p *Pipeline) Wait() {
	p.scheduler.Wait()
}

// Session returns the session the pipeline feeds.
func (p *Pipeline) Session() *Session {
	return p.sess
}
