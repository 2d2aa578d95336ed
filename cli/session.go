package cli

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"github.com/lexicam/lexicam/config"
	"github.com/lexicam/lexicam/logging"
	"github.com/lexicam/lexicam/session"
	"github.com/lexicam/lexicam/vision/objectdetection"
)

// LookupAction resolves each argument against the lexicon.
func LookupAction(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return errors.New("lookup needs at least one label")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	resolver, err := loadResolver(cfg)
	if err != nil {
		return err
	}
	for _, raw := range c.Args().Slice() {
		entry, ok := resolver.Resolve(raw)
		if !ok {
			printf(c.App.Writer, "%s: not in lexicon", raw)
			continue
		}
		printf(c.App.Writer, "%s: %s (%s) %s", raw, entry.Term, entry.Translation, entry.Pronunciation)
	}
	return nil
}

// SchemaAction prints the JSON schema of the config file.
func SchemaAction(c *cli.Context) error {
	schema, err := config.Schema()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", schema)
	return nil
}

// ReplayAction feeds a recorded inference session through the configured pipeline and prints
// every label change.
func ReplayAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("replay needs exactly one recording")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(c, cfg)
	resolver, err := loadResolver(cfg)
	if err != nil {
		return err
	}

	//nolint:gosec
	f, err := os.Open(c.Args().First())
	if err != nil {
		return errors.Wrap(err, "cannot open recording")
	}
	defer utils.UncheckedErrorFunc(f.Close)
	cycles, err := session.ReadRecording(f)
	if err != nil {
		return errors.Wrapf(err, "cannot read recording %q", c.Args().First())
	}

	metrics := session.NewMetrics()
	sess := session.New(resolver, session.OptionsFromConfig(cfg), metrics, logger.Sublogger("session"))
	defer sess.Close()
	clk := clock.NewMock()
	p, interval, err := newReplayPipeline(cfg, cycles, sess, clk, metrics, logger)
	if err != nil {
		return err
	}

	addr := cfg.MetricsAddr
	if c.IsSet(flagMetricsAddr) {
		addr = c.String(flagMetricsAddr)
	}
	snaps, err := replayServingMetrics(c.Context, addr, p, clk, interval, len(cycles), metrics, logger)
	if err != nil {
		return err
	}

	if err := printSnapshots(c, snaps); err != nil {
		return err
	}
	if !c.Bool(flagCommit) {
		return nil
	}
	return commit(c, cfg, sess)
}

func newReplayPipeline(
	cfg *config.Config,
	cycles []session.RecordedCycle,
	sess *session.Session,
	clk clock.Clock,
	metrics *session.Metrics,
	logger logging.Logger,
) (*session.Pipeline, time.Duration, error) {
	switch cfg.Inference.Path {
	case config.PathClassifier:
		src := session.ClassificationSource(cycles)
		p, err := session.NewClassificationPipeline(
			sess, src.Classifier(), cfg.ClassifierEvery(), clk, metrics, logger.Sublogger(config.PathClassifier))
		return p, cfg.ClassifierEvery(), err
	default:
		src := session.DetectionSource(cycles)
		p, err := session.NewDetectionPipeline(
			sess, src.Detector(), cfg.DetectorEvery(), clk, metrics, logger.Sublogger(config.PathDetector))
		return p, cfg.DetectorEvery(), err
	}
}

// replayServingMetrics runs the replay, serving metrics on addr until it is done when addr is set.
func replayServingMetrics(
	ctx context.Context,
	addr string,
	p *session.Pipeline,
	clk *clock.Mock,
	interval time.Duration,
	frames int,
	metrics *session.Metrics,
	logger logging.Logger,
) ([]session.Snapshot, error) {
	g, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	if addr != "" {
		srv := &http.Server{Addr: addr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Infow("serving metrics", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-done:
			case <-ctx.Done():
			}
			//nolint:contextcheck
			return srv.Shutdown(context.Background())
		})
	}

	var snaps []session.Snapshot
	g.Go(func() error {
		defer close(done)
		p.Start()
		defer p.Close()
		snaps = session.Replay(ctx, p, clk, interval, frames)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snaps, nil
}

func printSnapshots(c *cli.Context, snaps []session.Snapshot) error {
	var confidences []float64
	changes := 0
	for _, snap := range snaps {
		if c.Bool(flagJSON) {
			line, err := json.Marshal(snap)
			if err != nil {
				return err
			}
			printf(c.App.Writer, "%s", line)
		}
		if snap.Published {
			confidences = append(confidences, snap.Label.Confidence)
		}
		if snap.Changed {
			changes++
			if !c.Bool(flagJSON) {
				printf(c.App.Writer, "cycle %d: %s", snap.Cycle, snap.Label)
			}
		}
	}
	if c.Bool(flagJSON) {
		return nil
	}
	printf(c.App.Writer, "%d cycles, %d label changes", len(snaps), changes)
	if len(confidences) == 0 {
		return nil
	}
	mean, err := stats.Mean(confidences)
	if err != nil {
		return err
	}
	median, err := stats.Median(confidences)
	if err != nil {
		return err
	}
	low, err := stats.Min(confidences)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "published confidence: mean %.2f, median %.2f, min %.2f", mean, median, low)
	return nil
}

func commit(c *cli.Context, cfg *config.Config, sess *session.Session) error {
	store, err := openStore(c.Context, cfg.Store)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(func() error { return store.Close(c.Context) })

	word, err := sess.Commit(c.Context, store)
	switch {
	case errors.Is(err, session.ErrNothingPublished), errors.Is(err, session.ErrBelowCommitGate):
		warningf(c.App.ErrWriter, "nothing committed: %v", err)
		return nil
	case err != nil:
		return err
	}
	printf(c.App.Writer, "committed %q (%s) as %s", word.Term, word.Meaning, word.ID)
	return nil
}

// DetectAction runs the built-in detector over each image in order, as consecutive frames of
// one session, and prints the label shown after each.
func DetectAction(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return errors.New("detect needs at least one image")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Inference.Path != config.PathDetector {
		return errors.Errorf("detect needs the %q inference path, config has %q", config.PathDetector, cfg.Inference.Path)
	}
	orientation, err := session.ParseOrientation(c.String(flagOrientation))
	if err != nil {
		return err
	}
	attrs, err := cfg.Inference.DetectorAttributes()
	if err != nil {
		return err
	}
	logger := newLogger(c, cfg)
	resolver, err := loadResolver(cfg)
	if err != nil {
		return err
	}

	// the detector compares 8-bit gray levels
	detector, err := objectdetection.Build(nil,
		objectdetection.NewSimpleDetector(attrs.Threshold*256, attrs.Label),
		objectdetection.NewAreaFilter(attrs.MinArea))
	if err != nil {
		return err
	}
	sess := session.New(resolver, session.OptionsFromConfig(cfg), nil, logger.Sublogger("session"))
	defer sess.Close()
	clk := clock.NewMock()
	p, err := session.NewDetectionPipeline(sess, detector, cfg.DetectorEvery(), clk, nil, logger.Sublogger(config.PathDetector))
	if err != nil {
		return err
	}
	p.Start()
	defer p.Close()

	for _, path := range c.Args().Slice() {
		img, err := decodeImage(path)
		if err != nil {
			return err
		}
		clk.Add(cfg.DetectorEvery() + time.Millisecond)
		if !p.Offer(c.Context, session.Frame{Image: img, Orientation: orientation, CapturedAt: clk.Now()}) {
			warningf(c.App.ErrWriter, "%s: frame dropped", path)
			continue
		}
		p.Wait()
		snap := sess.Snapshot()
		if !snap.Published {
			printf(c.App.Writer, "%s: %d objects, no label yet", path, len(snap.Tracks))
			continue
		}
		printf(c.App.Writer, "%s: %d objects, showing %s", path, len(snap.Tracks), snap.Label)
	}
	return nil
}

func decodeImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode %q", path)
	}
	return img, nil
}
