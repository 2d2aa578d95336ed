package session

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reasons a frame is dropped by the scheduler.
const (
	DropStopped   = "stopped"
	DropBusy      = "busy"
	DropThrottled = "throttled"
)

// Metrics holds the session counters. A nil *Metrics records nothing.
type Metrics struct {
	framesOffered     prometheus.Counter
	framesDropped     *prometheus.CounterVec
	inferences        *prometheus.CounterVec
	inferenceDuration *prometheus.HistogramVec
	cycles            prometheus.Counter
	staleResults      prometheus.Counter
	publishes         prometheus.Counter
	tracks            prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a Metrics instance with its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		framesOffered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexicam_frames_offered_total",
			Help: "Frames offered to the inference scheduler",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lexicam_frames_dropped_total",
			Help: "Frames dropped by the inference scheduler",
		}, []string{"reason"}),
		inferences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lexicam_inferences_total",
			Help: "Completed inference calls",
		}, []string{"path", "result"}),
		inferenceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lexicam_inference_duration_seconds",
			Help:    "Time spent in the inference call",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"path"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexicam_cycles_total",
			Help: "Inference results folded into session state",
		}),
		staleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexicam_stale_results_total",
			Help: "Inference results ignored because the session was stopped or restarted",
		}),
		publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexicam_label_publishes_total",
			Help: "Stable labels published",
		}),
		tracks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lexicam_tracks",
			Help: "Tracks alive after the last detection cycle",
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.framesOffered,
		m.framesDropped,
		m.inferences,
		m.inferenceDuration,
		m.cycles,
		m.staleResults,
		m.publishes,
		m.tracks,
	)
	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the metrics in Prometheus format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) frameOffered() {
	if m == nil {
		return
	}
	m.framesOffered.Inc()
}

func (m *Metrics) frameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) inferenceDone(path string, took time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.inferences.WithLabelValues(path, result).Inc()
	m.inferenceDuration.WithLabelValues(path).Observe(took.Seconds())
}

func (m *Metrics) cycleDone(tracks int, published bool) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.tracks.Set(float64(tracks))
	if published {
		m.publishes.Inc()
	}
}

func (m *Metrics) staleResult() {
	if m == nil {
		return
	}
	m.staleResults.Inc()
}
