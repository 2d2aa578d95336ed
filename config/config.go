// Package config defines the tunables of a lexicam session and how they are read from disk.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/lexicam/lexicam/logging"
)

// The inference paths a session can run.
const (
	PathDetector   = "detector"
	PathClassifier = "classifier"
)

// The vocabulary store backends.
const (
	StoreMemory  = "memory"
	StoreMongoDB = "mongodb"
)

// Config describes a lexicam session.
type Config struct {
	ConfigFilePath string `json:"-"`

	LogLevel string `json:"log_level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	// LogFile additionally sends logs to a size-rotated file.
	LogFile string `json:"log_file,omitempty"`

	StableNeeded       int      `json:"stable_needed" jsonschema:"minimum=1"`
	IoUThreshold       float64  `json:"iou_threshold" jsonschema:"minimum=0,maximum=1"`
	TrackSmoothing     float64  `json:"track_smoothing" jsonschema:"minimum=0,maximum=1"`
	SelectionSmoothing float64  `json:"selection_smoothing" jsonschema:"minimum=0,maximum=1"`
	CenterRadius       float64  `json:"center_radius" jsonschema:"minimum=0"`
	MinConfidence      float64  `json:"min_confidence" jsonschema:"minimum=0,maximum=1"`
	ClassifierInterval string   `json:"classifier_interval" jsonschema_description:"minimum time between classifier dispatches, e.g. 300ms"`
	DetectorInterval   string   `json:"detector_interval" jsonschema_description:"minimum time between detector dispatches, e.g. 33ms"`
	CommitConfidence   float64  `json:"commit_confidence" jsonschema:"minimum=0,maximum=1"`
	TopK               int      `json:"top_k" jsonschema:"minimum=1"`
	GenericLabels      []string `json:"generic_labels"`

	// Lexicon is the path to a JSON lexicon. The embedded table is used when empty.
	Lexicon string `json:"lexicon,omitempty"`

	Inference   InferenceConfig `json:"inference"`
	Store       StoreConfig     `json:"store"`
	MetricsAddr string          `json:"metrics_addr,omitempty"`
}

// InferenceConfig selects the inference path and carries its free-form attributes.
type InferenceConfig struct {
	Path       string                 `json:"path" jsonschema:"enum=detector,enum=classifier"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// DetectorAttributes are the attributes understood by the built-in detector.
type DetectorAttributes struct {
	// Threshold is the gray level below which a pixel belongs to an object.
	Threshold float64 `json:"threshold"`
	MinArea   float64 `json:"min_area"`
	Label     string  `json:"label"`
}

// StoreConfig describes where committed words go.
type StoreConfig struct {
	Kind       string `json:"kind" jsonschema:"enum=memory,enum=mongodb"`
	URI        string `json:"uri,omitempty"`
	Database   string `json:"database,omitempty"`
	Collection string `json:"collection,omitempty"`
}

// Default returns the stock session tuning.
func Default() *Config {
	return &Config{
		LogLevel:           "info",
		StableNeeded:       2,
		IoUThreshold:       0.1,
		TrackSmoothing:     0.2,
		SelectionSmoothing: 0.25,
		CenterRadius:       0.15,
		MinConfidence:      0.3,
		ClassifierInterval: "300ms",
		DetectorInterval:   "33ms",
		CommitConfidence:   0.45,
		TopK:               5,
		GenericLabels:      []string{"tool", "equipment", "appliance", "furniture"},
		Inference:          InferenceConfig{Path: PathDetector},
		Store:              StoreConfig{Kind: StoreMemory},
	}
}

// Validate returns an error describing the first invalid field.
func (c *Config) Validate(path string) error {
	if _, err := logging.LevelFromString(c.LogLevel); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if c.StableNeeded < 1 {
		return utils.NewConfigValidationError(path, errors.Errorf("stable_needed must be at least 1, got %d", c.StableNeeded))
	}
	if c.TopK < 1 {
		return utils.NewConfigValidationError(path, errors.Errorf("top_k must be at least 1, got %d", c.TopK))
	}
	for _, field := range []struct {
		name string
		v    float64
	}{
		{"iou_threshold", c.IoUThreshold},
		{"track_smoothing", c.TrackSmoothing},
		{"selection_smoothing", c.SelectionSmoothing},
		{"min_confidence", c.MinConfidence},
		{"commit_confidence", c.CommitConfidence},
	} {
		if math.IsNaN(field.v) || field.v < 0 || field.v > 1 {
			return utils.NewConfigValidationError(path, errors.Errorf("%s must be within [0, 1], got %v", field.name, field.v))
		}
	}
	if math.IsNaN(c.CenterRadius) || c.CenterRadius <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("center_radius must be positive, got %v", c.CenterRadius))
	}
	if _, err := parseInterval("classifier_interval", c.ClassifierInterval); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if _, err := parseInterval("detector_interval", c.DetectorInterval); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if err := c.Inference.Validate(fmt.Sprintf("%s.inference", path)); err != nil {
		return err
	}
	return c.Store.Validate(fmt.Sprintf("%s.store", path))
}

// Level returns the configured log level.
func (c *Config) Level() logging.Level {
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// ClassifierEvery returns the classifier dispatch interval. Call Validate first.
func (c *Config) ClassifierEvery() time.Duration {
	d, _ := parseInterval("classifier_interval", c.ClassifierInterval)
	return d
}

// DetectorEvery returns the detector dispatch interval. Call Validate first.
func (c *Config) DetectorEvery() time.Duration {
	d, _ := parseInterval("detector_interval", c.DetectorInterval)
	return d
}

func parseInterval(name, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", name)
	}
	if d < 0 {
		return 0, errors.Errorf("%s must not be negative, got %s", name, s)
	}
	return d, nil
}

// Validate checks the inference path.
func (ic *InferenceConfig) Validate(path string) error {
	switch ic.Path {
	case "":
		return utils.NewConfigValidationFieldRequiredError(path, "path")
	case PathDetector, PathClassifier:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown inference path %q", ic.Path))
	}
	if ic.Path == PathDetector {
		if _, err := ic.DetectorAttributes(); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	return nil
}

// DetectorAttributes decodes the attribute map into DetectorAttributes. Unknown keys are an error.
func (ic *InferenceConfig) DetectorAttributes() (*DetectorAttributes, error) {
	attrs := &DetectorAttributes{Threshold: 0.5, Label: "object"}
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           attrs,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(ic.Attributes); err != nil {
		return nil, errors.Wrap(err, "cannot decode detector attributes")
	}
	if len(md.Unused) > 0 {
		return nil, errors.Errorf("unknown detector attributes %v", md.Unused)
	}
	if attrs.Threshold <= 0 || attrs.Threshold > 1 {
		return nil, errors.Errorf("threshold must be within (0, 1], got %v", attrs.Threshold)
	}
	if attrs.MinArea < 0 {
		return nil, errors.Errorf("min_area must not be negative, got %v", attrs.MinArea)
	}
	return attrs, nil
}

// Validate checks the store backend.
func (sc *StoreConfig) Validate(path string) error {
	switch sc.Kind {
	case "", StoreMemory:
		return nil
	case StoreMongoDB:
		if sc.URI == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "uri")
		}
		return nil
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown store kind %q", sc.Kind))
	}
}
