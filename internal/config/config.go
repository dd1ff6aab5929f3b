// Package config provides configuration types and defaults for screenidx.
package config

import (
	"os"

	"github.com/halward/screenidx/internal/errors"
	"gopkg.in/yaml.v2"
)

// Default constants
const (
	// DefaultExtractionFPS is the keyframe sampling cadence.
	DefaultExtractionFPS float64 = 1.5

	// DefaultMaxConcurrentProcessing is the number of segments processed in parallel.
	DefaultMaxConcurrentProcessing int = 4

	// DefaultSSIMThreshold is the SSIM score below which frames differ structurally.
	DefaultSSIMThreshold float64 = 0.8

	// DefaultPHashDistanceThreshold is the Hamming distance above which frames differ perceptually.
	DefaultPHashDistanceThreshold int = 10

	// DefaultEntropyThreshold is the entropy delta above which content changed.
	DefaultEntropyThreshold float64 = 0.1

	// DefaultMinOCRConfidence filters low-quality OCR rows before analysis.
	DefaultMinOCRConfidence float32 = 0.7

	// DefaultMinIoUThreshold is the minimum overlap for region matching across frames.
	DefaultMinIoUThreshold float32 = 0.3

	// DefaultMinTextSimilarity is the default for delta.min_text_similarity.
	// The delta analyzer does not read it: any text difference between
	// matched regions counts as a change.
	DefaultMinTextSimilarity float32 = 0.8

	// DefaultMaxFrameGapSeconds bounds the gap between compared frames.
	DefaultMaxFrameGapSeconds float64 = 10.0

	// DefaultMinEventConfidence gates events before they reach the writer.
	DefaultMinEventConfidence float32 = 0.6

	// DefaultMaxPreviousFrames is the delta analyzer's frame cache depth.
	DefaultMaxPreviousFrames int = 10

	// DefaultMinDialogWidth and height bound layout-detected dialogs.
	DefaultMinDialogWidth  float32 = 200
	DefaultMinDialogHeight float32 = 100

	// DefaultMaxDialogRatio caps dialog size relative to the screen.
	DefaultMaxDialogRatio float32 = 0.8

	// DefaultCorrelationWindowMs is the sliding correlation horizon.
	DefaultCorrelationWindowMs int64 = 2000

	// DefaultMinCorrelationConfidence gates correlation results.
	DefaultMinCorrelationConfidence float32 = 0.6

	// DefaultSpatialRadius is the spatial correlation radius in pixels.
	DefaultSpatialRadius float32 = 50

	// DefaultFrameBatchSize is the frame-metadata writer batch size.
	DefaultFrameBatchSize int = 1000

	// DefaultOCRBatchSize is the OCR writer batch size.
	DefaultOCRBatchSize int = 5000

	// DefaultEventBatchSize is the event writer batch size.
	DefaultEventBatchSize int = 1000

	// DefaultStabilityGapMs is the size-stability sampling gap for new segments.
	DefaultStabilityGapMs int = 500
)

// SceneConfig holds scene-change classification thresholds.
type SceneConfig struct {
	SSIMThreshold          float64 `yaml:"ssim_threshold"`
	PHashDistanceThreshold int     `yaml:"phash_distance_threshold"`
	EntropyThreshold       float64 `yaml:"entropy_threshold"`
}

// DeltaConfig holds delta-analysis behavior.
type DeltaConfig struct {
	MinOCRConfidence      float32 `yaml:"min_ocr_confidence"`
	MinIoUThreshold       float32 `yaml:"min_iou_threshold"`
	MinTextSimilarity     float32 `yaml:"min_text_similarity"`
	MaxFrameGapSeconds    float64 `yaml:"max_frame_gap_seconds"`
	MinEventConfidence    float32 `yaml:"min_event_confidence"`
	EnableTemporalContext bool    `yaml:"enable_temporal_context"`
	MaxPreviousFrames     int     `yaml:"max_previous_frames"`
}

// ErrorModalConfig holds error/modal detection behavior.
type ErrorModalConfig struct {
	MinOCRConfidence      float32 `yaml:"min_ocr_confidence"`
	MinErrorConfidence    float32 `yaml:"min_error_confidence"`
	MinModalConfidence    float32 `yaml:"min_modal_confidence"`
	EnableLayoutDetection bool    `yaml:"enable_layout_detection"`
	MinDialogWidth        float32 `yaml:"min_dialog_width"`
	MinDialogHeight       float32 `yaml:"min_dialog_height"`
	MaxDialogWidthRatio   float32 `yaml:"max_dialog_width_ratio"`
	MaxDialogHeightRatio  float32 `yaml:"max_dialog_height_ratio"`
}

// CursorConfig holds cursor tracking behavior.
type CursorConfig struct {
	SampleIntervalMs int     `yaml:"sample_interval_ms"`
	ClickRadius      float32 `yaml:"click_radius"`
	ClickDwellMs     int64   `yaml:"click_dwell_ms"`
	MaxHistory       int     `yaml:"max_history"`
}

// NavigationConfig holds window/tab/focus change detection behavior.
type NavigationConfig struct {
	PollIntervalMs      int     `yaml:"poll_interval_ms"`
	MinChangeConfidence float32 `yaml:"min_change_confidence"`
}

// CorrelationConfig holds event correlation behavior.
type CorrelationConfig struct {
	MaxCorrelationWindowMs   int64   `yaml:"max_correlation_window_ms"`
	MinCorrelationConfidence float32 `yaml:"min_correlation_confidence"`
	EnableSpatial            bool    `yaml:"enable_spatial"`
	EnableTemporal           bool    `yaml:"enable_temporal"`
	EnableCausal             bool    `yaml:"enable_causal"`
	SpatialCorrelationRadius float32 `yaml:"spatial_correlation_radius"`
}

// StorageConfig holds columnar writer behavior.
type StorageConfig struct {
	FrameBatchSize int    `yaml:"frame_batch_size"`
	OCRBatchSize   int    `yaml:"ocr_batch_size"`
	EventBatchSize int    `yaml:"event_batch_size"`
	Compression    string `yaml:"compression"` // snappy, gzip, lz4, none
	EncryptOutputs bool   `yaml:"encrypt_outputs"`
}

// Config holds all configuration for the indexing pipeline.
type Config struct {
	ExtractionFPS           float64           `yaml:"extraction_fps"`
	OutputDir               string            `yaml:"output_dir"`
	VideoExtensions         []string          `yaml:"video_extensions"`
	MaxConcurrentProcessing int               `yaml:"max_concurrent_processing"`
	Scene                   SceneConfig       `yaml:"scene"`
	Delta                   DeltaConfig       `yaml:"delta"`
	ErrorModal              ErrorModalConfig  `yaml:"error_modal"`
	Cursor                  CursorConfig      `yaml:"cursor"`
	Navigation              NavigationConfig  `yaml:"navigation"`
	Correlation             CorrelationConfig `yaml:"correlation"`
	Storage                 StorageConfig     `yaml:"storage"`

	// Debug options
	Verbose bool `yaml:"verbose"`
}

// NewConfig creates a new Config with default values.
func NewConfig(outputDir string) *Config {
	return &Config{
		ExtractionFPS:           DefaultExtractionFPS,
		OutputDir:               outputDir,
		VideoExtensions:         []string{"mp4", "mov", "avi", "mkv"},
		MaxConcurrentProcessing: DefaultMaxConcurrentProcessing,
		Scene: SceneConfig{
			SSIMThreshold:          DefaultSSIMThreshold,
			PHashDistanceThreshold: DefaultPHashDistanceThreshold,
			EntropyThreshold:       DefaultEntropyThreshold,
		},
		Delta: DeltaConfig{
			MinOCRConfidence:      DefaultMinOCRConfidence,
			MinIoUThreshold:       DefaultMinIoUThreshold,
			MinTextSimilarity:     DefaultMinTextSimilarity,
			MaxFrameGapSeconds:    DefaultMaxFrameGapSeconds,
			MinEventConfidence:    DefaultMinEventConfidence,
			EnableTemporalContext: true,
			MaxPreviousFrames:     DefaultMaxPreviousFrames,
		},
		ErrorModal: ErrorModalConfig{
			MinOCRConfidence:      DefaultMinOCRConfidence,
			MinErrorConfidence:    DefaultMinEventConfidence,
			MinModalConfidence:    DefaultMinEventConfidence,
			EnableLayoutDetection: true,
			MinDialogWidth:        DefaultMinDialogWidth,
			MinDialogHeight:       DefaultMinDialogHeight,
			MaxDialogWidthRatio:   DefaultMaxDialogRatio,
			MaxDialogHeightRatio:  DefaultMaxDialogRatio,
		},
		Cursor: CursorConfig{
			SampleIntervalMs: 100,
			ClickRadius:      5,
			ClickDwellMs:     150,
			MaxHistory:       1000,
		},
		Navigation: NavigationConfig{
			PollIntervalMs:      250,
			MinChangeConfidence: 0.7,
		},
		Correlation: CorrelationConfig{
			MaxCorrelationWindowMs:   DefaultCorrelationWindowMs,
			MinCorrelationConfidence: DefaultMinCorrelationConfidence,
			EnableSpatial:            true,
			EnableTemporal:           true,
			EnableCausal:             true,
			SpatialCorrelationRadius: DefaultSpatialRadius,
		},
		Storage: StorageConfig{
			FrameBatchSize: DefaultFrameBatchSize,
			OCRBatchSize:   DefaultOCRBatchSize,
			EventBatchSize: DefaultEventBatchSize,
			Compression:    "snappy",
			EncryptOutputs: true,
		},
	}
}

// LoadFile reads a YAML config file and merges it over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig("./output")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("cannot read config file " + path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigError("cannot parse config file: " + err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ExtractionFPS <= 0 || c.ExtractionFPS > 30 {
		return errors.NewConfigError("extraction_fps must be in (0, 30]")
	}
	if c.OutputDir == "" {
		return errors.NewConfigError("output_dir must not be empty")
	}
	if c.MaxConcurrentProcessing < 1 {
		return errors.NewConfigError("max_concurrent_processing must be >= 1")
	}
	if c.Scene.SSIMThreshold < 0 || c.Scene.SSIMThreshold > 1 {
		return errors.NewConfigError("scene.ssim_threshold must be in [0, 1]")
	}
	if c.Scene.PHashDistanceThreshold < 0 {
		return errors.NewConfigError("scene.phash_distance_threshold must be >= 0")
	}
	if c.Delta.MinOCRConfidence < 0 || c.Delta.MinOCRConfidence > 1 {
		return errors.NewConfigError("delta.min_ocr_confidence must be in [0, 1]")
	}
	if c.Delta.MinIoUThreshold < 0 || c.Delta.MinIoUThreshold > 1 {
		return errors.NewConfigError("delta.min_iou_threshold must be in [0, 1]")
	}
	if c.Delta.MaxPreviousFrames < 1 {
		return errors.NewConfigError("delta.max_previous_frames must be >= 1")
	}
	if c.Correlation.MaxCorrelationWindowMs <= 0 {
		return errors.NewConfigError("correlation.max_correlation_window_ms must be > 0")
	}
	switch c.Storage.Compression {
	case "snappy", "gzip", "lz4", "none":
	default:
		return errors.NewConfigError("storage.compression must be one of snappy, gzip, lz4, none")
	}
	if c.Storage.FrameBatchSize < 1 || c.Storage.OCRBatchSize < 1 || c.Storage.EventBatchSize < 1 {
		return errors.NewConfigError("storage batch sizes must be >= 1")
	}
	return nil
}
