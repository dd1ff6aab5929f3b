// Package screenidx provides a keyframe indexing and screen-activity
// analysis pipeline for screen-recorder segments.
//
// Screenidx consumes short video segments, extracts representative frames,
// classifies scene changes, runs externally supplied OCR records through a
// delta analyzer to synthesize semantic UI events, correlates them with
// cursor and window activity, and persists everything as columnar files.
// OCR results and events are encrypted at rest when encryption is enabled;
// frame metadata is written in plaintext.
//
// Basic usage:
//
//	indexer, err := screenidx.New(
//	    screenidx.WithOutputDir("./output"),
//	    screenidx.WithExtractionFPS(1.5),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer indexer.Finalize()
//
//	results, err := indexer.Index(ctx, []string{"segment_001.mp4"})
package screenidx

import (
	"context"

	"github.com/halward/screenidx/internal/config"
	"github.com/halward/screenidx/internal/crypt"
	"github.com/halward/screenidx/internal/discovery"
	"github.com/halward/screenidx/internal/logging"
	"github.com/halward/screenidx/internal/pipeline"
	"github.com/halward/screenidx/internal/probe"
	"github.com/halward/screenidx/internal/reporter"
	"github.com/halward/screenidx/internal/store"
	"github.com/halward/screenidx/internal/worker"
)

// SegmentResult re-exports the per-segment outcome.
type SegmentResult = worker.SegmentResult

// Query re-exports the store predicate set.
type Query = store.Query

// FrameMetadata re-exports the persisted keyframe row.
type FrameMetadata = store.FrameMetadata

// KeyProvider re-exports the key acquisition capability.
type KeyProvider = crypt.KeyProvider

// NavigationProbe re-exports the platform probe capability.
type NavigationProbe = probe.NavigationProbe

// Indexer is the main entry point for segment indexing.
type Indexer struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	enc      *crypt.Manager
}

// Option configures the indexer.
type Option func(*settings)

type settings struct {
	cfg         *config.Config
	keyProvider crypt.KeyProvider
	navProbe    probe.NavigationProbe
	ocrSource   pipeline.OCRSource
	persistOCR  bool
	rep         reporter.Reporter
	log         *logging.Logger
}

// WithConfig replaces the entire configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithOutputDir sets the output root.
func WithOutputDir(dir string) Option {
	return func(s *settings) { s.cfg.OutputDir = dir }
}

// WithExtractionFPS sets the keyframe sampling cadence.
func WithExtractionFPS(fps float64) Option {
	return func(s *settings) { s.cfg.ExtractionFPS = fps }
}

// WithKeyProvider wires the AEAD key source. Without one, and with
// encryption enabled, the ENCRYPTION_KEY environment variable is used when
// it holds a valid key; otherwise an ephemeral key is generated and a
// warning logged.
func WithKeyProvider(p crypt.KeyProvider) Option {
	return func(s *settings) { s.keyProvider = p }
}

// WithEncryptionDisabled writes plaintext columnar files.
func WithEncryptionDisabled() Option {
	return func(s *settings) { s.cfg.Storage.EncryptOutputs = false }
}

// WithProbe wires the platform navigation probe.
func WithProbe(p probe.NavigationProbe) Option {
	return func(s *settings) { s.navProbe = p }
}

// WithOCRSource wires where OCR records come from; persist controls whether
// consumed records are re-persisted through the OCR writer.
func WithOCRSource(src pipeline.OCRSource, persist bool) Option {
	return func(s *settings) { s.ocrSource, s.persistOCR = src, persist }
}

// WithReporter wires a progress reporter.
func WithReporter(r reporter.Reporter) Option {
	return func(s *settings) { s.rep = r }
}

// WithLogger wires a logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *settings) { s.log = l }
}

// New creates an Indexer with the given options.
func New(opts ...Option) (*Indexer, error) {
	s := &settings{cfg: config.NewConfig("./output")}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	if s.log == nil {
		s.log = logging.Global()
	}

	var enc *crypt.Manager
	if s.cfg.Storage.EncryptOutputs {
		provider := s.keyProvider
		if provider == nil {
			if _, err := (crypt.EnvKeyProvider{}).Key(); err == nil {
				provider = crypt.EnvKeyProvider{}
			}
		}
		m, err := crypt.NewManager(provider, s.log)
		if err != nil {
			return nil, err
		}
		enc = m
	}

	var popts []pipeline.Option
	if s.navProbe != nil {
		popts = append(popts, pipeline.WithProbe(s.navProbe))
	}
	if s.ocrSource != nil {
		popts = append(popts, pipeline.WithOCRSource(s.ocrSource, s.persistOCR))
	}
	if s.rep != nil {
		popts = append(popts, pipeline.WithReporter(s.rep))
	}

	p, err := pipeline.New(s.cfg, enc, s.log, popts...)
	if err != nil {
		return nil, err
	}

	return &Indexer{cfg: s.cfg, pipeline: p, enc: enc}, nil
}

// Index processes the given segment paths.
func (ix *Indexer) Index(ctx context.Context, paths []string) ([]SegmentResult, error) {
	return ix.pipeline.ProcessSegments(ctx, paths)
}

// IndexDirectory discovers segments in dir and processes them.
func (ix *Indexer) IndexDirectory(ctx context.Context, dir string) ([]SegmentResult, error) {
	paths, err := discovery.FindSegments(dir, ix.cfg.VideoExtensions)
	if err != nil {
		return nil, err
	}
	return ix.pipeline.ProcessSegments(ctx, paths)
}

// Finalize flushes all in-flight batches. Must run before process exit.
func (ix *Indexer) Finalize() error {
	return ix.pipeline.Finalize()
}

// Reader opens a query surface over the indexer's output directory.
func (ix *Indexer) Reader() *store.Reader {
	return store.NewReader(ix.cfg.OutputDir, ix.enc, nil)
}
