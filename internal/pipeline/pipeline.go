// Package pipeline orchestrates per-segment indexing: sampling, scene
// classification, metadata collection, delta analysis, correlation, and
// persistence. Segments run in parallel up to the configured limit; each
// segment's pipeline is a single linear task.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/halward/screenidx/internal/config"
	"github.com/halward/screenidx/internal/correlate"
	"github.com/halward/screenidx/internal/crypt"
	"github.com/halward/screenidx/internal/cursor"
	"github.com/halward/screenidx/internal/delta"
	"github.com/halward/screenidx/internal/errormodal"
	"github.com/halward/screenidx/internal/errors"
	"github.com/halward/screenidx/internal/event"
	"github.com/halward/screenidx/internal/logging"
	"github.com/halward/screenidx/internal/ocr"
	"github.com/halward/screenidx/internal/probe"
	"github.com/halward/screenidx/internal/reporter"
	"github.com/halward/screenidx/internal/sampler"
	"github.com/halward/screenidx/internal/scene"
	"github.com/halward/screenidx/internal/store"
	"github.com/halward/screenidx/internal/util"
	"github.com/halward/screenidx/internal/worker"
)

// OCRSource supplies the externally produced OCR records for a frame.
type OCRSource interface {
	ResultsForFrame(frameID string) ([]ocr.Result, error)
}

// NullOCRSource returns no records; the pipeline then only produces frame
// metadata and scene changes.
type NullOCRSource struct{}

// ResultsForFrame returns no records.
func (NullOCRSource) ResultsForFrame(string) ([]ocr.Result, error) {
	return nil, nil
}

// StoreOCRSource reads OCR records back from the columnar store.
type StoreOCRSource struct {
	Reader *store.Reader
}

// ResultsForFrame queries the store by frame id.
func (s StoreOCRSource) ResultsForFrame(frameID string) ([]ocr.Result, error) {
	return s.Reader.QueryOCR(store.Query{FrameID: frameID})
}

// SourceFactory opens a decoded frame source for a segment path. Decoding is
// external; the default factory only understands directories of pre-decoded
// frame images.
type SourceFactory func(path string) (sampler.FrameSource, error)

// DefaultSourceFactory opens directory sources at the recorder's nominal
// capture rate.
func DefaultSourceFactory(path string) (sampler.FrameSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewCorruptedVideoError(path, err)
	}
	if info.IsDir() {
		return sampler.NewDirectorySource(path, 30)
	}
	return nil, errors.NewUnsupportedFormatError(path)
}

// Pipeline owns the writers, the correlator, and the navigation state.
type Pipeline struct {
	cfg        *config.Config
	sampler    *sampler.Sampler
	scenes     *scene.Detector
	frames     *store.FrameWriter
	ocrWriter  *store.OCRWriter
	events     *store.EventWriter
	ocrSource  OCRSource
	persistOCR bool
	sources    SourceFactory
	nav        *probe.NavigationDetector
	navProbe   *probe.CountingProbe
	tracker    *cursor.Tracker
	correlator *correlate.Correlator
	rep        reporter.Reporter
	log        *logging.Logger

	// Serializes the correlator, cursor tracker, and navigation detector
	// when segments run in parallel.
	sharedMu sync.Mutex

	appCache struct {
		appName  string
		winTitle string
		fetched  time.Time
	}
}

// Option configures a pipeline.
type Option func(*Pipeline)

// WithOCRSource sets where OCR records come from.
func WithOCRSource(src OCRSource, persist bool) Option {
	return func(p *Pipeline) {
		p.ocrSource = src
		p.persistOCR = persist
	}
}

// WithSourceFactory replaces the decoder adapter.
func WithSourceFactory(f SourceFactory) Option {
	return func(p *Pipeline) { p.sources = f }
}

// WithProbe sets the navigation probe.
func WithProbe(np probe.NavigationProbe) Option {
	return func(p *Pipeline) {
		p.navProbe = probe.NewCountingProbe(np, p.log)
		p.nav = probe.NewNavigationDetector(p.cfg.Navigation, p.navProbe, p.log)
	}
}

// WithReporter sets the progress reporter.
func WithReporter(r reporter.Reporter) Option {
	return func(p *Pipeline) { p.rep = r }
}

// New builds a pipeline rooted at cfg.OutputDir. enc may be nil to write
// plaintext outputs.
func New(cfg *config.Config, enc *crypt.Manager, log *logging.Logger, opts ...Option) (*Pipeline, error) {
	if log == nil {
		log = logging.Global()
	}
	if err := util.EnsureDirectory(cfg.OutputDir); err != nil {
		return nil, errors.NewIOError("creating output directory", err)
	}
	if err := util.RemoveStaleSidecars(cfg.OutputDir); err != nil {
		return nil, errors.NewIOError("removing stale sidecars", err)
	}

	// Frame metadata stays plaintext per the output contract; OCR text and
	// events carry user content and are sealed when enabled.
	var dataEnc *crypt.Manager
	if cfg.Storage.EncryptOutputs {
		dataEnc = enc
	}

	p := &Pipeline{
		cfg:        cfg,
		sampler:    sampler.New(cfg.ExtractionFPS, sampler.NewThumbnailStore(cfg.OutputDir), log),
		scenes:     scene.NewDetector(cfg.Scene, log),
		frames:     store.NewFrameWriter(cfg.OutputDir, cfg.Storage, nil, log),
		ocrWriter:  store.NewOCRWriter(cfg.OutputDir, cfg.Storage, dataEnc, log),
		events:     store.NewEventWriter(cfg.OutputDir, cfg.Storage, dataEnc, log),
		ocrSource:  NullOCRSource{},
		sources:    DefaultSourceFactory,
		tracker:    cursor.NewTracker(cfg.Cursor),
		correlator: correlate.New(cfg.Correlation, log),
		rep:        reporter.NullReporter{},
		log:        log,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.nav == nil {
		WithProbe(&probe.StaticProbe{})(p)
	}
	return p, nil
}

// ProcessSegments runs all segments, at most MaxConcurrentProcessing in
// flight. Per-segment decode failures are skipped; storage failures abort.
func (p *Pipeline) ProcessSegments(ctx context.Context, paths []string) ([]worker.SegmentResult, error) {
	if len(paths) > 1 {
		names := make([]string, len(paths))
		for i, path := range paths {
			names[i] = util.GetFilename(path)
		}
		p.rep.BatchStarted(reporter.BatchStartInfo{
			TotalSegments: len(paths),
			SegmentList:   names,
			OutputDir:     p.cfg.OutputDir,
		})
	}

	results := make([]worker.SegmentResult, len(paths))
	sem := worker.NewSemaphore(p.cfg.MaxConcurrentProcessing)

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-sem.Chan():
			}
			defer sem.Release()

			p.rep.SegmentStarted(reporter.SegmentStartInfo{
				SegmentID:      util.GetFilename(path),
				SourcePath:     path,
				CurrentSegment: i + 1,
				TotalSegments:  len(paths),
			})

			start := time.Now()
			res, err := p.ProcessSegment(gctx, path)
			res.Error = err
			results[i] = res

			if err != nil {
				if errors.IsSegmentSkippable(err) {
					results[i].Skipped = true
					results[i].Error = nil
					p.rep.Warning(fmt.Sprintf("skipping segment %s: %v", path, err))
					p.log.Warn("segment skipped", "path", path, "error", err)
					p.rep.SegmentFinished(reporter.SegmentSummary{SegmentID: res.SegmentID, Skipped: true})
					return nil
				}
				p.rep.Error(reporter.ReporterError{
					Title:   "Segment failed",
					Message: err.Error(),
					Context: "Segment: " + path,
				})
				return err
			}

			p.rep.SegmentFinished(reporter.SegmentSummary{
				SegmentID:    res.SegmentID,
				Keyframes:    res.Keyframes,
				SceneChanges: res.SceneChanges,
				Events:       res.Events,
				Correlations: res.Correlations,
				DurationSecs: time.Since(start).Seconds(),
			})
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

// ProcessSegment runs the linear per-segment pipeline.
func (p *Pipeline) ProcessSegment(ctx context.Context, path string) (worker.SegmentResult, error) {
	created := time.Now()
	if info, err := os.Stat(path); err == nil {
		created = info.ModTime()
	}
	segmentID := sampler.SegmentID(path, created)
	monitorID := sampler.MonitorIDFromSegment(segmentID)
	result := worker.SegmentResult{SegmentID: segmentID}

	src, err := p.sources(path)
	if err != nil {
		return result, err
	}
	defer func() { _ = src.Close() }()

	frames, err := p.sampler.Sample(ctx, src, segmentID, monitorID)
	if err != nil {
		return result, err
	}
	result.Keyframes = len(frames)
	if len(frames) == 0 {
		return result, nil
	}

	refs := make([]scene.FrameRef, len(frames))
	for i, f := range frames {
		refs[i] = scene.FrameRef{Index: f.FrameIndex, TimestampNs: f.TimestampNs, Path: f.Path}
	}
	changes := p.scenes.DetectFiles(refs)
	result.SceneChanges = len(changes)

	analyzer := delta.NewAnalyzer(p.cfg.Delta, errormodal.NewDetector(p.cfg.ErrorModal, p.log), p.log)

	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return result, errors.NewCancelledError()
		}

		frameID := fmt.Sprintf("frame_%s_%d", segmentID, frame.FrameIndex)
		frameTime := created.Add(time.Duration(frame.TimestampNs))

		appName, winTitle := p.activeAppInfo()
		if err := p.frames.Write(store.FrameMetadata{
			TsNs:      frame.TimestampNs,
			MonitorID: frame.MonitorID,
			SegmentID: segmentID,
			Path:      frame.Path,
			PHash16:   int64(scene.PHash(frame.Image)),
			Entropy:   float32(scene.Entropy(frame.Image)),
			AppName:   appName,
			WinTitle:  winTitle,
			Width:     frame.Width,
			Height:    frame.Height,
		}); err != nil {
			return result, err
		}

		ocrResults, err := p.ocrSource.ResultsForFrame(frameID)
		if err != nil {
			return result, err
		}
		if p.persistOCR && len(ocrResults) > 0 {
			if err := p.ocrWriter.Write(ocrResults...); err != nil {
				return result, err
			}
		}

		detected := analyzer.AnalyzeFrame(frameID, ocrResults, frameTime, float32(frame.Width), float32(frame.Height))
		detected = append(detected, p.observeNavigation(frameID, frameTime)...)

		if len(detected) > 0 {
			if err := p.events.Write(detected...); err != nil {
				return result, err
			}
			result.Events += len(detected)
		}

		p.sharedMu.Lock()
		for _, ev := range detected {
			p.correlator.AddDetected(ev)
		}
		correlations := p.correlator.Analyze(frameTime)
		p.sharedMu.Unlock()
		result.Correlations += len(correlations)

		p.rep.SegmentProgress(float64(i+1) / float64(len(frames)) * 100)
	}

	return result, nil
}

// observeNavigation polls the probes once for a frame, feeding the cursor
// tracker and the correlator, and returns navigation events to persist.
func (p *Pipeline) observeNavigation(frameID string, ts time.Time) []event.Detected {
	p.sharedMu.Lock()
	defer p.sharedMu.Unlock()

	var out []event.Detected

	if pos, err := p.navProbe.CurrentCursor(); err == nil {
		pos.Timestamp = ts
		p.correlator.AddCursorPosition(pos, frameID)
		if click := p.tracker.Observe(pos); click != nil {
			p.correlator.AddClick(*click, frameID)
		}
	}

	for _, change := range p.nav.Poll(ts) {
		p.correlator.AddNavigationChange(change, frameID)

		ev := event.New(event.Navigation, string(change.Kind), frameID, ts)
		ev.Confidence = change.Confidence
		switch change.Kind {
		case probe.TabChanged:
			ev = ev.WithValueTo(change.Tab.TabTitle)
			ev.Metadata["url"] = change.Tab.URL
		case probe.FocusChanged:
			ev = ev.WithValues(change.FromApp, change.ToApp)
		default:
			ev = ev.WithValueTo(change.Window.AppName + ": " + change.Window.WindowTitle)
		}
		out = append(out, ev)
	}
	return out
}

// activeAppInfo returns the frontmost app and window title, cached for one
// second to avoid hammering the probe on every frame.
func (p *Pipeline) activeAppInfo() (string, string) {
	p.sharedMu.Lock()
	defer p.sharedMu.Unlock()

	if time.Since(p.appCache.fetched) < time.Second && p.appCache.appName != "" {
		return p.appCache.appName, p.appCache.winTitle
	}

	w, err := p.navProbe.CurrentWindow()
	if err != nil {
		return "Unknown", "Unknown"
	}
	p.appCache.appName = w.AppName
	p.appCache.winTitle = w.WindowTitle
	p.appCache.fetched = time.Now()
	return w.AppName, w.WindowTitle
}

// Finalize flushes all in-flight batches. Required before process exit or
// the last partial batch is lost.
func (p *Pipeline) Finalize() error {
	var firstErr error
	for _, flush := range []func() error{p.frames.Flush, p.ocrWriter.Flush, p.events.Flush} {
		if err := flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CorrelationPatterns exposes the correlator's per-kind statistics.
func (p *Pipeline) CorrelationPatterns() map[correlate.ResultKind]correlate.PatternStats {
	p.sharedMu.Lock()
	defer p.sharedMu.Unlock()
	return p.correlator.Patterns()
}

// ProbeMetrics exposes the probe failure counters.
func (p *Pipeline) ProbeMetrics() *probe.Metrics {
	return p.navProbe.Metrics()
}
