package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/halward/screenidx/internal/config"
	"github.com/halward/screenidx/internal/event"
	"github.com/halward/screenidx/internal/ocr"
	"github.com/halward/screenidx/internal/probe"
	"github.com/halward/screenidx/internal/store"
)

// mapOCRSource serves canned OCR records keyed by frame ordinal, ignoring
// the timestamped segment id embedded in frame ids.
type mapOCRSource struct {
	byOrdinal map[int][]ocr.Result
}

func (m mapOCRSource) ResultsForFrame(frameID string) ([]ocr.Result, error) {
	parts := strings.Split(frameID, "_")
	var n int
	if _, err := fmt.Sscanf(parts[len(parts)-1], "%d", &n); err != nil {
		return nil, nil
	}
	return m.byOrdinal[n], nil
}

func writeSegmentDir(t *testing.T, root string, shades []uint8) string {
	t.Helper()
	dir := filepath.Join(root, "capture_monitor_1.mp4")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for i, shade := range shades {
		img := image.NewGray(image.Rect(0, 0, 128, 128))
		for p := range img.Pix {
			img.Pix[p] = shade
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i)))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
		_ = f.Close()
	}
	return dir
}

func testPipelineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.ExtractionFPS = 30 // keep every decoded frame in tests
	cfg.MaxConcurrentProcessing = 2
	cfg.Storage.EncryptOutputs = false
	return cfg
}

func ocrRegion(text string, x, y, w, h, conf float32) ocr.Result {
	return ocr.Result{
		ROI:        ocr.NewBoundingBox(x, y, w, h),
		Text:       text,
		Language:   "en-US",
		Confidence: conf,
		Processor:  "vision",
	}
}

func TestProcessSegmentEndToEnd(t *testing.T) {
	cfg := testPipelineConfig(t)
	root := t.TempDir()
	seg := writeSegmentDir(t, root, []uint8{0, 0, 0, 255, 255, 255})

	src := mapOCRSource{byOrdinal: map[int][]ocr.Result{
		0: {
			ocrRegion("Username:", 10, 50, 80, 20, 0.95),
			ocrRegion("", 100, 50, 200, 20, 0.8),
		},
		1: {
			ocrRegion("Username:", 10, 50, 80, 20, 0.95),
			ocrRegion("john.doe", 100, 50, 200, 20, 0.92),
		},
	}}

	p, err := New(cfg, nil, nil, WithOCRSource(src, true), WithProbe(&probe.StaticProbe{
		Window: probe.WindowState{AppName: "Browser", WindowTitle: "Login"},
		Cursor: probe.CursorPosition{X: 150, Y: 60},
	}))
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.ProcessSegment(context.Background(), seg)
	if err != nil {
		t.Fatalf("ProcessSegment() error: %v", err)
	}
	if res.Keyframes != 6 {
		t.Errorf("keyframes = %d, want 6", res.Keyframes)
	}
	if res.SceneChanges != 1 {
		t.Errorf("scene changes = %d, want 1 (black to white cut)", res.SceneChanges)
	}
	if res.Events == 0 {
		t.Error("expected at least one detected event")
	}

	if err := p.Finalize(); err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}

	r := store.NewReader(cfg.OutputDir, nil, nil)

	frames, err := r.QueryFrames(store.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 6 {
		t.Fatalf("persisted %d frame rows, want 6", len(frames))
	}
	for _, f := range frames {
		if f.AppName != "Browser" {
			t.Errorf("frame app = %q, want Browser", f.AppName)
		}
		if f.MonitorID != 1 {
			t.Errorf("monitor id = %d, want 1", f.MonitorID)
		}
		if !strings.HasSuffix(f.Path, ".png") {
			t.Errorf("thumbnail path = %q", f.Path)
		}
	}

	changes, err := r.QueryEvents(store.Query{EventType: string(event.FieldChange)})
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 1 {
		t.Fatalf("persisted %d FieldChange events, want 1", len(changes))
	}
	if changes[0].ValueTo != "john.doe" {
		t.Errorf("field change value_to = %q", changes[0].ValueTo)
	}

	ocrRows, err := r.QueryOCR(store.Query{TextContains: "john"})
	if err != nil {
		t.Fatal(err)
	}
	if len(ocrRows) != 1 {
		t.Errorf("persisted OCR rows matching substring = %d, want 1", len(ocrRows))
	}
}

func TestProcessSegmentsSkipsCorrupted(t *testing.T) {
	cfg := testPipelineConfig(t)
	root := t.TempDir()
	good := writeSegmentDir(t, root, []uint8{10, 10})
	missing := filepath.Join(root, "gone_monitor_0.mp4")

	p, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	results, err := p.ProcessSegments(context.Background(), []string{good, missing})
	if err != nil {
		t.Fatalf("ProcessSegments() error: %v", err)
	}
	if results[0].Skipped || results[0].Error != nil {
		t.Errorf("good segment result = %+v", results[0])
	}
	if !results[1].Skipped {
		t.Errorf("missing segment should be skipped, got %+v", results[1])
	}
}

func TestProcessSegmentEmptySource(t *testing.T) {
	cfg := testPipelineConfig(t)
	root := t.TempDir()

	// A directory with a single non-image file: the source reports
	// UnsupportedFormat, which is a skip, not a failure.
	dir := filepath.Join(root, "odd.mp4")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	results, err := p.ProcessSegments(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("ProcessSegments() error: %v", err)
	}
	if !results[0].Skipped {
		t.Errorf("unsupported segment should be skipped: %+v", results[0])
	}
}

func TestFinalizeFlushesPartialBatches(t *testing.T) {
	cfg := testPipelineConfig(t)
	root := t.TempDir()
	seg := writeSegmentDir(t, root, []uint8{40, 40})

	p, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.ProcessSegment(context.Background(), seg); err != nil {
		t.Fatal(err)
	}

	// Before finalize, nothing has hit disk (batch sizes are large).
	files, _ := filepath.Glob(filepath.Join(cfg.OutputDir, "frames_*.parquet"))
	if len(files) != 0 {
		t.Fatalf("expected no frame files before finalize, found %d", len(files))
	}

	if err := p.Finalize(); err != nil {
		t.Fatal(err)
	}
	files, _ = filepath.Glob(filepath.Join(cfg.OutputDir, "frames_*.parquet"))
	if len(files) != 1 {
		t.Errorf("expected 1 frame file after finalize, found %d", len(files))
	}
}

func TestCancellationStopsProcessing(t *testing.T) {
	cfg := testPipelineConfig(t)
	root := t.TempDir()
	seg := writeSegmentDir(t, root, []uint8{1, 2, 3, 4, 5, 6, 7, 8})

	p, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.ProcessSegment(ctx, seg); err == nil {
		t.Error("cancelled context should abort the segment")
	}
}

func TestStaleSidecarsRemovedOnStartup(t *testing.T) {
	cfg := testPipelineConfig(t)
	stale := filepath.Join(cfg.OutputDir, "events_20260101_000000.parquet.tmp.parquet")
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(cfg, nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale sidecar should be removed on startup")
	}
}
