package delta

import (
	"fmt"
	"testing"
	"time"

	"github.com/halward/screenidx/internal/config"
	"github.com/halward/screenidx/internal/errormodal"
	"github.com/halward/screenidx/internal/event"
	"github.com/halward/screenidx/internal/ocr"
)

func deltaDefaults() config.DeltaConfig {
	return config.NewConfig("./out").Delta
}

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	cfg := config.NewConfig("./out")
	em := errormodal.NewDetector(cfg.ErrorModal, nil)
	return NewAnalyzer(cfg.Delta, em, nil)
}

func region(frameID, text string, x, y, w, h, conf float32) ocr.Result {
	return ocr.Result{
		FrameID:     frameID,
		ROI:         ocr.NewBoundingBox(x, y, w, h),
		Text:        text,
		Language:    "en-US",
		Confidence:  conf,
		ProcessedAt: time.Now(),
		Processor:   "vision",
	}
}

func eventsOfType(events []event.Detected, kind event.Type) []event.Detected {
	var out []event.Detected
	for _, ev := range events {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}

func TestFieldChangeScenario(t *testing.T) {
	a := newTestAnalyzer(t)
	base := time.Now()

	f1 := []ocr.Result{
		region("f1", "Username:", 10, 50, 80, 20, 0.95),
		region("f1", "", 100, 50, 200, 20, 0.8),
	}
	a.AnalyzeFrame("f1", f1, base, 1920, 1080)

	f2 := []ocr.Result{
		region("f2", "Username:", 10, 50, 80, 20, 0.95),
		region("f2", "john.doe", 100, 50, 200, 20, 0.92),
	}
	events := a.AnalyzeFrame("f2", f2, base.Add(time.Second), 1920, 1080)

	changes := eventsOfType(events, event.FieldChange)
	if len(changes) != 1 {
		t.Fatalf("got %d FieldChange events, want 1", len(changes))
	}
	ch := changes[0]
	if ch.ValueFrom != "" || ch.ValueTo != "john.doe" {
		t.Errorf("values = (%q, %q), want (\"\", \"john.doe\")", ch.ValueFrom, ch.ValueTo)
	}
	if ch.Target != "field_100_50_200_20" {
		t.Errorf("target = %q, want field_100_50_200_20", ch.Target)
	}
	if ch.Confidence < 0.6 {
		t.Errorf("confidence = %v, want >= 0.6", ch.Confidence)
	}
	if len(ch.EvidenceFrames) == 0 {
		t.Error("evidence frames must be non-empty")
	}
}

func TestErrorDisplayScenario(t *testing.T) {
	a := newTestAnalyzer(t)

	events := a.AnalyzeFrame("f1", []ocr.Result{
		region("f1", "Fatal error: System crash detected", 100, 100, 400, 60, 0.95),
	}, time.Now(), 1920, 1080)

	errs := eventsOfType(events, event.ErrorDisplay)
	if len(errs) != 1 {
		t.Fatalf("got %d ErrorDisplay events, want 1", len(errs))
	}
	if errs[0].Metadata["severity"] != "critical" {
		t.Errorf("severity = %q, want critical", errs[0].Metadata["severity"])
	}
}

func TestModalLayoutScenario(t *testing.T) {
	a := newTestAnalyzer(t)

	events := a.AnalyzeFrame("f1", []ocr.Result{
		region("f1", "Confirm deletion", 400, 250, 200, 30, 0.9),
		region("f1", "Are you sure you want to delete this file?", 350, 300, 300, 40, 0.9),
		region("f1", "Yes    No", 450, 360, 100, 30, 0.9),
	}, time.Now(), 1000, 600)

	modals := eventsOfType(events, event.ModalAppearance)
	if len(modals) == 0 {
		t.Fatal("expected at least one ModalAppearance")
	}

	found := false
	for _, m := range modals {
		if m.Metadata["is_dialog_layout"] == "true" && m.Metadata["is_centered"] == "true" {
			found = true
		}
	}
	if !found {
		t.Error("no modal carried centered dialog-layout metadata")
	}
}

func TestDataEntryOnNewInteractiveRegion(t *testing.T) {
	a := newTestAnalyzer(t)
	base := time.Now()

	a.AnalyzeFrame("f1", []ocr.Result{
		region("f1", "Welcome", 10, 10, 100, 20, 0.9),
	}, base, 1920, 1080)

	events := a.AnalyzeFrame("f2", []ocr.Result{
		region("f2", "Welcome", 10, 10, 100, 20, 0.9),
		region("f2", "Email:", 10, 200, 120, 20, 0.9),
	}, base.Add(time.Second), 1920, 1080)

	entries := eventsOfType(events, event.DataEntry)
	if len(entries) != 1 {
		t.Fatalf("got %d DataEntry events, want 1", len(entries))
	}
	if entries[0].ValueTo != "Email:" {
		t.Errorf("ValueTo = %q, want \"Email:\"", entries[0].ValueTo)
	}
}

func TestLowConfidenceOCRFiltered(t *testing.T) {
	a := newTestAnalyzer(t)

	events := a.AnalyzeFrame("f1", []ocr.Result{
		region("f1", "Fatal error everywhere", 10, 10, 100, 20, 0.4),
	}, time.Now(), 1920, 1080)

	if len(events) != 0 {
		t.Errorf("got %d events from low-confidence OCR, want 0", len(events))
	}
}

func TestFieldStateUpdatedAfterEmission(t *testing.T) {
	a := newTestAnalyzer(t)
	base := time.Now()

	a.AnalyzeFrame("f1", []ocr.Result{region("f1", "draft", 10, 10, 100, 20, 0.9)}, base, 1920, 1080)
	a.AnalyzeFrame("f2", []ocr.Result{region("f2", "final", 10, 10, 100, 20, 0.9)}, base.Add(time.Second), 1920, 1080)

	states := a.FieldStates()
	st, ok := states["field_10_10_100_20"]
	if !ok {
		t.Fatal("field state missing")
	}
	if st.Value != "final" {
		t.Errorf("tracked value = %q, want final", st.Value)
	}

	history := a.FieldChanges()
	if len(history) != 1 {
		t.Fatalf("got %d field changes, want 1", len(history))
	}
	if history[0].ValueFrom != "draft" || history[0].ValueTo != "final" {
		t.Errorf("change = (%q -> %q)", history[0].ValueFrom, history[0].ValueTo)
	}
}

func TestFrameGapResetsComparator(t *testing.T) {
	a := newTestAnalyzer(t)
	base := time.Now()

	a.AnalyzeFrame("f1", []ocr.Result{region("f1", "old", 10, 10, 100, 20, 0.9)}, base, 1920, 1080)

	// Next frame far beyond max_frame_gap_seconds: no delta comparison.
	events := a.AnalyzeFrame("f2", []ocr.Result{
		region("f2", "new", 10, 10, 100, 20, 0.9),
	}, base.Add(time.Minute), 1920, 1080)

	if got := eventsOfType(events, event.FieldChange); len(got) != 0 {
		t.Errorf("got %d FieldChange events across a stale gap, want 0", len(got))
	}
}

func TestTemporalContextBoost(t *testing.T) {
	a := newTestAnalyzer(t)
	base := time.Now()

	var confidences []float32
	for i := 1; i <= 5; i++ {
		frameID := fmt.Sprintf("f%d", i)
		events := a.AnalyzeFrame(frameID, []ocr.Result{
			region(frameID, "Error: Invalid input", 10, 10, 200, 20, 0.9),
		}, base.Add(time.Duration(i)*time.Second), 1920, 1080)

		for _, ev := range eventsOfType(events, event.ErrorDisplay) {
			confidences = append(confidences, ev.Confidence)
		}
	}

	if len(confidences) < 4 {
		t.Fatalf("expected error events on repeated frames, got %d", len(confidences))
	}
	last := confidences[len(confidences)-1]
	first := confidences[0]
	if last <= first {
		t.Errorf("repeated pattern should gain confidence: first %v, last %v", first, last)
	}
}

func TestFrameCacheBounded(t *testing.T) {
	cfg := deltaDefaults()
	cfg.MaxPreviousFrames = 3
	a := NewAnalyzer(cfg, nil, nil)
	base := time.Now()

	for i := 0; i < 10; i++ {
		frameID := fmt.Sprintf("f%d", i)
		a.AnalyzeFrame(frameID, []ocr.Result{
			region(frameID, "steady", 10, 10, 100, 20, 0.9),
		}, base.Add(time.Duration(i)*time.Second), 1920, 1080)
	}

	if len(a.cache) != 3 {
		t.Errorf("cache length = %d, want 3", len(a.cache))
	}
	if a.cache[len(a.cache)-1].frameID != "f9" {
		t.Errorf("most recent cache entry = %s, want f9", a.cache[len(a.cache)-1].frameID)
	}
}

func TestDeterministicFieldIDs(t *testing.T) {
	roi := ocr.NewBoundingBox(100.7, 50.2, 200.9, 20.1)
	a := FieldID(roi)
	b := FieldID(roi)
	if a != b || a != "field_100_50_200_20" {
		t.Errorf("FieldID = %q / %q, want stable field_100_50_200_20", a, b)
	}
}

func TestInteractiveElementHeuristics(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Username:", true},
		{"user@example.com", true},
		{"12345", true},
		{"Enter your name", true},
		{"Choose a file", true},
		{"Welcome back", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isInteractiveElement(tt.text); got != tt.want {
			t.Errorf("isInteractiveElement(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestTextSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float32
	}{
		{"same", "same", 1},
		{"", "abc", 0},
		{"abc", "", 0},
		{"kitten", "sitting", 1 - 3.0/7.0},
	}
	for _, tt := range tests {
		got := TextSimilarity(tt.a, tt.b)
		if diff := got - tt.want; diff < -0.001 || diff > 0.001 {
			t.Errorf("TextSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTextSimilarityBounded(t *testing.T) {
	// Strings longer than the bound still compare, using the prefix.
	long1 := make([]byte, 10000)
	long2 := make([]byte, 10000)
	for i := range long1 {
		long1[i] = 'a'
		long2[i] = 'a'
	}
	long2[0] = 'b'
	got := TextSimilarity(string(long1), string(long2))
	if got < 0.99 {
		t.Errorf("near-identical long strings similarity = %v, want > 0.99", got)
	}
}
