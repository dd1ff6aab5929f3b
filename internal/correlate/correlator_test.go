package correlate

import (
	"testing"
	"time"

	"github.com/halward/screenidx/internal/config"
	"github.com/halward/screenidx/internal/cursor"
	"github.com/halward/screenidx/internal/event"
	"github.com/halward/screenidx/internal/probe"
)

func correlationDefaults() config.CorrelationConfig {
	return config.NewConfig("./out").Correlation
}

func click(x, y float32, at time.Time) cursor.Click {
	return cursor.Click{
		Position:   probe.CursorPosition{X: x, Y: y, Timestamp: at},
		Confidence: 0.9,
	}
}

func resultsOfKind(results []Result, kind ResultKind) []Result {
	var out []Result
	for _, r := range results {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func TestTemporalClickThenWindowChange(t *testing.T) {
	c := New(correlationDefaults(), nil)
	base := time.Now()

	c.AddClick(click(100, 100, base), "f1")
	c.AddNavigationChange(probe.Change{
		Kind:       probe.WindowChanged,
		Window:     probe.WindowState{AppName: "Browser", WindowTitle: "Home"},
		Confidence: 0.9,
		Timestamp:  base.Add(200 * time.Millisecond),
	}, "f2")

	results := c.Analyze(base.Add(300 * time.Millisecond))

	got := resultsOfKind(results, CursorToScreenChange)
	if len(got) == 0 {
		t.Fatal("expected CursorToScreenChange correlation")
	}
	r := got[0]
	if r.Evidence.TemporalProximityMs != 200 {
		t.Errorf("temporal proximity = %d, want 200", r.Evidence.TemporalProximityMs)
	}
	if len(r.EventIDs) != 2 {
		t.Errorf("event ids = %v, want 2", r.EventIDs)
	}
	if r.Confidence < 0.6 {
		t.Errorf("confidence = %v, want >= 0.6", r.Confidence)
	}
}

func TestSpatialClickNearFieldChange(t *testing.T) {
	c := New(correlationDefaults(), nil)
	base := time.Now()

	c.AddClick(click(110, 55, base), "f1")

	ev := event.New(event.FieldChange, "field_100_50_200_20", "f2", base.Add(100*time.Millisecond))
	ev.Confidence = 0.9
	ev.Metadata["roi_x"] = "100"
	ev.Metadata["roi_y"] = "50"
	ev.Metadata["roi_width"] = "200"
	ev.Metadata["roi_height"] = "20"
	c.AddDetected(ev)

	results := c.Analyze(base.Add(200 * time.Millisecond))

	var spatial *Result
	for i := range results {
		if results[i].Evidence.HasSpatial {
			spatial = &results[i]
			break
		}
	}
	if spatial == nil {
		t.Fatal("expected a spatial correlation")
	}
	if spatial.Kind != CursorToScreenChange {
		t.Errorf("kind = %s, want CursorToScreenChange", spatial.Kind)
	}
	if spatial.Evidence.SpatialProximityPx > 50 {
		t.Errorf("spatial proximity = %v, want <= radius", spatial.Evidence.SpatialProximityPx)
	}
}

func TestSpatialOutsideRadius(t *testing.T) {
	cfg := correlationDefaults()
	cfg.EnableTemporal = false
	cfg.EnableCausal = false
	c := New(cfg, nil)
	base := time.Now()

	c.AddClick(click(900, 900, base), "f1")
	ev := event.New(event.FieldChange, "field_0_0_10_10", "f2", base.Add(100*time.Millisecond))
	ev.Confidence = 0.9
	ev.Metadata["roi_x"] = "0"
	ev.Metadata["roi_y"] = "0"
	c.AddDetected(ev)

	if results := c.Analyze(base.Add(200 * time.Millisecond)); len(results) != 0 {
		t.Errorf("far-apart events produced %d spatial correlations, want 0", len(results))
	}
}

func TestCausalErrorRecovery(t *testing.T) {
	cfg := correlationDefaults()
	cfg.EnableTemporal = false
	cfg.EnableSpatial = false
	c := New(cfg, nil)
	base := time.Now()

	ev := event.New(event.ModalAppearance, "confirmation_dialog", "f1", base)
	ev.Confidence = 0.9
	c.AddDetected(ev)
	c.AddClick(click(500, 300, base.Add(400*time.Millisecond)), "f2")

	results := c.Analyze(base.Add(500 * time.Millisecond))
	got := resultsOfKind(results, ErrorRecovery)
	if len(got) != 1 {
		t.Fatalf("got %d ErrorRecovery results, want 1", len(got))
	}
	if got[0].Evidence.CausalStrength != 0.75 {
		t.Errorf("causal strength = %v, want 0.75", got[0].Evidence.CausalStrength)
	}
}

func TestWindowEviction(t *testing.T) {
	c := New(correlationDefaults(), nil)
	base := time.Now()

	c.AddClick(click(1, 1, base), "f1")
	c.AddClick(click(2, 2, base.Add(100*time.Millisecond)), "f2")

	// Analyze far in the future: everything is older than the window.
	c.Analyze(base.Add(time.Minute))
	if c.BufferLen() != 0 {
		t.Errorf("buffer length after eviction = %d, want 0", c.BufferLen())
	}
}

func TestBufferBounded(t *testing.T) {
	c := New(correlationDefaults(), nil)
	base := time.Now()

	for i := 0; i < maxBufferSize+100; i++ {
		c.AddCursorPosition(probe.CursorPosition{
			X: float32(i), Y: float32(i),
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
		}, "f")
	}
	if c.BufferLen() != maxBufferSize {
		t.Errorf("buffer length = %d, want %d", c.BufferLen(), maxBufferSize)
	}
}

func TestBufferSortedOnInsert(t *testing.T) {
	c := New(correlationDefaults(), nil)
	base := time.Now()

	// Insert out of order.
	c.AddClick(click(1, 1, base.Add(300*time.Millisecond)), "f3")
	c.AddClick(click(2, 2, base), "f1")
	c.AddClick(click(3, 3, base.Add(150*time.Millisecond)), "f2")

	for i := 1; i < len(c.buffer); i++ {
		if c.buffer[i].Timestamp.Before(c.buffer[i-1].Timestamp) {
			t.Fatal("buffer not sorted by timestamp")
		}
	}
}

func TestPatternStatistics(t *testing.T) {
	c := New(correlationDefaults(), nil)
	base := time.Now()

	c.AddClick(click(100, 100, base), "f1")
	c.AddNavigationChange(probe.Change{
		Kind:       probe.WindowChanged,
		Confidence: 0.9,
		Timestamp:  base.Add(100 * time.Millisecond),
	}, "f2")
	c.Analyze(base.Add(200 * time.Millisecond))

	patterns := c.Patterns()
	stats, ok := patterns[CursorToScreenChange]
	if !ok {
		t.Fatal("expected CursorToScreenChange pattern stats")
	}
	if stats.Occurrences < 1 {
		t.Errorf("occurrences = %d, want >= 1", stats.Occurrences)
	}
	if stats.MeanConfidence <= 0 || stats.MeanConfidence > 1 {
		t.Errorf("mean confidence = %v, outside (0, 1]", stats.MeanConfidence)
	}
}

func TestDisabledRuleSets(t *testing.T) {
	cfg := correlationDefaults()
	cfg.EnableTemporal = false
	cfg.EnableSpatial = false
	cfg.EnableCausal = false
	c := New(cfg, nil)
	base := time.Now()

	c.AddClick(click(100, 100, base), "f1")
	c.AddNavigationChange(probe.Change{
		Kind: probe.WindowChanged, Confidence: 0.9, Timestamp: base.Add(100 * time.Millisecond),
	}, "f2")

	if results := c.Analyze(base.Add(200 * time.Millisecond)); len(results) != 0 {
		t.Errorf("all rules disabled but got %d results", len(results))
	}
}
