package delta

import (
	"fmt"
	"time"

	"github.com/halward/screenidx/internal/ocr"
)

// FieldState is the tracked state of one on-screen field.
type FieldState struct {
	Value       string
	ROI         ocr.BoundingBox
	LastUpdated time.Time
	Confidence  float32
	FrameID     string
}

// FieldChange records one observed field transition.
type FieldChange struct {
	FieldID    string
	ValueFrom  string
	ValueTo    string
	Timestamp  time.Time
	Confidence float32
}

// fieldTracker keys field state by the deterministic id of a region.
// Entries persist across frames; growth is bounded by the UI surface.
type fieldTracker struct {
	fields  map[string]FieldState
	history []FieldChange
}

func newFieldTracker() *fieldTracker {
	return &fieldTracker{fields: make(map[string]FieldState)}
}

// FieldID derives the synthetic field identifier from the integer-truncated
// ROI. Identical inputs always produce identical ids.
func FieldID(roi ocr.BoundingBox) string {
	return fmt.Sprintf("field_%d_%d_%d_%d",
		int(roi.X), int(roi.Y), int(roi.Width), int(roi.Height))
}

// observe records the current value of a region, appending a change record
// when the value differs from the tracked state.
func (t *fieldTracker) observe(r ocr.Result, ts time.Time, confidence float32) {
	id := FieldID(r.ROI)
	if prev, ok := t.fields[id]; ok && prev.Value != r.Text {
		t.history = append(t.history, FieldChange{
			FieldID:    id,
			ValueFrom:  prev.Value,
			ValueTo:    r.Text,
			Timestamp:  ts,
			Confidence: confidence,
		})
	}
	t.fields[id] = FieldState{
		Value:       r.Text,
		ROI:         r.ROI,
		LastUpdated: ts,
		Confidence:  r.Confidence,
		FrameID:     r.FrameID,
	}
}

// States returns a copy of the current field states.
func (t *fieldTracker) States() map[string]FieldState {
	out := make(map[string]FieldState, len(t.fields))
	for k, v := range t.fields {
		out[k] = v
	}
	return out
}

// History returns the accumulated change records.
func (t *fieldTracker) History() []FieldChange {
	return t.history
}
