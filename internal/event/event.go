// Package event defines the semantic UI events synthesized by the analyzers.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of a detected event.
type Type string

const (
	// FieldChange is a text field whose value changed between frames.
	FieldChange Type = "field_change"
	// FormSubmission is a submit/save/login style action.
	FormSubmission Type = "form_submission"
	// ModalAppearance is a dialog appearing on screen.
	ModalAppearance Type = "modal_appearance"
	// ErrorDisplay is an error message appearing on screen.
	ErrorDisplay Type = "error_display"
	// Navigation is a window, tab, or focus transition.
	Navigation Type = "navigation"
	// DataEntry is a new interactive element with entered content.
	DataEntry Type = "data_entry"
)

// Detected is a semantic UI event with evidence and confidence scoring.
type Detected struct {
	ID             string
	Timestamp      time.Time
	Type           Type
	Target         string
	ValueFrom      string
	ValueTo        string
	HasValueFrom   bool
	HasValueTo     bool
	Confidence     float32
	EvidenceFrames []string
	Metadata       map[string]string
}

// New creates an event with a fresh unique id and a single evidence frame.
func New(kind Type, target, frameID string, ts time.Time) Detected {
	return Detected{
		ID:             uuid.NewString(),
		Timestamp:      ts,
		Type:           kind,
		Target:         target,
		EvidenceFrames: []string{frameID},
		Metadata:       make(map[string]string),
	}
}

// WithValues sets the from/to values on the event.
func (d Detected) WithValues(from, to string) Detected {
	d.ValueFrom, d.HasValueFrom = from, true
	d.ValueTo, d.HasValueTo = to, true
	return d
}

// WithValueTo sets only the new value on the event.
func (d Detected) WithValueTo(to string) Detected {
	d.ValueTo, d.HasValueTo = to, true
	return d
}

// Valid reports whether the event satisfies the store invariants:
// confidence in [0,1] and at least one evidence frame.
func (d Detected) Valid() bool {
	return d.Confidence >= 0 && d.Confidence <= 1 && len(d.EvidenceFrames) > 0
}
