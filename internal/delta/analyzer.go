// Package delta detects semantic UI events by diffing OCR results across
// consecutive frames: field edits, new data entry, submissions, and the
// error/modal families surfaced by the pattern classifier.
package delta

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/halward/screenidx/internal/config"
	"github.com/halward/screenidx/internal/errormodal"
	"github.com/halward/screenidx/internal/event"
	"github.com/halward/screenidx/internal/logging"
	"github.com/halward/screenidx/internal/ocr"
)

// Vocabulary weights for the standalone single-frame classifiers.
const (
	errorFamilyWeight      = 0.9
	modalFamilyWeight      = 0.85
	submissionFamilyWeight = 0.8
	dataEntryWeight        = 0.8
)

type cachedFrame struct {
	frameID string
	ts      time.Time
	results []ocr.Result
	events  []event.Detected
}

// Analyzer owns the field-state mapping and the recent-frame cache for one
// segment. It is not safe for concurrent use; the pipeline runs one analyzer
// per segment.
type Analyzer struct {
	cfg     config.DeltaConfig
	em      *errormodal.Detector
	tracker *fieldTracker
	cache   []cachedFrame
	log     *logging.Logger
}

// NewAnalyzer creates an analyzer. The error/modal detector may be nil to
// disable that classifier family.
func NewAnalyzer(cfg config.DeltaConfig, em *errormodal.Detector, log *logging.Logger) *Analyzer {
	if log == nil {
		log = logging.Global()
	}
	return &Analyzer{
		cfg:     cfg,
		em:      em,
		tracker: newFieldTracker(),
		log:     log,
	}
}

// AnalyzeFrame runs the full delta pass for one frame and returns the events
// that survive the confidence threshold. The field tracker and frame cache
// are updated after emission, so within-frame comparisons always see the
// previous state.
func (a *Analyzer) AnalyzeFrame(frameID string, results []ocr.Result, ts time.Time, screenW, screenH float32) []event.Detected {
	var high []ocr.Result
	for _, r := range results {
		if r.Confidence >= a.cfg.MinOCRConfidence {
			high = append(high, r)
		}
	}
	if len(high) == 0 {
		a.log.Debug("no high-confidence OCR results", "frame", frameID)
		return nil
	}

	var events []event.Detected

	if prev, ok := a.previousFrame(ts); ok {
		events = append(events, a.deltaAgainst(frameID, high, prev.results, ts)...)
	}

	// The pattern detector runs first; the coarse vocabulary scan then only
	// fills kinds it did not already cover, so one on-screen error yields
	// one event.
	covered := make(map[event.Type]bool)
	if a.em != nil {
		for _, em := range a.em.Detect(frameID, results, ts, screenW, screenH) {
			ev := convertErrorModal(em)
			covered[ev.Type] = true
			events = append(events, ev)
		}
	}

	events = append(events, a.standaloneEvents(frameID, high, ts, covered)...)

	if a.cfg.EnableTemporalContext {
		for i := range events {
			a.applyTemporalContext(&events[i])
		}
	}

	var final []event.Detected
	for _, ev := range events {
		if ev.Confidence >= a.cfg.MinEventConfidence {
			final = append(final, ev)
		}
	}

	// State updates happen last so this frame's comparisons used the
	// previous state.
	for _, r := range high {
		a.tracker.observe(r, ts, r.Confidence)
	}
	a.pushFrame(cachedFrame{frameID: frameID, ts: ts, results: high, events: final})

	a.log.Debug("frame analyzed", "frame", frameID, "regions", len(high), "events", len(final))
	return final
}

// previousFrame returns the most recently inserted cache entry, unless it is
// older than the configured frame gap.
func (a *Analyzer) previousFrame(ts time.Time) (cachedFrame, bool) {
	if len(a.cache) == 0 {
		return cachedFrame{}, false
	}
	prev := a.cache[len(a.cache)-1]
	if a.cfg.MaxFrameGapSeconds > 0 && ts.Sub(prev.ts).Seconds() > a.cfg.MaxFrameGapSeconds {
		return cachedFrame{}, false
	}
	return prev, true
}

func (a *Analyzer) pushFrame(f cachedFrame) {
	a.cache = append(a.cache, f)
	for len(a.cache) > a.cfg.MaxPreviousFrames {
		a.cache = a.cache[1:]
	}
}

// deltaAgainst matches current regions to the previous frame by IoU, diffs
// matched pairs, and flags unmatched regions that look interactive.
func (a *Analyzer) deltaAgainst(frameID string, current, previous []ocr.Result, ts time.Time) []event.Detected {
	var events []event.Detected
	matched := make(map[int]bool, len(current))

	for ci, cur := range current {
		bestIoU := a.cfg.MinIoUThreshold
		bestIdx := -1
		for pi, prev := range previous {
			if iou := cur.ROI.IoU(prev.ROI); iou > bestIoU {
				bestIoU = iou
				bestIdx = pi
			}
		}
		if bestIdx < 0 {
			continue
		}
		matched[ci] = true

		prev := previous[bestIdx]
		if cur.Text == prev.Text {
			continue
		}

		sim := TextSimilarity(cur.Text, prev.Text)
		avgConf := (cur.Confidence + prev.Confidence) / 2
		confidence := clamp01(0.4*avgConf + 0.3*bestIoU + 0.3*(1-sim))

		ev := event.New(event.FieldChange, FieldID(cur.ROI), frameID, ts).WithValues(prev.Text, cur.Text)
		ev.Confidence = confidence
		ev.Metadata = regionMetadata(cur)
		events = append(events, ev)
	}

	for ci, cur := range current {
		if matched[ci] {
			continue
		}
		overlapsPrev := false
		for _, prev := range previous {
			if cur.ROI.IoU(prev.ROI) >= a.cfg.MinIoUThreshold {
				overlapsPrev = true
				break
			}
		}
		if overlapsPrev || !isInteractiveElement(cur.Text) {
			continue
		}

		ev := event.New(event.DataEntry, FieldID(cur.ROI), frameID, ts).WithValueTo(cur.Text)
		ev.Confidence = cur.Confidence * dataEntryWeight
		ev.Metadata = regionMetadata(cur)
		events = append(events, ev)
	}

	return events
}

// standaloneEvents scans each region for the error, modal, and submission
// vocabularies.
func (a *Analyzer) standaloneEvents(frameID string, results []ocr.Result, ts time.Time, covered map[event.Type]bool) []event.Detected {
	var events []event.Detected
	for _, r := range results {
		if !covered[event.ErrorDisplay] && isErrorText(r.Text) {
			ev := event.New(event.ErrorDisplay, "error_dialog", frameID, ts).WithValueTo(r.Text)
			ev.Confidence = r.Confidence * errorFamilyWeight
			ev.Metadata = regionMetadata(r)
			events = append(events, ev)
		}
		if !covered[event.ModalAppearance] && isModalText(r.Text) {
			ev := event.New(event.ModalAppearance, "modal_dialog", frameID, ts).WithValueTo(r.Text)
			ev.Confidence = r.Confidence * modalFamilyWeight
			ev.Metadata = regionMetadata(r)
			events = append(events, ev)
		}
		if isSubmissionText(r.Text) {
			ev := event.New(event.FormSubmission, "form_submit", frameID, ts).WithValueTo(r.Text)
			ev.Confidence = r.Confidence * submissionFamilyWeight
			ev.Metadata = regionMetadata(r)
			events = append(events, ev)
		}
	}
	return events
}

// applyTemporalContext adjusts confidence by how often the same (kind,
// target) appeared across the cached frames.
func (a *Analyzer) applyTemporalContext(ev *event.Detected) {
	if len(a.cache) == 0 {
		return
	}

	matches := 0
	for _, f := range a.cache {
		for _, prev := range f.events {
			if prev.Type == ev.Type && prev.Target == ev.Target {
				matches++
				break
			}
		}
	}

	frequency := float32(matches) / float32(len(a.cache))
	var pattern string
	var boost float32
	switch {
	case frequency > 0.7:
		pattern, boost = "frequent_pattern", 0.10
	case frequency > 0.3:
		pattern, boost = "occasional_pattern", 0.05
	default:
		pattern, boost = "rare_event", -0.05
	}

	ev.Confidence = clamp01(ev.Confidence + boost)
	ev.Metadata["temporal_pattern"] = pattern
	ev.Metadata["pattern_confidence"] = fmt.Sprintf("%.2f", frequency)
}

// FieldChanges returns the accumulated field change history.
func (a *Analyzer) FieldChanges() []FieldChange {
	return a.tracker.History()
}

// FieldStates returns the current field-state mapping.
func (a *Analyzer) FieldStates() map[string]FieldState {
	return a.tracker.States()
}

// Reset clears the frame cache and the field tracker.
func (a *Analyzer) Reset() {
	a.cache = nil
	a.tracker = newFieldTracker()
}

func convertErrorModal(em errormodal.Event) event.Detected {
	kind := event.ModalAppearance
	if em.Family.IsError() {
		kind = event.ErrorDisplay
	}

	ev := event.New(kind, string(em.Family), em.FrameID, em.Timestamp).WithValueTo(em.Message)
	ev.ID = em.ID
	ev.Confidence = em.Confidence
	for k, v := range em.Metadata {
		ev.Metadata[k] = v
	}
	ev.Metadata["severity"] = string(em.Severity)
	ev.Metadata["title"] = em.Title
	ev.Metadata["roi_x"] = fmt.Sprintf("%.0f", em.ROI.X)
	ev.Metadata["roi_y"] = fmt.Sprintf("%.0f", em.ROI.Y)
	ev.Metadata["roi_width"] = fmt.Sprintf("%.0f", em.ROI.Width)
	ev.Metadata["roi_height"] = fmt.Sprintf("%.0f", em.ROI.Height)
	if em.Layout != nil {
		ev.Metadata["is_dialog_layout"] = fmt.Sprintf("%t", em.Layout.IsDialogLayout)
		ev.Metadata["is_centered"] = fmt.Sprintf("%t", em.Layout.IsCentered)
	}
	return ev
}

func regionMetadata(r ocr.Result) map[string]string {
	return map[string]string{
		"language":   r.Language,
		"processor":  r.Processor,
		"roi_x":      fmt.Sprintf("%.0f", r.ROI.X),
		"roi_y":      fmt.Sprintf("%.0f", r.ROI.Y),
		"roi_width":  fmt.Sprintf("%.0f", r.ROI.Width),
		"roi_height": fmt.Sprintf("%.0f", r.ROI.Height),
	}
}

// isInteractiveElement heuristically spots form fields and inputs.
func isInteractiveElement(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	if strings.HasSuffix(lower, ":") || strings.Contains(lower, "@") {
		return true
	}
	if strings.Contains(lower, "enter") || strings.Contains(lower, "input") ||
		strings.Contains(lower, "select") || strings.Contains(lower, "choose") {
		return true
	}
	for _, r := range text {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var errorVocabulary = []string{
	"error", "failed", "invalid", "incorrect", "wrong",
	"cannot", "unable", "denied", "forbidden", "timeout",
	"exception", "warning", "alert", "problem",
}

var modalVocabulary = []string{
	"confirm", "cancel", "dialog", "popup", "modal", "notification",
}

var submissionVocabulary = []string{
	"submit", "send", "save", "create", "update",
	"login", "register", "sign in", "sign up", "continue",
}

func isErrorText(text string) bool {
	return containsAny(text, errorVocabulary)
}

func isModalText(text string) bool {
	return containsAny(text, modalVocabulary)
}

func isSubmissionText(text string) bool {
	return containsAny(text, submissionVocabulary)
}

func containsAny(text string, vocabulary []string) bool {
	lower := strings.ToLower(text)
	for _, word := range vocabulary {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
