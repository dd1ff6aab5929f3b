// Package correlate joins cursor, window, and screen-derived events into
// higher-order correlations within a sliding time window. Three independent
// rule sets run over the window: temporal pairing, spatial proximity, and a
// hardcoded causal table.
package correlate

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/halward/screenidx/internal/config"
	"github.com/halward/screenidx/internal/cursor"
	"github.com/halward/screenidx/internal/event"
	"github.com/halward/screenidx/internal/logging"
	"github.com/halward/screenidx/internal/probe"
)

// maxBufferSize bounds the rolling event ring regardless of window width.
const maxBufferSize = 1000

// EventType identifies a correlatable event modality.
type EventType string

const (
	CursorMovement  EventType = "cursor_movement"
	CursorClick     EventType = "cursor_click"
	WindowChange    EventType = "window_change"
	TabChange       EventType = "tab_change"
	FocusChange     EventType = "focus_change"
	FieldChange     EventType = "field_change"
	ScreenChange    EventType = "screen_change"
	ErrorDisplay    EventType = "error_display"
	ModalAppearance EventType = "modal_appearance"
)

// SpatialInfo locates an event on screen. Width and Height are zero when the
// event has no extent.
type SpatialInfo struct {
	X        float32
	Y        float32
	Width    float32
	Height   float32
	ScreenID int32
}

// Event is the correlator's unified view of one input event.
type Event struct {
	ID         string
	Timestamp  time.Time
	Type       EventType
	Spatial    *SpatialInfo
	Metadata   map[string]string
	Confidence float32
	FrameID    string
}

// ResultKind labels a detected correlation.
type ResultKind string

const (
	CursorToScreenChange   ResultKind = "cursor_to_screen_change"
	ScreenToCursorResponse ResultKind = "screen_to_cursor_response"
	NavigationSequence     ResultKind = "navigation_sequence"
	InteractionWorkflow    ResultKind = "interaction_workflow"
	ErrorRecovery          ResultKind = "error_recovery"
)

// Evidence supports a correlation result.
type Evidence struct {
	TemporalProximityMs int64
	SpatialProximityPx  float32
	HasSpatial          bool
	CausalStrength      float32
	MatchedPattern      string
}

// Result names two or more correlated events.
type Result struct {
	ID         string
	EventIDs   []string
	Kind       ResultKind
	Confidence float32
	Evidence   Evidence
	Timestamp  time.Time
}

// PatternStats tracks per-kind occurrence counts and rolling mean confidence.
type PatternStats struct {
	Kind           ResultKind
	Occurrences    int
	MeanConfidence float32
}

// Correlator owns the rolling event buffer. It is not safe for concurrent
// use; the pipeline owns one correlator.
type Correlator struct {
	cfg      config.CorrelationConfig
	buffer   []Event
	patterns map[ResultKind]*PatternStats
	log      *logging.Logger
}

// New creates a correlator.
func New(cfg config.CorrelationConfig, log *logging.Logger) *Correlator {
	if log == nil {
		log = logging.Global()
	}
	return &Correlator{
		cfg:      cfg,
		patterns: make(map[ResultKind]*PatternStats),
		log:      log,
	}
}

// Add inserts an event keeping the buffer sorted by timestamp and bounded.
func (c *Correlator) Add(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	idx := sort.Search(len(c.buffer), func(i int) bool {
		return c.buffer[i].Timestamp.After(e.Timestamp)
	})
	c.buffer = append(c.buffer, Event{})
	copy(c.buffer[idx+1:], c.buffer[idx:])
	c.buffer[idx] = e

	for len(c.buffer) > maxBufferSize {
		c.buffer = c.buffer[1:]
	}
}

// AddCursorPosition records a cursor movement sample.
func (c *Correlator) AddCursorPosition(pos probe.CursorPosition, frameID string) {
	c.Add(Event{
		Timestamp:  pos.Timestamp,
		Type:       CursorMovement,
		Spatial:    &SpatialInfo{X: pos.X, Y: pos.Y, ScreenID: pos.ScreenID},
		Confidence: 0.9,
		FrameID:    frameID,
	})
}

// AddClick records an inferred click.
func (c *Correlator) AddClick(click cursor.Click, frameID string) {
	c.Add(Event{
		Timestamp:  click.Position.Timestamp,
		Type:       CursorClick,
		Spatial:    &SpatialInfo{X: click.Position.X, Y: click.Position.Y, ScreenID: click.Position.ScreenID},
		Confidence: click.Confidence,
		FrameID:    frameID,
	})
}

// AddNavigationChange records a window, tab, or focus transition.
func (c *Correlator) AddNavigationChange(ch probe.Change, frameID string) {
	kind := WindowChange
	metadata := map[string]string{}
	switch ch.Kind {
	case probe.TabChanged:
		kind = TabChange
		metadata["tab_title"] = ch.Tab.TabTitle
		metadata["url"] = ch.Tab.URL
	case probe.FocusChanged:
		kind = FocusChange
		metadata["from_app"] = ch.FromApp
		metadata["to_app"] = ch.ToApp
	default:
		metadata["app_name"] = ch.Window.AppName
		metadata["window_title"] = ch.Window.WindowTitle
	}

	c.Add(Event{
		Timestamp:  ch.Timestamp,
		Type:       kind,
		Metadata:   metadata,
		Confidence: ch.Confidence,
		FrameID:    frameID,
	})
}

// AddDetected records a screen-derived semantic event. Spatial placement is
// recovered from the roi_* metadata when present.
func (c *Correlator) AddDetected(ev event.Detected) {
	kind := ScreenChange
	switch ev.Type {
	case event.FieldChange:
		kind = FieldChange
	case event.ErrorDisplay:
		kind = ErrorDisplay
	case event.ModalAppearance:
		kind = ModalAppearance
	case event.Navigation:
		kind = ScreenChange
	}

	frameID := ""
	if len(ev.EvidenceFrames) > 0 {
		frameID = ev.EvidenceFrames[0]
	}

	c.Add(Event{
		ID:         ev.ID,
		Timestamp:  ev.Timestamp,
		Type:       kind,
		Spatial:    spatialFromMetadata(ev.Metadata),
		Metadata:   ev.Metadata,
		Confidence: ev.Confidence,
		FrameID:    frameID,
	})
}

func spatialFromMetadata(metadata map[string]string) *SpatialInfo {
	x, okX := parseF32(metadata["roi_x"])
	y, okY := parseF32(metadata["roi_y"])
	if !okX || !okY {
		return nil
	}
	w, _ := parseF32(metadata["roi_width"])
	h, _ := parseF32(metadata["roi_height"])
	return &SpatialInfo{X: x, Y: y, Width: w, Height: h}
}

func parseF32(s string) (float32, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, false
	}
	return float32(v), true
}

// Analyze evicts events older than the window and runs the enabled rule
// sets. Survivors above the confidence floor update the pattern statistics.
func (c *Correlator) Analyze(now time.Time) []Result {
	c.evict(now)
	if len(c.buffer) < 2 {
		return nil
	}

	var results []Result
	if c.cfg.EnableTemporal {
		results = append(results, c.temporalPass()...)
	}
	if c.cfg.EnableSpatial {
		results = append(results, c.spatialPass()...)
	}
	if c.cfg.EnableCausal {
		results = append(results, c.causalPass()...)
	}

	for _, r := range results {
		c.recordPattern(r)
	}

	c.log.Debug("correlation pass complete", "buffered", len(c.buffer), "results", len(results))
	return results
}

func (c *Correlator) evict(now time.Time) {
	cutoff := now.Add(-time.Duration(c.cfg.MaxCorrelationWindowMs) * time.Millisecond)
	i := 0
	for i < len(c.buffer) && c.buffer[i].Timestamp.Before(cutoff) {
		i++
	}
	c.buffer = c.buffer[i:]
}

// temporalRules maps ordered (first, second) event types to a result kind.
var temporalRules = map[[2]EventType]ResultKind{
	{CursorClick, ScreenChange}:    CursorToScreenChange,
	{CursorClick, WindowChange}:    CursorToScreenChange,
	{CursorClick, TabChange}:       CursorToScreenChange,
	{WindowChange, CursorMovement}: ScreenToCursorResponse,
	{WindowChange, TabChange}:      NavigationSequence,
	{TabChange, TabChange}:         NavigationSequence,
	{FocusChange, WindowChange}:    NavigationSequence,
	{CursorClick, FieldChange}:     InteractionWorkflow,
	{ErrorDisplay, CursorClick}:    ErrorRecovery,
}

func (c *Correlator) temporalPass() []Result {
	window := float32(c.cfg.MaxCorrelationWindowMs)
	var results []Result

	for i := 0; i < len(c.buffer); i++ {
		for j := i + 1; j < len(c.buffer); j++ {
			e1, e2 := c.buffer[i], c.buffer[j]
			dtMs := e2.Timestamp.Sub(e1.Timestamp).Milliseconds()
			if dtMs <= 0 || dtMs > c.cfg.MaxCorrelationWindowMs {
				continue
			}
			kind, ok := temporalRules[[2]EventType{e1.Type, e2.Type}]
			if !ok {
				continue
			}

			avg := (e1.Confidence + e2.Confidence) / 2
			confidence := 0.6*(1-float32(dtMs)/window) + 0.4*avg
			if confidence < c.cfg.MinCorrelationConfidence {
				continue
			}

			results = append(results, Result{
				ID:         uuid.NewString(),
				EventIDs:   []string{e1.ID, e2.ID},
				Kind:       kind,
				Confidence: confidence,
				Evidence: Evidence{
					TemporalProximityMs: dtMs,
					CausalStrength:      0.7,
				},
				Timestamp: e2.Timestamp,
			})
		}
	}
	return results
}

// spatialRules maps co-located (first, second) event types to a result kind.
var spatialRules = map[[2]EventType]ResultKind{
	{CursorClick, FieldChange}:    CursorToScreenChange,
	{CursorMovement, FieldChange}: CursorToScreenChange,
	{CursorClick, ErrorDisplay}:   ErrorRecovery,
}

func (c *Correlator) spatialPass() []Result {
	radius := c.cfg.SpatialCorrelationRadius
	var results []Result

	for i := 0; i < len(c.buffer); i++ {
		for j := i + 1; j < len(c.buffer); j++ {
			e1, e2 := c.buffer[i], c.buffer[j]
			if e1.Spatial == nil || e2.Spatial == nil {
				continue
			}
			kind, ok := spatialRules[[2]EventType{e1.Type, e2.Type}]
			if !ok {
				continue
			}

			d := spatialDistance(e1.Spatial, e2.Spatial)
			if d > radius {
				continue
			}

			avg := (e1.Confidence + e2.Confidence) / 2
			confidence := 0.7*(1-d/radius) + 0.3*avg
			if confidence < c.cfg.MinCorrelationConfidence {
				continue
			}

			results = append(results, Result{
				ID:         uuid.NewString(),
				EventIDs:   []string{e1.ID, e2.ID},
				Kind:       kind,
				Confidence: confidence,
				Evidence: Evidence{
					TemporalProximityMs: absMs(e2.Timestamp.Sub(e1.Timestamp)),
					SpatialProximityPx:  d,
					HasSpatial:          true,
					CausalStrength:      0.8,
				},
				Timestamp: e2.Timestamp,
			})
		}
	}
	return results
}

type causalRule struct {
	kind     ResultKind
	strength float32
}

// causalRules assigns strengths to known cause-effect links between
// adjacent events.
var causalRules = map[[2]EventType]causalRule{
	{CursorClick, WindowChange}:    {CursorToScreenChange, 0.9},
	{CursorClick, TabChange}:       {CursorToScreenChange, 0.85},
	{CursorClick, FieldChange}:     {CursorToScreenChange, 0.8},
	{ErrorDisplay, CursorMovement}: {ErrorRecovery, 0.7},
	{ModalAppearance, CursorClick}: {ErrorRecovery, 0.75},
}

func (c *Correlator) causalPass() []Result {
	window := float32(c.cfg.MaxCorrelationWindowMs)
	var results []Result

	for i := 0; i+1 < len(c.buffer); i++ {
		e1, e2 := c.buffer[i], c.buffer[i+1]
		rule, ok := causalRules[[2]EventType{e1.Type, e2.Type}]
		if !ok {
			continue
		}

		dtMs := absMs(e2.Timestamp.Sub(e1.Timestamp))
		if dtMs > c.cfg.MaxCorrelationWindowMs {
			continue
		}

		avg := (e1.Confidence + e2.Confidence) / 2
		confidence := 0.5*rule.strength + 0.3*(1-float32(dtMs)/window) + 0.2*avg
		if confidence < c.cfg.MinCorrelationConfidence {
			continue
		}

		results = append(results, Result{
			ID:         uuid.NewString(),
			EventIDs:   []string{e1.ID, e2.ID},
			Kind:       rule.kind,
			Confidence: confidence,
			Evidence: Evidence{
				TemporalProximityMs: dtMs,
				CausalStrength:      rule.strength,
			},
			Timestamp: e2.Timestamp,
		})
	}
	return results
}

func (c *Correlator) recordPattern(r Result) {
	stats, ok := c.patterns[r.Kind]
	if !ok {
		stats = &PatternStats{Kind: r.Kind}
		c.patterns[r.Kind] = stats
	}
	total := stats.MeanConfidence*float32(stats.Occurrences) + r.Confidence
	stats.Occurrences++
	stats.MeanConfidence = total / float32(stats.Occurrences)
}

// Patterns returns a snapshot of the per-kind statistics.
func (c *Correlator) Patterns() map[ResultKind]PatternStats {
	out := make(map[ResultKind]PatternStats, len(c.patterns))
	for k, v := range c.patterns {
		out[k] = *v
	}
	return out
}

// BufferLen returns the number of buffered events.
func (c *Correlator) BufferLen() int {
	return len(c.buffer)
}

func spatialDistance(a, b *SpatialInfo) float32 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	return float32(math.Sqrt(dx*dx + dy*dy))
}

func absMs(d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms < 0 {
		return -ms
	}
	return ms
}
