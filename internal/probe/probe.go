// Package probe abstracts platform window, tab, focus, and cursor state
// acquisition behind a capability interface. The probe is the only
// platform-specific seam in the pipeline; failures are logged and counted
// but never halt processing.
package probe

import (
	"encoding/json"
	"os"
	"sync/atomic"
	"time"

	"github.com/halward/screenidx/internal/errors"
	"github.com/halward/screenidx/internal/logging"
)

// WindowState describes the frontmost window at sample time.
type WindowState struct {
	AppName     string
	WindowTitle string
	ProcessID   int32
	BundleID    string
	Timestamp   time.Time
}

// TabState describes the active browser tab, when one exists.
type TabState struct {
	AppName   string
	TabTitle  string
	URL       string
	TabIndex  int
	Timestamp time.Time
}

// CursorPosition is a sampled cursor location.
type CursorPosition struct {
	X         float32
	Y         float32
	ScreenID  int32
	Timestamp time.Time
}

// NavigationProbe is the capability set supplying current UI state.
// Implementations may fail on any call; callers treat absence as no-change.
type NavigationProbe interface {
	// CurrentWindow returns the frontmost window.
	CurrentWindow() (WindowState, error)
	// CurrentTab returns the active browser tab. ok is false when the
	// frontmost application has no tab concept.
	CurrentTab() (TabState, bool, error)
	// CurrentCursor returns the cursor position.
	CurrentCursor() (CursorPosition, error)
}

// Metrics counts probe outcomes.
type Metrics struct {
	WindowCalls    atomic.Int64
	WindowFailures atomic.Int64
	TabCalls       atomic.Int64
	TabFailures    atomic.Int64
	CursorCalls    atomic.Int64
	CursorFailures atomic.Int64
}

// CountingProbe wraps a probe with failure accounting and logging.
type CountingProbe struct {
	inner   NavigationProbe
	metrics *Metrics
	log     *logging.Logger
}

// NewCountingProbe wraps the inner probe.
func NewCountingProbe(inner NavigationProbe, log *logging.Logger) *CountingProbe {
	if log == nil {
		log = logging.Global()
	}
	return &CountingProbe{inner: inner, metrics: &Metrics{}, log: log}
}

// Metrics exposes the accumulated counters.
func (c *CountingProbe) Metrics() *Metrics {
	return c.metrics
}

func (c *CountingProbe) CurrentWindow() (WindowState, error) {
	c.metrics.WindowCalls.Add(1)
	w, err := c.inner.CurrentWindow()
	if err != nil {
		c.metrics.WindowFailures.Add(1)
		c.log.Warn("window probe failed", "error", err)
	}
	return w, err
}

func (c *CountingProbe) CurrentTab() (TabState, bool, error) {
	c.metrics.TabCalls.Add(1)
	t, ok, err := c.inner.CurrentTab()
	if err != nil {
		c.metrics.TabFailures.Add(1)
		c.log.Warn("tab probe failed", "error", err)
	}
	return t, ok, err
}

func (c *CountingProbe) CurrentCursor() (CursorPosition, error) {
	c.metrics.CursorCalls.Add(1)
	p, err := c.inner.CurrentCursor()
	if err != nil {
		c.metrics.CursorFailures.Add(1)
		c.log.Warn("cursor probe failed", "error", err)
	}
	return p, err
}

// StaticProbe returns fixed values. Used for tests and headless runs where
// no platform integration exists.
type StaticProbe struct {
	Window WindowState
	Tab    TabState
	HasTab bool
	Cursor CursorPosition
}

func (s *StaticProbe) CurrentWindow() (WindowState, error) {
	w := s.Window
	w.Timestamp = time.Now()
	return w, nil
}

func (s *StaticProbe) CurrentTab() (TabState, bool, error) {
	if !s.HasTab {
		return TabState{}, false, nil
	}
	t := s.Tab
	t.Timestamp = time.Now()
	return t, true, nil
}

func (s *StaticProbe) CurrentCursor() (CursorPosition, error) {
	p := s.Cursor
	p.Timestamp = time.Now()
	return p, nil
}

// scriptState is the on-disk shape consumed by ScriptProbe.
type scriptState struct {
	App      string  `json:"app"`
	Title    string  `json:"title"`
	PID      int32   `json:"pid"`
	BundleID string  `json:"bundle_id"`
	TabTitle string  `json:"tab_title"`
	TabURL   string  `json:"tab_url"`
	TabIndex int     `json:"tab_index"`
	HasTab   bool    `json:"has_tab"`
	CursorX  float32 `json:"cursor_x"`
	CursorY  float32 `json:"cursor_y"`
	ScreenID int32   `json:"screen_id"`
}

// ScriptProbe reads a recorded state file on every call. A recorder-side
// helper keeps the file current; this keeps the pipeline platform-agnostic.
type ScriptProbe struct {
	Path string
}

func (s *ScriptProbe) read() (scriptState, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return scriptState{}, errors.NewProbeError("reading probe state "+s.Path, err)
	}
	var st scriptState
	if err := json.Unmarshal(data, &st); err != nil {
		return scriptState{}, errors.NewProbeError("parsing probe state "+s.Path, err)
	}
	return st, nil
}

func (s *ScriptProbe) CurrentWindow() (WindowState, error) {
	st, err := s.read()
	if err != nil {
		return WindowState{}, err
	}
	return WindowState{
		AppName:     st.App,
		WindowTitle: st.Title,
		ProcessID:   st.PID,
		BundleID:    st.BundleID,
		Timestamp:   time.Now(),
	}, nil
}

func (s *ScriptProbe) CurrentTab() (TabState, bool, error) {
	st, err := s.read()
	if err != nil {
		return TabState{}, false, err
	}
	if !st.HasTab {
		return TabState{}, false, nil
	}
	return TabState{
		AppName:   st.App,
		TabTitle:  st.TabTitle,
		URL:       st.TabURL,
		TabIndex:  st.TabIndex,
		Timestamp: time.Now(),
	}, true, nil
}

func (s *ScriptProbe) CurrentCursor() (CursorPosition, error) {
	st, err := s.read()
	if err != nil {
		return CursorPosition{}, err
	}
	return CursorPosition{X: st.CursorX, Y: st.CursorY, ScreenID: st.ScreenID, Timestamp: time.Now()}, nil
}
