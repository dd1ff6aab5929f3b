package probe

import (
	"time"

	"github.com/halward/screenidx/internal/config"
	"github.com/halward/screenidx/internal/logging"
)

// ChangeKind labels a navigation transition.
type ChangeKind string

const (
	// WindowChanged means the frontmost window title or app changed.
	WindowChanged ChangeKind = "window"
	// TabChanged means the active browser tab changed.
	TabChanged ChangeKind = "tab"
	// FocusChanged means keyboard focus moved to a different application.
	FocusChanged ChangeKind = "focus"
)

// Change is one detected navigation transition.
type Change struct {
	Kind       ChangeKind
	Window     WindowState
	Tab        TabState
	FromApp    string
	ToApp      string
	Confidence float32
	Timestamp  time.Time
}

// NavigationDetector polls the probe and diffs successive snapshots into
// window, tab, and focus change events.
type NavigationDetector struct {
	cfg        config.NavigationConfig
	probe      NavigationProbe
	lastWindow *WindowState
	lastTab    *TabState
	log        *logging.Logger
}

// NewNavigationDetector creates a detector over the given probe.
func NewNavigationDetector(cfg config.NavigationConfig, p NavigationProbe, log *logging.Logger) *NavigationDetector {
	if log == nil {
		log = logging.Global()
	}
	return &NavigationDetector{cfg: cfg, probe: p, log: log}
}

// Poll samples the probe once and returns any transitions since the last
// poll. Probe failures null-propagate: the affected modality reports no
// change.
func (d *NavigationDetector) Poll(ts time.Time) []Change {
	var changes []Change

	if window, err := d.probe.CurrentWindow(); err == nil {
		if d.lastWindow != nil {
			if d.lastWindow.AppName != window.AppName {
				changes = append(changes, Change{
					Kind:       FocusChanged,
					Window:     window,
					FromApp:    d.lastWindow.AppName,
					ToApp:      window.AppName,
					Confidence: 0.9,
					Timestamp:  ts,
				})
			}
			if d.lastWindow.AppName != window.AppName || d.lastWindow.WindowTitle != window.WindowTitle {
				changes = append(changes, Change{
					Kind:       WindowChanged,
					Window:     window,
					Confidence: 0.9,
					Timestamp:  ts,
				})
			}
		}
		w := window
		d.lastWindow = &w
	}

	if tab, ok, err := d.probe.CurrentTab(); err == nil && ok {
		if d.lastTab != nil && (d.lastTab.TabTitle != tab.TabTitle || d.lastTab.URL != tab.URL) {
			changes = append(changes, Change{
				Kind:       TabChanged,
				Tab:        tab,
				Confidence: 0.85,
				Timestamp:  ts,
			})
		}
		t := tab
		d.lastTab = &t
	}

	var filtered []Change
	for _, c := range changes {
		if c.Confidence >= d.cfg.MinChangeConfidence {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// CurrentWindow returns the last observed window state, if any.
func (d *NavigationDetector) CurrentWindow() (WindowState, bool) {
	if d.lastWindow == nil {
		return WindowState{}, false
	}
	return *d.lastWindow, true
}

// Reset clears the tracked state.
func (d *NavigationDetector) Reset() {
	d.lastWindow = nil
	d.lastTab = nil
}
