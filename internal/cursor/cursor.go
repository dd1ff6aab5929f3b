// Package cursor synthesizes click and movement-trail observations from
// sampled cursor positions. The system has no event hook: clicks are
// inferred from approach-then-dwell patterns in the position history.
package cursor

import (
	"math"
	"time"

	"github.com/halward/screenidx/internal/config"
	"github.com/halward/screenidx/internal/probe"
)

// TrailKind classifies a movement trail's shape.
type TrailKind string

const (
	TrailStationary TrailKind = "stationary"
	TrailLinear     TrailKind = "linear"
	TrailCurved     TrailKind = "curved"
	TrailErratic    TrailKind = "erratic"
)

// Click is an inferred mouse click.
type Click struct {
	Position   probe.CursorPosition
	Confidence float32
}

// Trail summarizes a recent stretch of cursor movement.
type Trail struct {
	Start            probe.CursorPosition
	End              probe.CursorPosition
	TotalDistance    float32
	Duration         time.Duration
	AverageSpeed     float32 // pixels per second
	DirectionChanges int
	Kind             TrailKind
	Confidence       float32
}

// Tracker accumulates sampled positions and derives clicks and trails.
// One tracker serves one monitor; it is not safe for concurrent use.
type Tracker struct {
	cfg       config.CursorConfig
	positions []probe.CursorPosition
	clicks    []Click
	lastClick *probe.CursorPosition
}

// NewTracker creates a tracker.
func NewTracker(cfg config.CursorConfig) *Tracker {
	return &Tracker{cfg: cfg}
}

// Observe records one sampled position and returns a click if the sample
// completes an approach-then-dwell pattern.
func (t *Tracker) Observe(pos probe.CursorPosition) *Click {
	t.positions = append(t.positions, pos)
	if max := t.cfg.MaxHistory; max > 0 {
		for len(t.positions) > max {
			t.positions = t.positions[1:]
		}
	}

	click := t.detectClick()
	if click != nil {
		t.clicks = append(t.clicks, *click)
		for len(t.clicks) > t.cfg.MaxHistory/10+1 {
			t.clicks = t.clicks[1:]
		}
	}
	return click
}

// detectClick looks for movement followed by stability: the cursor travels,
// then stays within the click radius for the dwell window.
func (t *Tracker) detectClick() *Click {
	const window = 5
	if len(t.positions) < window+2 {
		return nil
	}

	recent := t.positions[len(t.positions)-window:]
	center := recent[len(recent)-1]

	var maxDist float32
	for _, p := range recent[:len(recent)-1] {
		if d := distance(p, center); d > maxDist {
			maxDist = d
		}
	}
	if maxDist >= t.cfg.ClickRadius {
		return nil
	}

	dwell := center.Timestamp.Sub(recent[0].Timestamp)
	if dwell < time.Duration(t.cfg.ClickDwellMs)*time.Millisecond {
		return nil
	}

	// Require an approach before the dwell so an idle cursor does not
	// register clicks.
	earlier := t.positions[len(t.positions)-window-2]
	if distance(earlier, center) <= t.cfg.ClickRadius*2 {
		return nil
	}

	// Debounce: one click per dwell spot.
	if t.lastClick != nil && distance(*t.lastClick, center) < t.cfg.ClickRadius {
		return nil
	}
	t.lastClick = &center

	return &Click{Position: center, Confidence: 0.7}
}

// AnalyzeTrail summarizes movement over the trailing window. Returns false
// when there are too few samples or no elapsed time.
func (t *Tracker) AnalyzeTrail(window time.Duration, now time.Time) (Trail, bool) {
	cutoff := now.Add(-window)
	var recent []probe.CursorPosition
	for _, p := range t.positions {
		if !p.Timestamp.Before(cutoff) {
			recent = append(recent, p)
		}
	}
	if len(recent) < 5 {
		return Trail{}, false
	}

	start, end := recent[0], recent[len(recent)-1]
	duration := end.Timestamp.Sub(start.Timestamp)
	if duration <= 0 {
		return Trail{}, false
	}

	var total float32
	for i := 1; i < len(recent); i++ {
		total += distance(recent[i-1], recent[i])
	}

	changes := directionChanges(recent)
	kind := classifyTrail(recent, total, changes)
	speed := total / float32(duration.Seconds())

	// Confidence grows with sample density over the window.
	confidence := float32(len(recent)) / 20
	if confidence > 0.95 {
		confidence = 0.95
	}

	return Trail{
		Start:            start,
		End:              end,
		TotalDistance:    total,
		Duration:         duration,
		AverageSpeed:     speed,
		DirectionChanges: changes,
		Kind:             kind,
		Confidence:       confidence,
	}, true
}

// Positions returns the buffered position history.
func (t *Tracker) Positions() []probe.CursorPosition {
	return t.positions
}

// Clicks returns the buffered click history.
func (t *Tracker) Clicks() []Click {
	return t.clicks
}

// Reset clears all history.
func (t *Tracker) Reset() {
	t.positions = nil
	t.clicks = nil
	t.lastClick = nil
}

func classifyTrail(positions []probe.CursorPosition, total float32, changes int) TrailKind {
	if total < 10 {
		return TrailStationary
	}

	changeRatio := float32(changes) / float32(len(positions))
	direct := distance(positions[0], positions[len(positions)-1])

	var linearity float32
	if total > 0 {
		linearity = direct / total
	}

	switch {
	case linearity > 0.9 && changeRatio < 0.1:
		return TrailLinear
	case changeRatio > 0.5:
		return TrailErratic
	default:
		return TrailCurved
	}
}

// directionChanges counts heading flips greater than 45 degrees.
func directionChanges(positions []probe.CursorPosition) int {
	if len(positions) < 3 {
		return 0
	}

	changes := 0
	havePrev := false
	var prevHeading float64
	for i := 1; i < len(positions); i++ {
		dx := float64(positions[i].X - positions[i-1].X)
		dy := float64(positions[i].Y - positions[i-1].Y)
		if dx == 0 && dy == 0 {
			continue
		}
		heading := math.Atan2(dy, dx)
		if havePrev {
			diff := math.Abs(heading - prevHeading)
			if diff > math.Pi {
				diff = 2*math.Pi - diff
			}
			if diff > math.Pi/4 {
				changes++
			}
		}
		prevHeading = heading
		havePrev = true
	}
	return changes
}

func distance(a, b probe.CursorPosition) float32 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	return float32(math.Sqrt(dx*dx + dy*dy))
}
