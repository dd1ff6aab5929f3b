package errormodal

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/halward/screenidx/internal/config"
	"github.com/halward/screenidx/internal/logging"
	"github.com/halward/screenidx/internal/ocr"
)

// Severity ranks detected errors and alerts.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// PatternMatch records one catalogue hit contributing to a detection.
type PatternMatch struct {
	Family      Family
	MatchedText string
	Weight      float32
	Description string
}

// Event is a detected error message or modal dialog.
type Event struct {
	ID             string
	Timestamp      time.Time
	Family         Family
	Severity       Severity
	Title          string
	Message        string
	Confidence     float32
	FrameID        string
	ROI            ocr.BoundingBox
	Metadata       map[string]string
	PatternMatches []PatternMatch
	Layout         *LayoutAnalysis
}

// Detector scans high-confidence OCR regions against the pattern catalogue
// and, when enabled, scores spatial groups as dialog layouts.
type Detector struct {
	cfg    config.ErrorModalConfig
	layout *layoutAnalyzer
	log    *logging.Logger
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(cfg config.ErrorModalConfig, log *logging.Logger) *Detector {
	if log == nil {
		log = logging.Global()
	}
	return &Detector{cfg: cfg, layout: &layoutAnalyzer{cfg: cfg}, log: log}
}

// Detect analyzes one frame's OCR results for errors and modals.
func (d *Detector) Detect(frameID string, results []ocr.Result, ts time.Time, screenW, screenH float32) []Event {
	var high []ocr.Result
	for _, r := range results {
		if r.Confidence >= d.cfg.MinOCRConfidence {
			high = append(high, r)
		}
	}
	if len(high) == 0 {
		return nil
	}

	var events []Event
	for _, r := range high {
		if ev, ok := d.analyzeText(frameID, r, ts, screenW, screenH); ok {
			events = append(events, ev)
		}
	}

	if d.cfg.EnableLayoutDetection {
		events = append(events, d.detectDialogLayouts(frameID, high, ts, screenW, screenH)...)
	}

	d.log.Debug("error/modal detection complete", "frame", frameID, "events", len(events))
	return events
}

// analyzeText runs one OCR region through the three pattern catalogues.
func (d *Detector) analyzeText(frameID string, r ocr.Result, ts time.Time, screenW, screenH float32) (Event, bool) {
	var matches []PatternMatch
	var totalWeight float32
	family := Family("")
	severity := SeverityInfo

	for _, p := range errorPatterns {
		if p.Regex.MatchString(r.Text) {
			matches = append(matches, PatternMatch{Family: p.Family, MatchedText: r.Text, Weight: p.Weight, Description: p.Description})
			totalWeight += p.Weight
			family = p.Family
			severity = familySeverity(p.Family)
		}
	}
	for _, p := range modalPatterns {
		if p.Regex.MatchString(r.Text) {
			matches = append(matches, PatternMatch{Family: p.Family, MatchedText: r.Text, Weight: p.Weight, Description: p.Description})
			totalWeight += p.Weight
			if family == "" || !family.IsError() {
				family = p.Family
				severity = SeverityInfo
			}
		}
	}
	for _, p := range alertPatterns {
		if p.Regex.MatchString(r.Text) {
			matches = append(matches, PatternMatch{Family: p.Family, MatchedText: r.Text, Weight: p.Weight, Description: p.Description})
			totalWeight += p.Weight
			family = p.Family
			severity = SeverityHigh
		}
	}

	if len(matches) == 0 {
		return Event{}, false
	}

	// Content lexicon can raise the pattern-derived severity.
	if s := severityByContent(r.Text); severityRank(s) > severityRank(severity) {
		severity = s
	}

	patternConf := totalWeight / float32(len(matches))
	if patternConf > 1 {
		patternConf = 1
	}
	confidence := patternConf*0.7 + r.Confidence*0.3
	if confidence > 1 {
		confidence = 1
	}

	minConfidence := d.cfg.MinModalConfidence
	if family.IsError() {
		minConfidence = d.cfg.MinErrorConfidence
	}
	if confidence < minConfidence {
		return Event{}, false
	}

	var layout *LayoutAnalysis
	if d.cfg.EnableLayoutDetection {
		l := d.layout.analyze(r.ROI, screenW, screenH)
		layout = &l
	}

	return Event{
		ID:         uuid.NewString(),
		Timestamp:  ts,
		Family:     family,
		Severity:   severity,
		Title:      extractTitle(r.Text),
		Message:    r.Text,
		Confidence: confidence,
		FrameID:    frameID,
		ROI:        r.ROI,
		Metadata: map[string]string{
			"language":      r.Language,
			"processor":     r.Processor,
			"pattern_count": fmt.Sprintf("%d", len(matches)),
		},
		PatternMatches: matches,
		Layout:         layout,
	}, true
}

// detectDialogLayouts groups nearby regions and scores each group's bounding
// box as a potential dialog.
func (d *Detector) detectDialogLayouts(frameID string, results []ocr.Result, ts time.Time, screenW, screenH float32) []Event {
	var events []Event

	for _, group := range groupByProximity(results, 100) {
		if len(group) < 2 {
			continue
		}

		bbox := groupBoundingBox(group)
		layout := d.layout.analyze(bbox, screenW, screenH)
		if !layout.IsDialogLayout || layout.Confidence < 0.6 {
			continue
		}

		texts := make([]string, len(group))
		for i, r := range group {
			texts[i] = r.Text
		}
		combined := strings.Join(texts, " ")

		l := layout
		events = append(events, Event{
			ID:         uuid.NewString(),
			Timestamp:  ts,
			Family:     classifyDialogContent(combined),
			Severity:   severityByContent(combined),
			Title:      extractTitle(combined),
			Message:    combined,
			Confidence: layout.Confidence,
			FrameID:    frameID,
			ROI:        bbox,
			Metadata: map[string]string{
				"group_size":       fmt.Sprintf("%d", len(group)),
				"detection_method": "layout_analysis",
			},
			Layout: &l,
		})
	}
	return events
}

// groupByProximity buckets regions transitively: a region joins a group when
// its center lies within radius pixels of any member.
func groupByProximity(results []ocr.Result, radius float32) [][]ocr.Result {
	var groups [][]ocr.Result
	used := make([]bool, len(results))

	for i := range results {
		if used[i] {
			continue
		}
		group := []ocr.Result{results[i]}
		used[i] = true

		for grew := true; grew; {
			grew = false
			for j := range results {
				if used[j] {
					continue
				}
				for _, member := range group {
					if centerDistance(member.ROI, results[j].ROI) < radius {
						group = append(group, results[j])
						used[j] = true
						grew = true
						break
					}
				}
			}
		}
		groups = append(groups, group)
	}
	return groups
}

func centerDistance(a, b ocr.BoundingBox) float32 {
	dx := a.CenterX() - b.CenterX()
	dy := a.CenterY() - b.CenterY()
	return sqrt32(dx*dx + dy*dy)
}

func groupBoundingBox(group []ocr.Result) ocr.BoundingBox {
	minX, minY := group[0].ROI.X, group[0].ROI.Y
	maxX := group[0].ROI.X + group[0].ROI.Width
	maxY := group[0].ROI.Y + group[0].ROI.Height

	for _, r := range group[1:] {
		if r.ROI.X < minX {
			minX = r.ROI.X
		}
		if r.ROI.Y < minY {
			minY = r.ROI.Y
		}
		if x2 := r.ROI.X + r.ROI.Width; x2 > maxX {
			maxX = x2
		}
		if y2 := r.ROI.Y + r.ROI.Height; y2 > maxY {
			maxY = y2
		}
	}
	return ocr.NewBoundingBox(minX, minY, maxX-minX, maxY-minY)
}

// classifyDialogContent picks a dialog family from combined group text.
func classifyDialogContent(text string) Family {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "save") || strings.Contains(lower, "open") || strings.Contains(lower, "file"):
		return FamilyFileDialog
	case strings.Contains(lower, "settings") || strings.Contains(lower, "preferences") || strings.Contains(lower, "options"):
		return FamilySettingsDialog
	case strings.Contains(lower, "progress") || strings.Contains(lower, "loading") || strings.Contains(lower, "%"):
		return FamilyProgressDialog
	case strings.Contains(lower, "confirm") || strings.Contains(lower, "are you sure"):
		return FamilyConfirmation
	case strings.Contains(lower, "error") || strings.Contains(lower, "failed") || strings.Contains(lower, "invalid"):
		return FamilyApplicationError
	case strings.Contains(lower, "warning") || strings.Contains(lower, "caution"):
		return FamilyWarning
	case strings.Contains(lower, "alert") || strings.Contains(lower, "attention"):
		return FamilyAppAlert
	default:
		return FamilyInfoDialog
	}
}

func familySeverity(f Family) Severity {
	switch f {
	case FamilyCriticalError:
		return SeverityCritical
	case FamilyNetworkError, FamilyAuthError:
		return SeverityHigh
	case FamilyValidationError, FamilyWarning:
		return SeverityMedium
	default:
		return SeverityMedium
	}
}

// severityByContent derives severity from the content lexicon.
func severityByContent(text string) Severity {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "critical") || strings.Contains(lower, "fatal") || strings.Contains(lower, "crash"):
		return SeverityCritical
	case strings.Contains(lower, "error") || strings.Contains(lower, "failed") || strings.Contains(lower, "denied"):
		return SeverityHigh
	case strings.Contains(lower, "warning") || strings.Contains(lower, "caution") || strings.Contains(lower, "invalid"):
		return SeverityMedium
	case strings.Contains(lower, "notice") || strings.Contains(lower, "attention"):
		return SeverityLow
	default:
		return SeverityInfo
	}
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// extractTitle takes the first line, falling back to a truncated prefix.
func extractTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			if len(line) > 50 {
				return line[:47] + "..."
			}
			return line
		}
	}
	if len(text) > 50 {
		return text[:47] + "..."
	}
	return text
}

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}
