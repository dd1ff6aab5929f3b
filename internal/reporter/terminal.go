package reporter

import (
	"fmt"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/halward/screenidx/internal/util"
)

// TerminalReporter outputs human-friendly text to the terminal.
type TerminalReporter struct {
	mu       sync.Mutex
	progress *progressbar.ProgressBar
	cyan     *color.Color
	green    *color.Color
	yellow   *color.Color
	red      *color.Color
	bold     *color.Color
}

// NewTerminalReporter creates a new terminal reporter.
func NewTerminalReporter() *TerminalReporter {
	return &TerminalReporter{
		cyan:   color.New(color.FgCyan, color.Bold),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow, color.Bold),
		red:    color.New(color.FgRed, color.Bold),
		bold:   color.New(color.Bold),
	}
}

func (r *TerminalReporter) BatchStarted(info BatchStartInfo) {
	fmt.Println()
	_, _ = r.cyan.Println("INDEXING")
	r.printLabel(10, "Segments:", fmt.Sprintf("%d", info.TotalSegments))
	r.printLabel(10, "Output:", info.OutputDir)
}

func (r *TerminalReporter) SegmentStarted(info SegmentStartInfo) {
	r.finishProgress()
	fmt.Println()
	if info.TotalSegments > 1 {
		_, _ = r.bold.Printf("[%d/%d] ", info.CurrentSegment, info.TotalSegments)
	}
	fmt.Println(info.SegmentID)

	r.mu.Lock()
	r.progress = progressbar.NewOptions(100,
		progressbar.OptionSetDescription("  indexing"),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
	r.mu.Unlock()
}

func (r *TerminalReporter) SegmentProgress(percent float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Set(int(percent))
	}
}

func (r *TerminalReporter) SegmentFinished(summary SegmentSummary) {
	r.finishProgress()
	if summary.Skipped {
		_, _ = r.yellow.Printf("  skipped %s\n", summary.SegmentID)
		return
	}
	_, _ = r.green.Printf("  %d keyframes, %d scene changes, %d events, %d correlations (%s)\n",
		summary.Keyframes, summary.SceneChanges, summary.Events, summary.Correlations,
		util.FormatDuration(summary.DurationSecs))
}

func (r *TerminalReporter) RunFinished(summary RunSummary) {
	r.finishProgress()
	fmt.Println()
	_, _ = r.cyan.Println("SUMMARY")
	r.printLabel(12, "Processed:", fmt.Sprintf("%d segments", summary.SegmentsProcessed))
	if summary.SegmentsSkipped > 0 {
		r.printLabel(12, "Skipped:", fmt.Sprintf("%d segments", summary.SegmentsSkipped))
	}
	r.printLabel(12, "Keyframes:", fmt.Sprintf("%d", summary.TotalKeyframes))
	r.printLabel(12, "Events:", fmt.Sprintf("%d", summary.TotalEvents))
	r.printLabel(12, "Duration:", util.FormatDuration(summary.DurationSecs))
}

func (r *TerminalReporter) Warning(message string) {
	r.finishProgress()
	_, _ = r.yellow.Printf("  warning: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	r.finishProgress()
	_, _ = r.red.Printf("%s: %s\n", err.Title, err.Message)
	if err.Context != "" {
		fmt.Printf("  %s\n", err.Context)
	}
	if err.Suggestion != "" {
		fmt.Printf("  %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) finishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
}

// printLabel prints a bold label with fixed width padding followed by a value.
func (r *TerminalReporter) printLabel(width int, label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", width, label)
	fmt.Printf("  %s %s\n", r.bold.Sprint(paddedLabel), value)
}
