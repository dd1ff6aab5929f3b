// Package reporter provides progress and result reporting for indexing runs.
package reporter

// BatchStartInfo describes the start of a multi-segment run.
type BatchStartInfo struct {
	TotalSegments int
	SegmentList   []string
	OutputDir     string
}

// SegmentStartInfo describes one segment about to be processed.
type SegmentStartInfo struct {
	SegmentID      string
	SourcePath     string
	CurrentSegment int
	TotalSegments  int
}

// SegmentSummary describes one finished segment.
type SegmentSummary struct {
	SegmentID    string
	Keyframes    int
	SceneChanges int
	Events       int
	Correlations int
	DurationSecs float64
	Skipped      bool
}

// RunSummary describes the whole run.
type RunSummary struct {
	SegmentsProcessed int
	SegmentsSkipped   int
	TotalKeyframes    int
	TotalEvents       int
	DurationSecs      float64
}

// ReporterError describes a user-facing failure.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// Reporter receives pipeline lifecycle notifications.
type Reporter interface {
	BatchStarted(info BatchStartInfo)
	SegmentStarted(info SegmentStartInfo)
	SegmentProgress(percent float64)
	SegmentFinished(summary SegmentSummary)
	RunFinished(summary RunSummary)
	Warning(message string)
	Error(err ReporterError)
}

// NullReporter discards all notifications.
type NullReporter struct{}

func (NullReporter) BatchStarted(BatchStartInfo)     {}
func (NullReporter) SegmentStarted(SegmentStartInfo) {}
func (NullReporter) SegmentProgress(float64)         {}
func (NullReporter) SegmentFinished(SegmentSummary)  {}
func (NullReporter) RunFinished(RunSummary)          {}
func (NullReporter) Warning(string)                  {}
func (NullReporter) Error(ReporterError)             {}

// Composite fans notifications out to multiple reporters.
type Composite struct {
	Reporters []Reporter
}

func (c Composite) BatchStarted(info BatchStartInfo) {
	for _, r := range c.Reporters {
		r.BatchStarted(info)
	}
}

func (c Composite) SegmentStarted(info SegmentStartInfo) {
	for _, r := range c.Reporters {
		r.SegmentStarted(info)
	}
}

func (c Composite) SegmentProgress(percent float64) {
	for _, r := range c.Reporters {
		r.SegmentProgress(percent)
	}
}

func (c Composite) SegmentFinished(summary SegmentSummary) {
	for _, r := range c.Reporters {
		r.SegmentFinished(summary)
	}
}

func (c Composite) RunFinished(summary RunSummary) {
	for _, r := range c.Reporters {
		r.RunFinished(summary)
	}
}

func (c Composite) Warning(message string) {
	for _, r := range c.Reporters {
		r.Warning(message)
	}
}

func (c Composite) Error(err ReporterError) {
	for _, r := range c.Reporters {
		r.Error(err)
	}
}
