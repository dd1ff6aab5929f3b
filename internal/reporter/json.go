package reporter

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// JSONReporter emits one JSON object per line for machine consumption.
type JSONReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONReporter creates a reporter writing to out.
func NewJSONReporter(out io.Writer) *JSONReporter {
	return &JSONReporter{out: out}
}

func (r *JSONReporter) emit(kind string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record := map[string]any{
		"event": kind,
		"time":  time.Now().UTC().Format(time.RFC3339Nano),
		"data":  payload,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	_, _ = r.out.Write(append(data, '\n'))
}

func (r *JSONReporter) BatchStarted(info BatchStartInfo)     { r.emit("batch_started", info) }
func (r *JSONReporter) SegmentStarted(info SegmentStartInfo) { r.emit("segment_started", info) }
func (r *JSONReporter) SegmentProgress(percent float64)      { r.emit("segment_progress", percent) }
func (r *JSONReporter) SegmentFinished(s SegmentSummary)     { r.emit("segment_finished", s) }
func (r *JSONReporter) RunFinished(s RunSummary)             { r.emit("run_finished", s) }
func (r *JSONReporter) Warning(message string)               { r.emit("warning", message) }
func (r *JSONReporter) Error(err ReporterError)              { r.emit("error", err) }
