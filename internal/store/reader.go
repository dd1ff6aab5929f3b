package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/halward/screenidx/internal/crypt"
	"github.com/halward/screenidx/internal/errors"
	"github.com/halward/screenidx/internal/event"
	"github.com/halward/screenidx/internal/logging"
	"github.com/halward/screenidx/internal/ocr"
)

// Query carries the supported pushdown predicates. Zero values mean "no
// constraint"; TsMin/TsMax bound ts_ns inclusively.
type Query struct {
	FrameID       string
	TextContains  string
	MinConfidence *float32
	Language      string
	EventType     string
	Target        string
	SegmentID     string
	TsMin         *int64
	TsMax         *int64
}

// Reader queries the Parquet file set under one output directory.
// Encrypted files are transparently decrypted into a per-query temporary
// that is removed afterwards; files that fail decryption or parsing are
// excluded and logged.
type Reader struct {
	dir string
	enc *crypt.Manager
	log *logging.Logger
}

// NewReader creates a reader. enc may be nil when outputs are plaintext.
func NewReader(dir string, enc *crypt.Manager, log *logging.Logger) *Reader {
	if log == nil {
		log = logging.Global()
	}
	return &Reader{dir: dir, enc: enc, log: log}
}

// QueryEvents returns all persisted events matching the predicates.
func (r *Reader) QueryEvents(q Query) ([]event.Detected, error) {
	rows, err := readAll[eventRow](r, "events")
	if err != nil {
		return nil, err
	}

	var out []event.Detected
	for _, row := range rows {
		ev, err := fromEventRow(row)
		if err != nil {
			return nil, errors.NewQueryError("decoding event row", err)
		}
		if matchEvent(q, ev) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// QueryOCR returns all persisted OCR results matching the predicates.
func (r *Reader) QueryOCR(q Query) ([]ocr.Result, error) {
	rows, err := readAll[ocrRow](r, "ocr")
	if err != nil {
		return nil, err
	}

	var out []ocr.Result
	for _, row := range rows {
		res := fromOCRRow(row)
		if matchOCR(q, res) {
			out = append(out, res)
		}
	}
	return out, nil
}

// QueryFrames returns all persisted frame metadata matching the predicates.
func (r *Reader) QueryFrames(q Query) ([]FrameMetadata, error) {
	rows, err := readAll[frameRow](r, "frames")
	if err != nil {
		return nil, err
	}

	var out []FrameMetadata
	for _, row := range rows {
		m := fromFrameRow(row)
		if matchFrame(q, m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// EventStatistics summarizes the event store.
type EventStatistics struct {
	Total          int
	ByType         map[string]int
	ByTarget       map[string]int
	MeanConfidence float32
	MinTsNs        int64
	MaxTsNs        int64
}

// EventStatistics scans the full event store.
func (r *Reader) EventStatistics() (EventStatistics, error) {
	events, err := r.QueryEvents(Query{})
	if err != nil {
		return EventStatistics{}, err
	}

	stats := EventStatistics{
		ByType:   make(map[string]int),
		ByTarget: make(map[string]int),
	}
	var confSum float64
	for _, ev := range events {
		stats.Total++
		stats.ByType[string(ev.Type)]++
		stats.ByTarget[ev.Target]++
		confSum += float64(ev.Confidence)

		ts := ev.Timestamp.UnixNano()
		if stats.Total == 1 || ts < stats.MinTsNs {
			stats.MinTsNs = ts
		}
		if ts > stats.MaxTsNs {
			stats.MaxTsNs = ts
		}
	}
	if stats.Total > 0 {
		stats.MeanConfidence = float32(confSum / float64(stats.Total))
	}
	return stats, nil
}

// readAll loads every readable file with the given prefix. Unreadable files
// are excluded from results, not fatal.
func readAll[T any](r *Reader, prefix string) ([]T, error) {
	paths, err := filepath.Glob(filepath.Join(r.dir, prefix+"_*.parquet"))
	if err != nil {
		return nil, errors.NewQueryError("listing "+prefix+" files", err)
	}

	var rows []T
	for _, path := range paths {
		if strings.HasSuffix(path, ".tmp.parquet") {
			continue
		}
		fileRows, err := readFile[T](r, path)
		if err != nil {
			r.log.Warn("excluding unreadable file from query", "path", path, "error", err)
			continue
		}
		rows = append(rows, fileRows...)
	}
	return rows, nil
}

// readFile reads one file, decrypting into a per-query temporary first when
// a key is wired. Files that authenticate but fail to parse, or fail to
// authenticate and also fail to parse as plaintext, are errors.
func readFile[T any](r *Reader, path string) ([]T, error) {
	if r.enc == nil {
		return parquet.ReadFile[T](path)
	}

	sealed, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("reading "+path, err)
	}

	plaintext, err := r.enc.DecryptBytes(sealed)
	if err != nil {
		// Not sealed with our key; it may be a plaintext file from a run
		// with encryption disabled.
		return parquet.ReadFile[T](path)
	}

	tmp, err := os.CreateTemp("", "screenidx-query-*.parquet")
	if err != nil {
		return nil, errors.NewIOError("creating query temporary", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(plaintext); err != nil {
		_ = tmp.Close()
		return nil, errors.NewIOError("writing query temporary", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.NewIOError("closing query temporary", err)
	}

	return parquet.ReadFile[T](tmpPath)
}

func matchEvent(q Query, ev event.Detected) bool {
	if q.EventType != "" && string(ev.Type) != q.EventType {
		return false
	}
	if q.Target != "" && ev.Target != q.Target {
		return false
	}
	if q.MinConfidence != nil && ev.Confidence < *q.MinConfidence {
		return false
	}
	if q.FrameID != "" && !containsString(ev.EvidenceFrames, q.FrameID) {
		return false
	}
	if q.TextContains != "" &&
		!strings.Contains(ev.ValueTo, q.TextContains) &&
		!strings.Contains(ev.ValueFrom, q.TextContains) {
		return false
	}
	return tsInRange(q, ev.Timestamp.UnixNano())
}

func matchOCR(q Query, r ocr.Result) bool {
	if q.FrameID != "" && r.FrameID != q.FrameID {
		return false
	}
	if q.TextContains != "" && !strings.Contains(r.Text, q.TextContains) {
		return false
	}
	if q.Language != "" && r.Language != q.Language {
		return false
	}
	if q.MinConfidence != nil && r.Confidence < *q.MinConfidence {
		return false
	}
	return tsInRange(q, r.ProcessedAt.UnixNano())
}

func matchFrame(q Query, m FrameMetadata) bool {
	if q.SegmentID != "" && m.SegmentID != q.SegmentID {
		return false
	}
	return tsInRange(q, m.TsNs)
}

func tsInRange(q Query, ts int64) bool {
	if q.TsMin != nil && ts < *q.TsMin {
		return false
	}
	if q.TsMax != nil && ts > *q.TsMax {
		return false
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
