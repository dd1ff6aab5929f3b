// Package store persists frame metadata, OCR results, and detected events
// as columnar Parquet files with batched writers, optional AEAD at rest, and
// a typed predicate query surface over the resulting file set.
package store

import (
	"encoding/json"
	"time"

	"github.com/halward/screenidx/internal/event"
	"github.com/halward/screenidx/internal/ocr"
)

// FrameMetadata is the persisted row for one extracted keyframe.
type FrameMetadata struct {
	TsNs      int64
	MonitorID int32
	SegmentID string
	Path      string
	PHash16   int64
	Entropy   float32
	AppName   string
	WinTitle  string
	Width     uint32
	Height    uint32
}

// frameRow is the Parquet shape of FrameMetadata. Column order is fixed.
type frameRow struct {
	TsNs      int64   `parquet:"ts_ns"`
	MonitorID int32   `parquet:"monitor_id"`
	SegmentID string  `parquet:"segment_id,dict"`
	Path      string  `parquet:"path"`
	PHash16   int64   `parquet:"phash16"`
	Entropy   float32 `parquet:"entropy"`
	AppName   string  `parquet:"app_name,dict"`
	WinTitle  string  `parquet:"win_title"`
	Width     uint32  `parquet:"width"`
	Height    uint32  `parquet:"height"`
}

func toFrameRow(m FrameMetadata) frameRow {
	return frameRow(m)
}

func fromFrameRow(r frameRow) FrameMetadata {
	return FrameMetadata(r)
}

// roiRow is the four-field struct column for bounding boxes.
type roiRow struct {
	X      float32 `parquet:"x"`
	Y      float32 `parquet:"y"`
	Width  float32 `parquet:"width"`
	Height float32 `parquet:"height"`
}

// ocrRow is the Parquet shape of an OCR result.
type ocrRow struct {
	FrameID     string  `parquet:"frame_id,dict"`
	ROI         roiRow  `parquet:"roi"`
	Text        string  `parquet:"text"`
	Language    string  `parquet:"language,dict"`
	Confidence  float32 `parquet:"confidence"`
	ProcessedAt int64   `parquet:"processed_at,timestamp(nanosecond)"`
	Processor   string  `parquet:"processor,dict"`
}

func toOCRRow(r ocr.Result) ocrRow {
	return ocrRow{
		FrameID:     r.FrameID,
		ROI:         roiRow{X: r.ROI.X, Y: r.ROI.Y, Width: r.ROI.Width, Height: r.ROI.Height},
		Text:        r.Text,
		Language:    r.Language,
		Confidence:  r.Confidence,
		ProcessedAt: r.ProcessedAt.UnixNano(),
		Processor:   r.Processor,
	}
}

func fromOCRRow(r ocrRow) ocr.Result {
	return ocr.Result{
		FrameID:     r.FrameID,
		ROI:         ocr.NewBoundingBox(r.ROI.X, r.ROI.Y, r.ROI.Width, r.ROI.Height),
		Text:        r.Text,
		Language:    r.Language,
		Confidence:  r.Confidence,
		ProcessedAt: time.Unix(0, r.ProcessedAt).UTC(),
		Processor:   r.Processor,
	}
}

// eventRow is the Parquet shape of a detected event. The metadata mapping is
// serialized as JSON in a string column.
type eventRow struct {
	EventID        string   `parquet:"event_id"`
	TsNs           int64    `parquet:"ts_ns,timestamp(nanosecond)"`
	Type           string   `parquet:"type,dict"`
	Target         string   `parquet:"target,dict"`
	ValueFrom      *string  `parquet:"value_from,optional"`
	ValueTo        *string  `parquet:"value_to,optional"`
	Confidence     float32  `parquet:"confidence"`
	EvidenceFrames []string `parquet:"evidence_frames,list"`
	Metadata       *string  `parquet:"metadata,optional"`
}

func toEventRow(ev event.Detected) (eventRow, error) {
	row := eventRow{
		EventID:        ev.ID,
		TsNs:           ev.Timestamp.UnixNano(),
		Type:           string(ev.Type),
		Target:         ev.Target,
		Confidence:     ev.Confidence,
		EvidenceFrames: ev.EvidenceFrames,
	}
	if ev.HasValueFrom {
		v := ev.ValueFrom
		row.ValueFrom = &v
	}
	if ev.HasValueTo {
		v := ev.ValueTo
		row.ValueTo = &v
	}
	if len(ev.Metadata) > 0 {
		data, err := json.Marshal(ev.Metadata)
		if err != nil {
			return eventRow{}, err
		}
		s := string(data)
		row.Metadata = &s
	}
	return row, nil
}

func fromEventRow(r eventRow) (event.Detected, error) {
	ev := event.Detected{
		ID:             r.EventID,
		Timestamp:      time.Unix(0, r.TsNs).UTC(),
		Type:           event.Type(r.Type),
		Target:         r.Target,
		Confidence:     r.Confidence,
		EvidenceFrames: r.EvidenceFrames,
		Metadata:       map[string]string{},
	}
	if r.ValueFrom != nil {
		ev.ValueFrom, ev.HasValueFrom = *r.ValueFrom, true
	}
	if r.ValueTo != nil {
		ev.ValueTo, ev.HasValueTo = *r.ValueTo, true
	}
	if r.Metadata != nil {
		if err := json.Unmarshal([]byte(*r.Metadata), &ev.Metadata); err != nil {
			return event.Detected{}, err
		}
	}
	return ev, nil
}
