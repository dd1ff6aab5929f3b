// Package sampler decimates decoded video frames to the configured keyframe
// cadence and persists thumbnails under deterministic segment ids.
package sampler

import (
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/halward/screenidx/internal/errors"
	"github.com/halward/screenidx/internal/logging"
	"github.com/halward/screenidx/internal/util"
)

// Frame is one keyframe selected by the sampler. FrameIndex is the emission
// ordinal; timestamps are monotonic within a segment.
type Frame struct {
	SegmentID   string
	MonitorID   int32
	Width       uint32
	Height      uint32
	TimestampNs int64
	FrameIndex  int
	Image       image.Image
	Path        string
}

// FrameSource abstracts the upstream decoder. Implementations yield decoded
// frames in presentation order and report io.EOF at end of stream.
type FrameSource interface {
	// SourceFPS returns the decoded stream's frame rate.
	SourceFPS() float64
	// Next returns the next decoded frame.
	Next() (image.Image, error)
	Close() error
}

// Sampler emits every interval-th decoded frame, where the interval is
// round(src_fps / extraction_fps).
type Sampler struct {
	extractionFPS float64
	store         *ThumbnailStore
	log           *logging.Logger
}

// New creates a sampler writing thumbnails through the given store.
func New(extractionFPS float64, store *ThumbnailStore, log *logging.Logger) *Sampler {
	if log == nil {
		log = logging.Global()
	}
	return &Sampler{extractionFPS: extractionFPS, store: store, log: log}
}

// Sample drains the source and returns the selected keyframes, each already
// persisted as a thumbnail. A source that yields zero frames is reported,
// not an error.
func (s *Sampler) Sample(ctx context.Context, src FrameSource, segmentID string, monitorID int32) ([]Frame, error) {
	interval := int(math.Round(src.SourceFPS() / s.extractionFPS))
	if interval < 1 {
		interval = 1
	}

	var frames []Frame
	decoded := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelledError()
		}

		img, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewCorruptedVideoError(segmentID, err)
		}

		if decoded%interval == 0 {
			idx := len(frames)
			frame := Frame{
				SegmentID:   segmentID,
				MonitorID:   monitorID,
				Width:       uint32(img.Bounds().Dx()),
				Height:      uint32(img.Bounds().Dy()),
				TimestampNs: int64(float64(idx) / s.extractionFPS * 1e9),
				FrameIndex:  idx,
				Image:       img,
			}

			path, err := s.store.Write(segmentID, idx, img)
			if err != nil {
				return nil, err
			}
			frame.Path = path
			frames = append(frames, frame)
		}
		decoded++
	}

	if len(frames) == 0 {
		s.log.Warn("no keyframes extracted", "segment", segmentID, "decoded", decoded)
	} else {
		s.log.Debug("keyframes extracted", "segment", segmentID, "keyframes", len(frames), "decoded", decoded)
	}
	return frames, nil
}

// SegmentID derives a deterministic segment id from the source basename and
// its creation timestamp.
func SegmentID(sourcePath string, created time.Time) string {
	return fmt.Sprintf("%s_%s", util.GetFileStem(sourcePath), created.Format("20060102_150405"))
}

var monitorRe = regexp.MustCompile(`monitor_(\d+)`)

// MonitorIDFromSegment parses the monitor ordinal out of a segment id
// following the recorder's monitor_<n> naming convention. Defaults to 0.
func MonitorIDFromSegment(segmentID string) int32 {
	m := monitorRe.FindStringSubmatch(segmentID)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return int32(n)
}

// ThumbnailPath returns the store path of frame n of a segment without
// touching disk.
func ThumbnailPath(root, segmentID string, n int) string {
	return filepath.Join(root, "frames", segmentID, fmt.Sprintf("frame_%s_%d.png", segmentID, n))
}
