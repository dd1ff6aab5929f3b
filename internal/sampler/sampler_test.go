package sampler

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/halward/screenidx/internal/errors"
)

type sliceSource struct {
	frames []image.Image
	fps    float64
	pos    int
	failAt int // inject a decode failure at this index, -1 to disable
}

func (s *sliceSource) SourceFPS() float64 { return s.fps }

func (s *sliceSource) Next() (image.Image, error) {
	if s.failAt >= 0 && s.pos == s.failAt {
		return nil, fmt.Errorf("decode failure at frame %d", s.pos)
	}
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	img := s.frames[s.pos]
	s.pos++
	return img, nil
}

func (s *sliceSource) Close() error { return nil }

func grayFrame(shade uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	return img
}

func makeFrames(n int) []image.Image {
	frames := make([]image.Image, n)
	for i := range frames {
		frames[i] = grayFrame(uint8(i * 10))
	}
	return frames
}

func TestSampleDecimation(t *testing.T) {
	store := NewThumbnailStore(t.TempDir())
	s := New(1.0, store, nil)

	// 30 fps source at 1 fps extraction: interval 30, 90 frames -> 3 keyframes.
	src := &sliceSource{frames: makeFrames(90), fps: 30, failAt: -1}
	frames, err := s.Sample(context.Background(), src, "seg_monitor_1_20260101_000000", 1)
	if err != nil {
		t.Fatalf("Sample() error: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("extracted %d keyframes, want 3", len(frames))
	}

	for i, f := range frames {
		if f.FrameIndex != i {
			t.Errorf("frame %d index = %d", i, f.FrameIndex)
		}
		wantTs := int64(float64(i) / 1.0 * 1e9)
		if f.TimestampNs != wantTs {
			t.Errorf("frame %d ts = %d, want %d", i, f.TimestampNs, wantTs)
		}
		if f.Width != 32 || f.Height != 32 {
			t.Errorf("frame %d size = %dx%d, want 32x32", i, f.Width, f.Height)
		}
		if _, err := os.Stat(f.Path); err != nil {
			t.Errorf("thumbnail %s not written: %v", f.Path, err)
		}
	}

	// Monotonic timestamps.
	for i := 1; i < len(frames); i++ {
		if frames[i].TimestampNs <= frames[i-1].TimestampNs {
			t.Errorf("timestamps not monotonic at %d", i)
		}
	}
}

func TestSampleZeroFrames(t *testing.T) {
	s := New(1.0, NewThumbnailStore(t.TempDir()), nil)
	src := &sliceSource{fps: 30, failAt: -1}

	frames, err := s.Sample(context.Background(), src, "empty_seg", 0)
	if err != nil {
		t.Fatalf("zero-frame source should not error, got %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("extracted %d frames, want 0", len(frames))
	}
}

func TestSampleDecodeFailure(t *testing.T) {
	s := New(1.0, NewThumbnailStore(t.TempDir()), nil)
	src := &sliceSource{frames: makeFrames(90), fps: 30, failAt: 31}

	_, err := s.Sample(context.Background(), src, "bad_seg", 0)
	if !errors.IsKind(err, errors.KindCorruptedVideo) {
		t.Errorf("decode failure should be CorruptedVideo, got %v", err)
	}
}

func TestSampleCancellation(t *testing.T) {
	s := New(1.0, NewThumbnailStore(t.TempDir()), nil)
	src := &sliceSource{frames: makeFrames(10), fps: 30, failAt: -1}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Sample(ctx, src, "seg", 0)
	if !errors.IsCancelled(err) {
		t.Errorf("cancelled context should yield cancellation error, got %v", err)
	}
}

func TestSegmentID(t *testing.T) {
	created := time.Date(2026, 8, 2, 10, 30, 0, 0, time.UTC)
	got := SegmentID("/captures/screen_monitor_2.mp4", created)
	want := "screen_monitor_2_20260802_103000"
	if got != want {
		t.Errorf("SegmentID() = %q, want %q", got, want)
	}
}

func TestMonitorIDFromSegment(t *testing.T) {
	tests := []struct {
		segment string
		want    int32
	}{
		{"screen_monitor_2_20260802_103000", 2},
		{"screen_monitor_0_20260802_103000", 0},
		{"plain_segment", 0},
	}
	for _, tt := range tests {
		if got := MonitorIDFromSegment(tt.segment); got != tt.want {
			t.Errorf("MonitorIDFromSegment(%q) = %d, want %d", tt.segment, got, tt.want)
		}
	}
}

func TestDirectorySource(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i)))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, grayFrame(uint8(i))); err != nil {
			t.Fatal(err)
		}
		_ = f.Close()
	}

	src, err := NewDirectorySource(dir, 30)
	if err != nil {
		t.Fatalf("NewDirectorySource() error: %v", err)
	}
	count := 0
	for {
		_, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		count++
	}
	if count != 3 {
		t.Errorf("decoded %d frames, want 3", count)
	}
}

func TestDirectorySourceEmpty(t *testing.T) {
	_, err := NewDirectorySource(t.TempDir(), 30)
	if !errors.IsKind(err, errors.KindUnsupportedFormat) {
		t.Errorf("empty dir should be UnsupportedFormat, got %v", err)
	}
}

func TestDirectorySourceMissing(t *testing.T) {
	_, err := NewDirectorySource(filepath.Join(t.TempDir(), "absent"), 30)
	if !errors.IsKind(err, errors.KindCorruptedVideo) {
		t.Errorf("missing dir should be CorruptedVideo, got %v", err)
	}
}
