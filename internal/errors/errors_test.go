package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCoreErrorMessage(t *testing.T) {
	err := NewConfigError("extraction_fps must be between 0 and 30")
	want := "Configuration error: extraction_fps must be between 0 and 30"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCoreErrorUnwrap(t *testing.T) {
	underlying := errors.New("disk full")
	err := NewIOError("writing batch", underlying)

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should match the underlying error")
	}
	if got := err.Error(); got != "I/O error: writing batch: disk full" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
		want bool
	}{
		{"config matches", NewConfigError("bad"), KindConfig, true},
		{"config does not match io", NewConfigError("bad"), KindIO, false},
		{"wrapped corrupted video", fmt.Errorf("segment: %w", NewCorruptedVideoError("a.mp4", nil)), KindCorruptedVideo, true},
		{"plain error", errors.New("plain"), KindIO, false},
		{"nil error", nil, KindIO, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKind(tt.err, tt.kind); got != tt.want {
				t.Errorf("IsKind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsSegmentSkippable(t *testing.T) {
	if !IsSegmentSkippable(NewCorruptedVideoError("x.mp4", nil)) {
		t.Error("corrupted video should be skippable")
	}
	if !IsSegmentSkippable(NewUnsupportedFormatError("x.bin")) {
		t.Error("unsupported format should be skippable")
	}
	if IsSegmentSkippable(NewParquetError("write failed", nil)) {
		t.Error("parquet errors are not skippable")
	}
}

func TestIsCancelled(t *testing.T) {
	if !IsCancelled(NewCancelledError()) {
		t.Error("IsCancelled() = false, want true")
	}
	if IsCancelled(NewIOError("x", nil)) {
		t.Error("IsCancelled() = true for I/O error")
	}
}
