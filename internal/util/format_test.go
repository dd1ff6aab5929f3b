package util

import (
	"math"
	"testing"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.00 KiB"},
		{1536, "1.50 KiB"},
		{5 * MiB, "5.00 MiB"},
		{3 * GiB, "3.00 GiB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.bytes); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{61, "00:01:01"},
		{3661, "01:01:01"},
		{-5, "??:??:??"},
		{math.NaN(), "??:??:??"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatTimestampNs(t *testing.T) {
	if got := FormatTimestampNs(1_500_000_000); got != "1.500s" {
		t.Errorf("FormatTimestampNs() = %q, want %q", got, "1.500s")
	}
}

func TestHasVideoExtension(t *testing.T) {
	exts := []string{"mp4", "mov"}
	tests := []struct {
		path string
		want bool
	}{
		{"segment_001.mp4", true},
		{"SEGMENT.MOV", true},
		{"notes.txt", false},
		{"archive.mkv", false},
	}

	for _, tt := range tests {
		if got := HasVideoExtension(tt.path, exts); got != tt.want {
			t.Errorf("HasVideoExtension(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
