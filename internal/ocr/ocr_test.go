package ocr

import (
	"math"
	"testing"
	"time"
)

func TestIoUIdentical(t *testing.T) {
	b := NewBoundingBox(10, 50, 80, 20)
	if got := b.IoU(b); got != 1 {
		t.Errorf("IoU(b, b) = %v, want 1", got)
	}
}

func TestIoUDisjoint(t *testing.T) {
	a := NewBoundingBox(0, 0, 10, 10)
	b := NewBoundingBox(100, 100, 10, 10)
	if got := a.IoU(b); got != 0 {
		t.Errorf("IoU disjoint = %v, want 0", got)
	}
}

func TestIoUTouching(t *testing.T) {
	// Sharing only an edge is no overlap.
	a := NewBoundingBox(0, 0, 10, 10)
	b := NewBoundingBox(10, 0, 10, 10)
	if got := a.IoU(b); got != 0 {
		t.Errorf("IoU touching = %v, want 0", got)
	}
}

func TestIoUPartialOverlap(t *testing.T) {
	a := NewBoundingBox(0, 0, 10, 10)
	b := NewBoundingBox(5, 0, 10, 10)
	// intersection 50, union 150
	want := float32(50.0 / 150.0)
	if got := a.IoU(b); math.Abs(float64(got-want)) > 1e-6 {
		t.Errorf("IoU = %v, want %v", got, want)
	}
}

func TestIoURange(t *testing.T) {
	boxes := []BoundingBox{
		NewBoundingBox(0, 0, 10, 10),
		NewBoundingBox(3, 3, 10, 10),
		NewBoundingBox(-5, -5, 20, 20),
		NewBoundingBox(9, 9, 1, 1),
	}
	for i, a := range boxes {
		for j, b := range boxes {
			got := a.IoU(b)
			if got < 0 || got > 1 {
				t.Errorf("IoU(boxes[%d], boxes[%d]) = %v, outside [0,1]", i, j, got)
			}
		}
	}
}

func TestCenter(t *testing.T) {
	b := NewBoundingBox(10, 20, 100, 50)
	if b.CenterX() != 60 || b.CenterY() != 45 {
		t.Errorf("center = (%v, %v), want (60, 45)", b.CenterX(), b.CenterY())
	}
}

func TestBatchHelpers(t *testing.T) {
	batch := NewBatch([]Result{
		{FrameID: "f1", Text: "Username:", Language: "en", Confidence: 0.9, ProcessedAt: time.Now()},
		{FrameID: "f1", Text: "login", Language: "en", Confidence: 0.5},
		{FrameID: "f1", Text: "Hallo", Language: "de", Confidence: 0.7},
	})

	if batch.RegionCount() != 3 {
		t.Errorf("RegionCount() = %d, want 3", batch.RegionCount())
	}

	avg := batch.AverageConfidence()
	if math.Abs(float64(avg)-0.7) > 1e-6 {
		t.Errorf("AverageConfidence() = %v, want 0.7", avg)
	}

	high := batch.FilterByConfidence(0.7)
	if len(high) != 2 {
		t.Errorf("FilterByConfidence(0.7) returned %d results, want 2", len(high))
	}

	groups := batch.GroupByLanguage()
	if len(groups["en"]) != 2 || len(groups["de"]) != 1 {
		t.Errorf("GroupByLanguage() = %v", groups)
	}
}

func TestEmptyBatchAverage(t *testing.T) {
	if got := NewBatch(nil).AverageConfidence(); got != 0 {
		t.Errorf("empty batch average = %v, want 0", got)
	}
}
