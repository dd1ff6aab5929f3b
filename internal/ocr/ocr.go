// Package ocr defines the typed OCR records consumed by the analyzers.
// OCR itself happens upstream; this package is the data model plus the
// geometry used to relate text regions across frames.
package ocr

import (
	"time"
)

// BoundingBox is a rectangular region of interest in pixels, top-left origin.
type BoundingBox struct {
	X      float32
	Y      float32
	Width  float32
	Height float32
}

// NewBoundingBox creates a bounding box.
func NewBoundingBox(x, y, width, height float32) BoundingBox {
	return BoundingBox{X: x, Y: y, Width: width, Height: height}
}

// Area returns the box area in square pixels.
func (b BoundingBox) Area() float32 {
	return b.Width * b.Height
}

// CenterX returns the horizontal center of the box.
func (b BoundingBox) CenterX() float32 {
	return b.X + b.Width/2
}

// CenterY returns the vertical center of the box.
func (b BoundingBox) CenterY() float32 {
	return b.Y + b.Height/2
}

// Intersects reports whether two boxes overlap.
func (b BoundingBox) Intersects(other BoundingBox) bool {
	return b.X < other.X+other.Width &&
		b.X+b.Width > other.X &&
		b.Y < other.Y+other.Height &&
		b.Y+b.Height > other.Y
}

// IoU returns the intersection-over-union ratio of two boxes.
// Zero when disjoint, one when identical.
func (b BoundingBox) IoU(other BoundingBox) float32 {
	if !b.Intersects(other) {
		return 0
	}

	ix := maxf(b.X, other.X)
	iy := maxf(b.Y, other.Y)
	ix2 := minf(b.X+b.Width, other.X+other.Width)
	iy2 := minf(b.Y+b.Height, other.Y+other.Height)

	intersection := (ix2 - ix) * (iy2 - iy)
	union := b.Area() + other.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// Result is one recognized text region on one frame. Multiple results per
// frame are allowed; order within a frame carries no meaning.
type Result struct {
	FrameID     string
	ROI         BoundingBox
	Text        string
	Language    string
	Confidence  float32
	ProcessedAt time.Time
	Processor   string
}

// Batch groups the OCR results of one processing run.
type Batch struct {
	Results   []Result
	CreatedAt time.Time
}

// NewBatch creates a batch stamped with the current time.
func NewBatch(results []Result) Batch {
	return Batch{Results: results, CreatedAt: time.Now()}
}

// RegionCount returns the number of text regions in the batch.
func (b Batch) RegionCount() int {
	return len(b.Results)
}

// AverageConfidence returns the mean confidence across the batch, zero when empty.
func (b Batch) AverageConfidence() float32 {
	if len(b.Results) == 0 {
		return 0
	}
	var sum float32
	for _, r := range b.Results {
		sum += r.Confidence
	}
	return sum / float32(len(b.Results))
}

// FilterByConfidence returns the results at or above the threshold.
func (b Batch) FilterByConfidence(min float32) []Result {
	var out []Result
	for _, r := range b.Results {
		if r.Confidence >= min {
			out = append(out, r)
		}
	}
	return out
}

// GroupByLanguage buckets results by their language tag.
func (b Batch) GroupByLanguage() map[string][]Result {
	groups := make(map[string][]Result)
	for _, r := range b.Results {
		groups[r.Language] = append(groups[r.Language], r)
	}
	return groups
}
