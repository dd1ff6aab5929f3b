package errormodal

import (
	"github.com/halward/screenidx/internal/config"
	"github.com/halward/screenidx/internal/ocr"
)

// LayoutAnalysis is the dialog-shape score of a region against the screen.
type LayoutAnalysis struct {
	IsDialogLayout bool
	DialogWidth    float32
	DialogHeight   float32
	CenterXRatio   float32
	CenterYRatio   float32
	IsCentered     bool
	Confidence     float32
}

type layoutAnalyzer struct {
	cfg config.ErrorModalConfig
}

// analyze scores a bounding box as a dialog:
// 0.4 size within bounds, 0.3 centered, 0.2 sane aspect ratio, 0.1 margin
// from every screen edge.
func (a *layoutAnalyzer) analyze(roi ocr.BoundingBox, screenW, screenH float32) LayoutAnalysis {
	sizeOK := roi.Width >= a.cfg.MinDialogWidth &&
		roi.Height >= a.cfg.MinDialogHeight &&
		roi.Width <= screenW*a.cfg.MaxDialogWidthRatio &&
		roi.Height <= screenH*a.cfg.MaxDialogHeightRatio

	centerX := roi.CenterX()
	centerY := roi.CenterY()

	const centerTolerance = 0.2
	isCentered := abs32(centerX-screenW/2) <= screenW*centerTolerance &&
		abs32(centerY-screenH/2) <= screenH*centerTolerance

	var confidence float32
	if sizeOK {
		confidence += 0.4
	}
	if isCentered {
		confidence += 0.3
	}

	if roi.Height > 0 {
		aspect := roi.Width / roi.Height
		if aspect >= 0.8 && aspect <= 3.0 {
			confidence += 0.2
		}
	}

	const margin = 50
	if roi.X > margin && roi.Y > margin &&
		roi.X+roi.Width < screenW-margin &&
		roi.Y+roi.Height < screenH-margin {
		confidence += 0.1
	}

	return LayoutAnalysis{
		IsDialogLayout: confidence >= 0.6,
		DialogWidth:    roi.Width,
		DialogHeight:   roi.Height,
		CenterXRatio:   centerX / screenW,
		CenterYRatio:   centerY / screenH,
		IsCentered:     isCentered,
		Confidence:     confidence,
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
