package scene

import (
	"image"

	"github.com/halward/screenidx/internal/config"
	"github.com/halward/screenidx/internal/logging"
)

// ChangeKind labels the transition between two adjacent frames.
type ChangeKind string

const (
	// Cut is an abrupt full-scene change.
	Cut ChangeKind = "cut"
	// Fade is a gradual transition.
	Fade ChangeKind = "fade"
	// Motion is significant movement without a structural break.
	Motion ChangeKind = "motion"
	// ContentChange is a UI or content modification.
	ContentChange ChangeKind = "content_change"
)

// Change is an emitted scene transition with its supporting signals.
type Change struct {
	FrameIndex    int
	TimestampNs   int64
	Kind          ChangeKind
	Confidence    float32
	SSIM          float64
	PHashDistance int
	EntropyDelta  float64
}

// FrameRef addresses one extracted keyframe on disk.
type FrameRef struct {
	Index       int
	TimestampNs int64
	Path        string
}

// Classifier applies the threshold rules over frame-pair signals.
type Classifier struct {
	cfg config.SceneConfig
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg config.SceneConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify maps a signal triple to a change kind. The rules are ordered;
// the first match wins. Returns false when no transition threshold is
// crossed.
func (c *Classifier) Classify(ssim float64, phashDistance int, entropyDelta float64) (ChangeKind, bool) {
	switch {
	case ssim < c.cfg.SSIMThreshold && phashDistance > 2*c.cfg.PHashDistanceThreshold:
		return Cut, true
	case ssim < c.cfg.SSIMThreshold && entropyDelta > 2*c.cfg.EntropyThreshold:
		return ContentChange, true
	case ssim < c.cfg.SSIMThreshold:
		return Fade, true
	case phashDistance > c.cfg.PHashDistanceThreshold:
		return Motion, true
	case entropyDelta > c.cfg.EntropyThreshold:
		return ContentChange, true
	default:
		return "", false
	}
}

// Confidence blends the three signals into [0, 1]. Strong structural breaks
// (low SSIM or large hash distance) get a 1.5x boost before clamping.
func (c *Classifier) Confidence(ssim float64, phashDistance int, entropyDelta float64) float32 {
	base := 0.4*(1-ssim) + 0.4*minFloat(float64(phashDistance)/32, 1) + 0.2*minFloat(entropyDelta/4, 1)

	if ssim < 0.5 || phashDistance > 20 {
		base *= 1.5
	}

	if base < 0 {
		base = 0
	}
	if base > 1 {
		base = 1
	}
	return float32(base)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Detector walks an ordered keyframe sequence and emits scene changes for
// each adjacent pair that crosses a threshold.
type Detector struct {
	classifier *Classifier
	log        *logging.Logger
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(cfg config.SceneConfig, log *logging.Logger) *Detector {
	if log == nil {
		log = logging.Global()
	}
	return &Detector{classifier: NewClassifier(cfg), log: log}
}

// DetectFiles loads each frame from disk and classifies adjacent pairs.
// A frame that fails to load is skipped and the previous frame stays the
// comparator. The first frame never emits a change.
func (d *Detector) DetectFiles(frames []FrameRef) []Change {
	if len(frames) < 2 {
		return nil
	}

	var changes []Change
	var prev image.Image
	var prevHash uint64
	var prevEntropy float64

	for _, ref := range frames {
		img, err := loadImage(ref.Path)
		if err != nil {
			d.log.Warn("skipping unreadable keyframe", "path", ref.Path, "error", err)
			continue
		}

		hash := PHash(img)
		entropy := Entropy(img)

		if prev != nil {
			if change, ok := d.ClassifyPair(prev, img, prevHash, hash, prevEntropy, entropy); ok {
				change.FrameIndex = ref.Index
				change.TimestampNs = ref.TimestampNs
				changes = append(changes, change)
			}
		}

		prev = img
		prevHash = hash
		prevEntropy = entropy
	}

	d.log.Debug("scene detection complete", "frames", len(frames), "changes", len(changes))
	return changes
}

// ClassifyPair computes the pair signals and applies the rules. The caller
// supplies precomputed per-frame hash and entropy so sequential scans only
// compute each once.
func (d *Detector) ClassifyPair(prev, cur image.Image, prevHash, curHash uint64, prevEntropy, curEntropy float64) (Change, bool) {
	ssim := SSIM(prev, cur)
	dist := HammingDistance(prevHash, curHash)
	delta := curEntropy - prevEntropy
	if delta < 0 {
		delta = -delta
	}

	kind, ok := d.classifier.Classify(ssim, dist, delta)
	if !ok {
		return Change{}, false
	}

	return Change{
		Kind:          kind,
		Confidence:    d.classifier.Confidence(ssim, dist, delta),
		SSIM:          ssim,
		PHashDistance: dist,
		EntropyDelta:  delta,
	}, true
}
