package sampler

import (
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/halward/screenidx/internal/errors"
)

// ThumbnailStore persists keyframe thumbnails as PNG files under
// <root>/frames/<segment_id>/.
type ThumbnailStore struct {
	root string
}

// NewThumbnailStore creates a store rooted at the output directory.
func NewThumbnailStore(root string) *ThumbnailStore {
	return &ThumbnailStore{root: root}
}

// Write persists one frame and returns its on-disk path.
func (t *ThumbnailStore) Write(segmentID string, n int, img image.Image) (string, error) {
	path := ThumbnailPath(t.root, segmentID, n)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", errors.NewIOError("creating thumbnail directory", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", errors.NewIOError("creating thumbnail "+path, err)
	}
	defer func() { _ = f.Close() }()

	if err := png.Encode(f, img); err != nil {
		return "", errors.NewIOError("encoding thumbnail "+path, err)
	}
	return path, nil
}
