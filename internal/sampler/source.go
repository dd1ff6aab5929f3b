package sampler

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/halward/screenidx/internal/errors"
)

// DirectorySource reads pre-decoded frame images from a directory, sorted by
// filename. It stands in for the external video decoder: a recorder-side
// adapter dumps each segment's decoded frames as an image sequence.
type DirectorySource struct {
	paths []string
	fps   float64
	pos   int
}

// NewDirectorySource scans dir for PNG/JPEG frames. It fails with
// UnsupportedFormat when the directory holds no frame images.
func NewDirectorySource(dir string, fps float64) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewCorruptedVideoError(dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, errors.NewUnsupportedFormatError(dir)
	}
	sort.Strings(paths)

	return &DirectorySource{paths: paths, fps: fps}, nil
}

// SourceFPS returns the declared frame rate of the sequence.
func (d *DirectorySource) SourceFPS() float64 {
	return d.fps
}

// Next decodes and returns the next frame, io.EOF at the end. A frame that
// fails to decode fails the whole source: the segment is corrupted.
func (d *DirectorySource) Next() (image.Image, error) {
	if d.pos >= len(d.paths) {
		return nil, io.EOF
	}
	path := d.paths[d.pos]
	d.pos++

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Close releases the source. DirectorySource holds no open handles between
// calls.
func (d *DirectorySource) Close() error {
	return nil
}
