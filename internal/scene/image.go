// Package scene provides perceptual scene-change classification over
// extracted keyframes: pHash, single-window SSIM, histogram entropy, and a
// three-signal classifier with confidence scoring.
package scene

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"
)

// grayResample converts an image to grayscale and scales it to w x h.
func grayResample(src image.Image, w, h int) *image.Gray {
	gray := toGray(src)
	if gray.Bounds().Dx() == w && gray.Bounds().Dy() == h {
		return gray
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), gray, gray.Bounds(), xdraw.Src, nil)
	return dst
}

func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
	return dst
}

// loadImage decodes a frame image from disk.
func loadImage(path string) (image.Image, error) {
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
