package scene

import (
	"image"
	"math"
	"math/bits"
)

// SSIM window constants for 8-bit dynamic range.
const (
	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)
)

// PHash computes a 64-bit mean-threshold perceptual hash over an 8x8
// grayscale resample. Uniform resamples get a fixed mid-gray threshold and
// the shade mixed into the top byte, so solid fills of different brightness
// still hash apart.
func PHash(img image.Image) uint64 {
	small := grayResample(img, 8, 8)

	var sum uint32
	uniform := true
	first := small.Pix[0]
	for _, p := range small.Pix[:64] {
		sum += uint32(p)
		if p != first {
			uniform = false
		}
	}

	threshold := sum / 64
	if uniform {
		threshold = 128
	}

	var hash uint64
	for i, p := range small.Pix[:64] {
		if uint32(p) >= threshold {
			hash |= 1 << uint(i)
		}
	}

	if uniform {
		hash ^= uint64(first) << 56
	}
	return hash
}

// HammingDistance counts differing bits between two hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// SSIM computes single-window structural similarity between two frames over
// 64x64 grayscale resamples. Result is in [-1, 1], near 1 for identical
// frames.
func SSIM(a, b image.Image) float64 {
	ga := grayResample(a, 64, 64)
	gb := grayResample(b, 64, 64)

	n := float64(64 * 64)
	var meanA, meanB float64
	for i := 0; i < 64*64; i++ {
		meanA += float64(ga.Pix[i])
		meanB += float64(gb.Pix[i])
	}
	meanA /= n
	meanB /= n

	var varA, varB, covar float64
	for i := 0; i < 64*64; i++ {
		da := float64(ga.Pix[i]) - meanA
		db := float64(gb.Pix[i]) - meanB
		varA += da * da
		varB += db * db
		covar += da * db
	}
	varA /= n - 1
	varB /= n - 1
	covar /= n - 1

	numerator := (2*meanA*meanB + ssimC1) * (2*covar + ssimC2)
	denominator := (meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2)
	return numerator / denominator
}

// Entropy computes the Shannon entropy in bits of the full-frame grayscale
// histogram.
func Entropy(img image.Image) float64 {
	gray := toGray(img)

	var hist [256]int
	for _, p := range gray.Pix {
		hist[p]++
	}

	total := float64(len(gray.Pix))
	if total == 0 {
		return 0
	}

	var entropy float64
	for _, count := range hist {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}
