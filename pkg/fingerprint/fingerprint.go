// Package fingerprint reduces an image to a small grayscale intensity vector
// that can be compared against other vectors of the same size.
package fingerprint

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/floats"
)

// DefaultSize is the side of the square sampling grid (16x16 = 256 values).
const DefaultSize = 16

// Fingerprint is a row-major list of normalized intensities in [0,1].
type Fingerprint []float64

// Build resamples img to a size x size grid and returns the mean of the
// R, G and B channels of every cell divided by 255. The Box filter is used
// so the result is deterministic for identical input. A size <= 0 falls back
// to DefaultSize. Images of any size, including 1x1, are stretched to the
// grid; an image without pixels produces an all-zero fingerprint.
func Build(img image.Image, size int) Fingerprint {
	if size <= 0 {
		size = DefaultSize
	}
	fp := make(Fingerprint, size*size)
	if img == nil {
		return fp
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fp
	}
	small := imaging.Resize(img, size, size, imaging.Box)
	for y := 0; y < size; y++ {
		row := small.Pix[y*small.Stride:]
		for x := 0; x < size; x++ {
			px := row[x*4 : x*4+3]
			sum := int(px[0]) + int(px[1]) + int(px[2])
			fp[y*size+x] = float64(sum) / 3 / 255
		}
	}
	return fp
}

// Side returns the grid side for a fingerprint, or 0 when its length is not
// a perfect square.
func (fp Fingerprint) Side() int {
	n := int(math.Sqrt(float64(len(fp))))
	if n*n != len(fp) {
		return 0
	}
	return n
}

// Distance is the root mean squared difference between a and b. It is
// symmetric and zero for identical input. Fingerprints of different length
// (or empty ones) are not comparable and yield +Inf.
func Distance(a, b Fingerprint) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}
	return floats.Distance(a, b, 2) / math.Sqrt(float64(len(a)))
}
