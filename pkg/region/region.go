// Package region crops named, relatively positioned slots out of a screenshot.
package region

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Rect is a named slot expressed in fractions of the source width/height.
type Rect struct {
	ID string  `yaml:"id" json:"id"`
	X  float64 `yaml:"x" json:"x"`
	Y  float64 `yaml:"y" json:"y"`
	W  float64 `yaml:"w" json:"w"`
	H  float64 `yaml:"h" json:"h"`
}

// InUnitSquare reports whether the rectangle lies inside [0,1]x[0,1] before
// any clamping.
func (r Rect) InUnitSquare() bool {
	return r.X >= 0 && r.Y >= 0 && r.W > 0 && r.H > 0 && r.X+r.W <= 1 && r.Y+r.H <= 1
}

// PixelBounds converts r to absolute pixels for an image of width w and
// height h. The origin is clamped into the image and both extents are at
// least one pixel and never run past the right/bottom edge.
func PixelBounds(w, h int, r Rect) image.Rectangle {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	x := clamp(round(r.X*float64(w)), 0, w-1)
	y := clamp(round(r.Y*float64(h)), 0, h-1)
	cw := clamp(round(r.W*float64(w)), 1, w-x)
	ch := clamp(round(r.H*float64(h)), 1, h-y)
	return image.Rect(x, y, x+cw, y+ch)
}

// Extract returns a copy of the pixels of img covered by r. The returned
// image owns its own buffer, so later changes to img do not affect it.
func Extract(img image.Image, r Rect) *image.NRGBA {
	if img == nil {
		return imaging.New(1, 1, color.NRGBA{})
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return imaging.New(1, 1, color.NRGBA{})
	}
	rect := PixelBounds(b.Dx(), b.Dy(), r).Add(b.Min)
	return imaging.Crop(img, rect)
}

func round(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int(math.Round(v))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
