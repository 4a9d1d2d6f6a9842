package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// minHeight is the height small screenshots are upscaled to before OCR.
const minHeight = 1000

// prepare builds the base grayscale image used by every pass.
func prepare(img image.Image) *image.NRGBA {
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 15)
	gray = imaging.Sharpen(gray, 0.7)
	if gray.Bounds().Dy() < minHeight {
		gray = imaging.Resize(gray, 0, minHeight, imaging.Lanczos)
	}
	return gray
}

// binarize performs a global threshold on a grayscale image. Pixels at or
// below threshold become black.
func binarize(img *image.NRGBA, threshold uint8) *image.NRGBA {
	b := img.Bounds()
	out := imaging.New(b.Dx(), b.Dy(), color.NRGBA{255, 255, 255, 255})
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			i := x * 4
			gray := (int(src[i]) + int(src[i+1]) + int(src[i+2])) / 3
			if gray <= int(threshold) {
				dst[i], dst[i+1], dst[i+2] = 0, 0, 0
			}
		}
	}
	return out
}

// meanLuma is the average brightness of img in [0,255].
func meanLuma(img *image.NRGBA) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	var sum int64
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			sum += int64(row[x]) + int64(row[x+1]) + int64(row[x+2])
		}
	}
	return float64(sum) / float64(3*b.Dx()*b.Dy())
}

// forDarkText returns img with dark text on a light background. Result
// screens are mostly light text on dark art, which tesseract reads poorly.
func forDarkText(img *image.NRGBA) *image.NRGBA {
	if meanLuma(img) < 128 {
		return imaging.Invert(img)
	}
	return img
}
