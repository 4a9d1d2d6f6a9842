package ocr

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

type pass struct {
	name string
	img  image.Image
	psm  gosseract.PageSegMode
}

// passes lists the OCR attempts in order of preference. The first one reads
// the whole screen as tesseract sees fit; later ones trade layout analysis
// for robustness on busy backgrounds.
func passes(gray *image.NRGBA) []pass {
	dark := forDarkText(gray)
	bin := binarize(dark, 150)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	// Field labels sit in the lower half of the result screen.
	lower := imaging.Crop(dark, image.Rect(0, h/2, w, h))
	return []pass{
		{name: "auto", img: dark, psm: gosseract.PSM_AUTO},
		{name: "sparse", img: dark, psm: gosseract.PSM_SPARSE_TEXT},
		{name: "binary", img: bin, psm: gosseract.PSM_SPARSE_TEXT},
		{name: "lower", img: lower, psm: gosseract.PSM_SINGLE_BLOCK},
	}
}
