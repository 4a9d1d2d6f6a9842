// Package intake turns an uploaded screenshot into a stored match record:
// decode, OCR, run the recognition pipeline, persist.
package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"log"

	"crucible/pkg/imgload"
	"crucible/pkg/pipeline"
)

// Recognizer reads the text of a screenshot.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Analysis is the outcome of analysing one screenshot.
type Analysis struct {
	Image  image.Image
	SHA256 string
	Text   string
	// OCRErr is set when text recognition failed; the record was then built
	// from empty text.
	OCRErr error
	Record pipeline.Record
}

// Failed reports whether the analysis should be flagged for review.
func (a Analysis) Failed() bool { return a.OCRErr != nil }

// FailedReason is a short description of the failure.
func (a Analysis) FailedReason() string {
	if a.OCRErr == nil {
		return ""
	}
	msg := "ocr: " + a.OCRErr.Error()
	if len(msg) > 255 {
		msg = msg[:255]
	}
	return msg
}

// Analyzer runs OCR and the pipeline. Recognizer may be nil, in which case
// every screenshot is processed with empty text.
type Analyzer struct {
	Processor  *pipeline.Processor
	Recognizer Recognizer
}

// ErrNoRecognizer is reported as the OCR error when no recognizer is set.
var ErrNoRecognizer = errors.New("text recognition disabled")

// Analyze decodes data and processes it. Only an undecodable image is an
// error.
func (a *Analyzer) Analyze(ctx context.Context, data []byte) (Analysis, error) {
	img, err := imgload.Decode(data)
	if err != nil {
		return Analysis{}, fmt.Errorf("decode screenshot: %w", err)
	}
	return a.AnalyzeImage(ctx, img, Hash(data)), nil
}

// AnalyzeImage processes an already decoded screenshot.
func (a *Analyzer) AnalyzeImage(ctx context.Context, img image.Image, sum string) Analysis {
	out := Analysis{Image: img, SHA256: sum}
	if a.Recognizer == nil {
		out.OCRErr = ErrNoRecognizer
	} else if text, err := a.Recognizer.Recognize(ctx, img); err != nil {
		log.Printf("intake: ocr failed sha=%s: %v", short(sum), err)
		out.OCRErr = err
	} else {
		out.Text = text
	}
	out.Record = a.Processor.Run(img, out.Text)
	return out
}

// Hash is the hex sha256 used to detect duplicate uploads.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func short(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
