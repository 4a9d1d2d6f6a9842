// Package ocr reads the text of a result screen with Tesseract. Several
// preprocessing passes are tried and the text that exposes the most match
// fields is returned.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Engine wraps a tesseract client. A client is not safe for concurrent use,
// so calls are serialised.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewEngine creates an engine for the given tesseract languages ("eng" when
// none are given).
func NewEngine(languages ...string) (*Engine, error) {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set ocr language: %w", err)
	}
	return &Engine{client: client}, nil
}

// Close releases the tesseract client.
func (e *Engine) Close() error {
	if e == nil || e.client == nil {
		return nil
	}
	return e.client.Close()
}

// Recognize returns the best text over all passes. ErrNoText is returned
// when no pass produced anything.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", ErrNoText
	}
	var texts []string
	for _, p := range passes(prepare(img)) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		t, err := e.text(p)
		if err != nil {
			log.Printf("OCR pass %s failed: %v", p.name, err)
			continue
		}
		t = normalizeOCRText(t)
		texts = append(texts, t)
		// A pass that found every field cannot be beaten.
		if scoreText(t) == fullScore {
			break
		}
	}
	best, score := bestText(texts)
	if best == "" {
		return "", ErrNoText
	}
	log.Printf("OCR RAW passes=%d score=%d snippet=%q", len(texts), score, snippet(best, 180))
	return best, nil
}

func (e *Engine) text(p pass) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, p.img, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode pass image: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.client.SetPageSegMode(p.psm); err != nil {
		return "", fmt.Errorf("set psm: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	return e.client.Text()
}
