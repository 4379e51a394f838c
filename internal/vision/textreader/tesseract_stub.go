//go:build !tesseract

package textreader

import (
	"context"
	"image"
)

// Tesseract is unavailable in builds without the tesseract tag.
type Tesseract struct{}

// NewTesseract always fails in builds without the tesseract tag.
func NewTesseract(language string, whitelist bool) (*Tesseract, error) {
	return nil, ErrRecognizerUnavailable
}

// Recognize implements Recognizer.
func (*Tesseract) Recognize(context.Context, image.Image) (string, float64, error) {
	return "", 0, ErrRecognizerUnavailable
}

// Close is a no-op.
func (*Tesseract) Close() error { return nil }
