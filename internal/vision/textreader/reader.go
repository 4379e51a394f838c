// Package textreader extracts text rows from list screenshots. It slices the
// viewport into row bands, crops the username area of every band, cleans it
// up for an OCR engine and keeps the longest username-shaped token.
package textreader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/config"
	"go.uber.org/zap"
)

// ErrRecognizerUnavailable is returned when the binary was built without an
// OCR engine.
var ErrRecognizerUnavailable = errors.New("OCR engine not available in this build (rebuild with -tags tesseract)")

// Recognizer is an OCR engine. It receives a preprocessed grayscale crop and
// returns the raw text with a confidence in [0, 1].
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (text string, confidence float64, err error)
}

// Segmentation modes.
const (
	SegmentFixed = "fixed"
	SegmentGap   = "gap"
)

// Options tunes a Reader.
type Options struct {
	Segmentation string
	RowHeight    int
	MinGap       int
	// Username area relative to the row's top-left corner.
	OCRRegion config.OCRRegion
	// Upscale is the integer resampling factor applied before recognition.
	Upscale int
}

// OptionsFromConfig maps the vision configuration onto reader options.
func OptionsFromConfig(cfg config.VisionConfig) Options {
	return Options{
		Segmentation: cfg.Segmentation,
		RowHeight:    cfg.RowHeight,
		MinGap:       cfg.MinGap,
		OCRRegion:    cfg.OCRRegion,
		Upscale:      3,
	}
}

// RowsResult is the outcome of reading a viewport.
type RowsResult struct {
	Rows []schemas.TextRow
	// Expected is how many rows fit the viewport.
	Expected int
	// LowConfidence is set when fewer rows were read than expected. It is a
	// hint to re-capture, not an error.
	LowConfidence bool
}

// Reader reads text rows from screenshots.
type Reader struct {
	rec    Recognizer
	opts   Options
	logger *zap.Logger
}

// New creates a Reader.
func New(rec Recognizer, opts Options, logger *zap.Logger) *Reader {
	if opts.Segmentation == "" {
		opts.Segmentation = SegmentFixed
	}
	if opts.MinGap <= 0 {
		opts.MinGap = 1
	}
	return &Reader{rec: rec, opts: opts, logger: logger.Named("textreader")}
}

// Expected returns how many rows fit a viewport of the given height.
func (r *Reader) Expected(height int) int {
	if r.opts.RowHeight <= 0 {
		return 0
	}
	return height / r.opts.RowHeight
}

// Bands returns the row bands of img in img's coordinate space.
func (r *Reader) Bands(img image.Image) []schemas.Rect {
	if r.opts.Segmentation == SegmentGap {
		return gapBands(img, r.opts.MinGap)
	}
	return fixedBands(img.Bounds(), r.opts.RowHeight)
}

// ReadRows reads every row band of img, top to bottom. Bands without a
// username token are dropped. Boxes are in img's coordinate space.
func (r *Reader) ReadRows(ctx context.Context, img image.Image) (RowsResult, error) {
	if r.opts.RowHeight <= 0 {
		return RowsResult{}, fmt.Errorf("row height must be positive")
	}

	bands := r.Bands(img)
	res := RowsResult{Expected: r.Expected(img.Bounds().Dy())}
	for _, band := range bands {
		row, ok, err := r.ReadBand(ctx, img, band)
		if err != nil {
			return RowsResult{}, err
		}
		if ok {
			res.Rows = append(res.Rows, row)
		}
	}
	res.LowConfidence = len(res.Rows) < res.Expected

	r.logger.Debug("Read rows.",
		zap.Int("bands", len(bands)),
		zap.Int("rows", len(res.Rows)),
		zap.Int("expected", res.Expected),
		zap.Bool("low_confidence", res.LowConfidence))
	return res, nil
}

// ReadBand reads the username in a single row band.
func (r *Reader) ReadBand(ctx context.Context, img image.Image, band schemas.Rect) (schemas.TextRow, bool, error) {
	if err := ctx.Err(); err != nil {
		return schemas.TextRow{}, false, err
	}

	area := r.usernameArea(band).Intersect(schemas.RectFromImage(img.Bounds()))
	if area.Empty() {
		return schemas.TextRow{}, false, nil
	}
	crop := subImage(img, area)

	raw, conf, err := r.rec.Recognize(ctx, preprocess(crop, r.opts.Upscale))
	if err != nil {
		return schemas.TextRow{}, false, fmt.Errorf("recognize row %s: %w", band, err)
	}
	text := CleanUsername(raw)
	if text == "" {
		return schemas.TextRow{}, false, nil
	}
	return schemas.TextRow{Text: text, Box: band, Confidence: conf}, true, nil
}

// usernameArea places the configured OCR region inside band. Gap bands have
// no fixed layout, so they keep the horizontal placement and span the band.
func (r *Reader) usernameArea(band schemas.Rect) schemas.Rect {
	o := r.opts.OCRRegion
	if o.Width <= 0 {
		return band
	}
	if r.opts.Segmentation == SegmentGap {
		return schemas.Rect{X: band.X + o.OffsetX, Y: band.Y, W: o.Width, H: band.H}
	}
	return schemas.Rect{X: band.X + o.OffsetX, Y: band.Y + o.OffsetY, W: o.Width, H: o.Height}
}

// ReadText recognizes all text in img without segmentation. It is meant for
// short checks such as spotting a block notice, so the image is not upscaled.
func (r *Reader) ReadText(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, _, err := r.rec.Recognize(ctx, preprocess(img, 1))
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func subImage(img image.Image, r schemas.Rect) image.Image {
	if s, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return s.SubImage(r.Image())
	}
	g := grayscale(img)
	b := img.Bounds()
	return g.SubImage(r.Image().Sub(b.Min))
}
