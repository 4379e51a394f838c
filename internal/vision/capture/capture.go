// Package capture produces pixel images of screen regions. Every image it
// returns has Bounds() equal to the requested region in absolute screen
// coordinates, so callers can translate detections without bookkeeping.
package capture

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
	"github.com/xkilldash9x/unfollowed/api/schemas"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GrabFunc grabs the pixels of an absolute screen rectangle.
type GrabFunc func(r image.Rectangle) (*image.RGBA, error)

// Screen is the live ScreenCapability backed by the display server.
type Screen struct {
	bounds  schemas.Rect
	grab    GrabFunc
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option customises a Screen.
type Option func(*Screen)

// WithGrabFunc replaces the display grabber.
func WithGrabFunc(fn GrabFunc) Option {
	return func(s *Screen) { s.grab = fn }
}

// NewScreen creates a capture for a screen of the given bounds. Consecutive
// grabs are spaced by at least minInterval.
func NewScreen(bounds schemas.Rect, minInterval time.Duration, logger *zap.Logger, opts ...Option) *Screen {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	s := &Screen{
		bounds:  bounds,
		grab:    screenshot.CaptureRect,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("capture"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture grabs region. The region must lie inside the screen bounds.
func (s *Screen) Capture(ctx context.Context, region schemas.Rect) (image.Image, error) {
	if region.Empty() || region.Intersect(s.bounds) != region {
		return nil, fmt.Errorf("capture region %s outside screen %s", region, s.bounds)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("capture throttle: %w", err)
	}

	start := time.Now()
	img, err := s.grab(region.Image())
	if err != nil {
		return nil, fmt.Errorf("grab %s: %w", region, err)
	}
	if img.Rect.Dx() != region.W || img.Rect.Dy() != region.H {
		return nil, fmt.Errorf("grab %s returned %dx%d pixels", region, img.Rect.Dx(), img.Rect.Dy())
	}
	// Grabbers return zero-origin images; move the origin to the region.
	img.Rect = region.Image()

	s.logger.Debug("Captured region.", zap.Stringer("region", region), zap.Duration("took", time.Since(start)))
	return img, nil
}

// Static serves regions cut from fixed full-screen frames. Each Capture call
// advances to the next frame; the last frame repeats forever. It backs the
// calibrate command's --from-file mode and the package tests of the pipeline.
type Static struct {
	mu     sync.Mutex
	frames []image.Image
	next   int
	calls  []schemas.Rect
}

// NewStatic creates a Static capture over frames in screen coordinates.
func NewStatic(frames ...image.Image) *Static {
	return &Static{frames: frames}
}

// LoadFrame reads a PNG screenshot from disk.
func LoadFrame(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Capture returns a copy of region from the current frame.
func (s *Static) Capture(ctx context.Context, region schemas.Rect) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return nil, fmt.Errorf("static capture has no frames")
	}
	frame := s.frames[min(s.next, len(s.frames)-1)]
	s.next++
	s.calls = append(s.calls, region)

	if region.Intersect(schemas.RectFromImage(frame.Bounds())) != region {
		return nil, fmt.Errorf("capture region %s outside frame %v", region, frame.Bounds())
	}
	out := image.NewRGBA(region.Image())
	draw.Draw(out, out.Rect, frame, out.Rect.Min, draw.Src)
	return out, nil
}

// Calls returns the regions captured so far.
func (s *Static) Calls() []schemas.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schemas.Rect(nil), s.calls...)
}
