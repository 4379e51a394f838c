package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/unfollowed/api/schemas"
	"go.uber.org/zap"
)

var screenBounds = schemas.Rect{W: 1920, H: 1080}

func solid(r image.Rectangle, c color.Color) *image.RGBA {
	img := image.NewRGBA(r)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestScreenCaptureReorigins(t *testing.T) {
	var grabbed image.Rectangle
	grab := func(r image.Rectangle) (*image.RGBA, error) {
		grabbed = r
		return solid(image.Rect(0, 0, r.Dx(), r.Dy()), color.White), nil
	}
	s := NewScreen(screenBounds, 0, zap.NewNop(), WithGrabFunc(grab))

	region := schemas.Rect{X: 540, Y: 220, W: 840, H: 640}
	img, err := s.Capture(context.Background(), region)
	require.NoError(t, err)

	assert.Equal(t, region.Image(), grabbed)
	assert.Equal(t, region.Image(), img.Bounds())
	r, g, b, _ := img.At(540, 220).RGBA()
	assert.Equal(t, uint32(0xffff), r&g&b)
}

func TestScreenCaptureRejectsOutOfBounds(t *testing.T) {
	called := false
	s := NewScreen(screenBounds, 0, zap.NewNop(), WithGrabFunc(func(r image.Rectangle) (*image.RGBA, error) {
		called = true
		return nil, nil
	}))

	_, err := s.Capture(context.Background(), schemas.Rect{X: 1800, Y: 0, W: 300, H: 10})
	require.Error(t, err)
	assert.False(t, called)
}

func TestScreenCapturePropagatesGrabErrors(t *testing.T) {
	boom := errors.New("no display")
	s := NewScreen(screenBounds, 0, zap.NewNop(), WithGrabFunc(func(image.Rectangle) (*image.RGBA, error) {
		return nil, boom
	}))

	_, err := s.Capture(context.Background(), schemas.Rect{W: 10, H: 10})
	assert.ErrorIs(t, err, boom)
}

func TestScreenCaptureRejectsWrongSize(t *testing.T) {
	s := NewScreen(screenBounds, 0, zap.NewNop(), WithGrabFunc(func(image.Rectangle) (*image.RGBA, error) {
		return image.NewRGBA(image.Rect(0, 0, 5, 5)), nil
	}))

	_, err := s.Capture(context.Background(), schemas.Rect{W: 10, H: 10})
	assert.Error(t, err)
}

func TestScreenCaptureThrottleHonorsContext(t *testing.T) {
	s := NewScreen(screenBounds, time.Hour, zap.NewNop(), WithGrabFunc(func(r image.Rectangle) (*image.RGBA, error) {
		return image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy())), nil
	}))
	region := schemas.Rect{W: 4, H: 4}

	_, err := s.Capture(context.Background(), region)
	require.NoError(t, err, "first grab uses the burst token")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Capture(ctx, region)
	assert.Error(t, err, "second grab must wait for the interval")
}

func TestStaticCapture(t *testing.T) {
	first := solid(image.Rect(0, 0, 100, 100), color.Black)
	second := solid(image.Rect(0, 0, 100, 100), color.White)
	s := NewStatic(first, second)
	region := schemas.Rect{X: 10, Y: 20, W: 30, H: 40}

	a, err := s.Capture(context.Background(), region)
	require.NoError(t, err)
	assert.Equal(t, region.Image(), a.Bounds())
	assert.Equal(t, color.RGBA{A: 0xff}, a.(*image.RGBA).RGBAAt(10, 20))

	for range 3 {
		b, err := s.Capture(context.Background(), region)
		require.NoError(t, err)
		assert.Equal(t, color.RGBA{0xff, 0xff, 0xff, 0xff}, b.(*image.RGBA).RGBAAt(39, 59), "last frame repeats")
	}
	assert.Len(t, s.Calls(), 4)

	_, err = s.Capture(context.Background(), schemas.Rect{X: 90, Y: 90, W: 20, H: 20})
	assert.Error(t, err)
}

func TestStaticCaptureCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStatic(image.NewRGBA(image.Rect(0, 0, 1, 1))).Capture(ctx, schemas.Rect{W: 1, H: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, solid(image.Rect(0, 0, 8, 6), color.White)))
	require.NoError(t, f.Close())

	img, err := LoadFrame(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())

	_, err = LoadFrame(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
