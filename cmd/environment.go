package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/clock"
	"github.com/xkilldash9x/unfollowed/internal/config"
	"github.com/xkilldash9x/unfollowed/internal/humanoid"
	"github.com/xkilldash9x/unfollowed/internal/vision/capture"
	"github.com/xkilldash9x/unfollowed/internal/vision/textreader"
)

// environment creates the components that touch the operating system. This
// abstraction lets the commands run against synthetic screens in tests.
type environment interface {
	Screen(cfg *config.Config, logger *zap.Logger) (schemas.ScreenCapability, error)
	Device(cfg *config.Config, logger *zap.Logger) (humanoid.Device, error)
	// Recognizer returns an OCR engine and a function releasing it. Username
	// recognizers are restricted to username characters.
	Recognizer(cfg *config.Config, usernames bool) (textreader.Recognizer, func(), error)
	Clock() clock.Clock
}

// defaultEnvironment is the production environment: the live display, the
// configured input backend and Tesseract.
type defaultEnvironment struct{}

func (defaultEnvironment) Screen(cfg *config.Config, logger *zap.Logger) (schemas.ScreenCapability, error) {
	return capture.NewScreen(cfg.Screen.Bounds(), cfg.Screen.CaptureMinInterval, logger), nil
}

func (defaultEnvironment) Device(cfg *config.Config, logger *zap.Logger) (humanoid.Device, error) {
	switch cfg.Input.Backend {
	case "noop":
		logger.Warn("Input backend is noop: no pointer or keyboard events will reach the screen.")
		return humanoid.NewNopDevice(logger), nil
	case "xdotool", "":
		d := humanoid.NewXdotoolDevice(cfg.Input.XdotoolPath, logger)
		if err := d.LookPath(); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown input backend %q", cfg.Input.Backend)
	}
}

func (defaultEnvironment) Recognizer(cfg *config.Config, usernames bool) (textreader.Recognizer, func(), error) {
	t, err := textreader.NewTesseract(cfg.Vision.OCRLanguage, usernames)
	if err != nil {
		return nil, nil, err
	}
	return t, func() { _ = t.Close() }, nil
}

func (defaultEnvironment) Clock() clock.Clock { return clock.Real{} }
