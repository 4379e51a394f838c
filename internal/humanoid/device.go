package humanoid

import (
	"context"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"go.uber.org/zap"
)

// Device delivers raw input events to the operating system. The Humanoid
// decides what to send and when; the Device only sends it.
type Device interface {
	DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error
	SendKeys(ctx context.Context, keys string) error
}

// Positioner is implemented by devices that can report where the pointer is.
// A Humanoid asks once, before its first movement.
type Positioner interface {
	CursorPosition(ctx context.Context) (schemas.Point, error)
}

// NopDevice accepts every event and only logs it. It backs dry calibration
// sessions on machines without an input backend.
type NopDevice struct {
	logger *zap.Logger
}

// NewNopDevice returns a device that logs events at debug level.
func NewNopDevice(logger *zap.Logger) *NopDevice {
	return &NopDevice{logger: logger.Named("nop_device")}
}

func (d *NopDevice) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	if data.Type != schemas.MouseMove {
		d.logger.Debug("Mouse event.",
			zap.String("type", string(data.Type)),
			zap.Float64("x", data.X),
			zap.Float64("y", data.Y),
			zap.Float64("delta_y", data.DeltaY))
	}
	return ctx.Err()
}

func (d *NopDevice) SendKeys(ctx context.Context, keys string) error {
	d.logger.Debug("Keys.", zap.Int("len", len(keys)))
	return ctx.Err()
}
