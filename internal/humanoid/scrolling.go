package humanoid

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/unfollowed/api/schemas"
)

// wheelNotch is the delta of one detent of a standard mouse wheel.
const wheelNotch = 120.0

// Scroll turns the wheel amount notches in dir at the current pointer
// position, pausing between notches.
func (h *Humanoid) Scroll(ctx context.Context, dir schemas.ScrollDirection, amount int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if amount <= 0 {
		return nil
	}
	delta := wheelNotch
	if dir == schemas.ScrollUp {
		delta = -wheelNotch
	}

	h.syncPosition(ctx)
	if !h.scrollArea.Empty() && !h.scrollArea.Contains(h.currentPos.Point()) {
		if err := h.moveTo(ctx, h.pointIn(h.scrollArea)); err != nil {
			return fmt.Errorf("move into scroll area: %w", err)
		}
	}

	for i := 0; i < amount; i++ {
		err := h.device.DispatchMouseEvent(ctx, schemas.MouseEventData{
			Type:   schemas.MouseWheel,
			X:      h.currentPos.X,
			Y:      h.currentPos.Y,
			Button: schemas.ButtonNone,
			DeltaY: delta,
		})
		if err != nil {
			return fmt.Errorf("scroll notch %d: %w", i+1, err)
		}
		if err := h.sleep(ctx, h.notchPause()); err != nil {
			return err
		}
	}
	h.updateFatigue(float64(amount) * 0.1)
	return nil
}

// pointIn picks a point in the middle half of area.
func (h *Humanoid) pointIn(area schemas.Rect) Vector2D {
	return Vector2D{
		X: float64(area.X) + float64(area.W)*(0.25+h.rng.Float64()*0.5),
		Y: float64(area.Y) + float64(area.H)*(0.25+h.rng.Float64()*0.5),
	}
}

// notchPause varies the configured pause by +/-30% and stretches it with fatigue.
func (h *Humanoid) notchPause() time.Duration {
	ms := float64(h.baseConfig.ScrollNotchPauseMs) * (0.7 + h.rng.Float64()*0.6)
	ms *= 1.0 + h.fatigueLevel*0.5
	return time.Duration(ms * float64(time.Millisecond))
}
