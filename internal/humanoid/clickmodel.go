package humanoid

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"go.uber.org/zap"
)

// terminalTargetWidth is W for the corrective phase before a press.
const terminalTargetWidth = 20.0

// MoveClick glides to p and left-clicks it. Natural clicks land within
// JitterPixels of p; precise clicks land on p.
func (h *Humanoid) MoveClick(ctx context.Context, p schemas.Point, style schemas.ClickStyle) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.syncPosition(ctx)
	aim := h.aimPoint(p, style)
	if err := h.moveTo(ctx, aim); err != nil {
		return fmt.Errorf("move to %s: %w", p, err)
	}
	if err := h.sleep(ctx, h.terminalLatency(aim.Dist(vec(p)))); err != nil {
		return err
	}
	return h.click(ctx)
}

// aimPoint offsets p by a Gaussian jitter clamped to the jitter radius.
func (h *Humanoid) aimPoint(p schemas.Point, style schemas.ClickStyle) Vector2D {
	target := vec(p)
	radius := h.baseConfig.JitterPixels
	if style == schemas.ClickPrecise || radius <= 0 {
		return target
	}
	off := Vector2D{X: h.rng.NormFloat64() * radius / 2, Y: h.rng.NormFloat64() * radius / 2}
	if m := off.Mag(); m > radius {
		off = off.Mul(radius / m)
	}
	return target.Add(off)
}

// terminalLatency is the settle time before pressing, from Fitts's law over
// the residual distance to the nominal target.
func (h *Humanoid) terminalLatency(residual float64) time.Duration {
	id := math.Log2(1.0 + residual/terminalTargetWidth)
	ms := h.dynamicConfig.FittsA*0.3 + h.dynamicConfig.FittsB*id
	ms *= 0.8 + h.rng.Float64()*0.4
	return time.Duration(ms * float64(time.Millisecond))
}

// click presses and releases the left button at the current position.
func (h *Humanoid) click(ctx context.Context) error {
	down := schemas.MouseEventData{
		Type:       schemas.MousePress,
		X:          h.currentPos.X,
		Y:          h.currentPos.Y,
		Button:     schemas.ButtonLeft,
		Buttons:    1,
		ClickCount: 1,
	}
	if err := h.device.DispatchMouseEvent(ctx, down); err != nil {
		return fmt.Errorf("mouse down: %w", err)
	}

	holdErr := h.clock.Sleep(ctx, h.holdDuration())

	up := down
	up.Type = schemas.MouseRelease
	up.Buttons = 0
	// Release even if the hold was interrupted so no button stays pressed.
	releaseCtx := ctx
	if holdErr != nil {
		releaseCtx = context.WithoutCancel(ctx)
	}
	if err := h.device.DispatchMouseEvent(releaseCtx, up); err != nil {
		h.logger.Warn("Failed to release mouse button.", zap.Error(err))
		return fmt.Errorf("mouse up: %w", err)
	}
	if holdErr != nil {
		return holdErr
	}
	h.updateFatigue(1)
	return nil
}

func (h *Humanoid) holdDuration() time.Duration {
	lo, hi := h.baseConfig.ClickHoldMinMs, h.baseConfig.ClickHoldMaxMs
	ms := lo
	if hi > lo {
		ms += h.rng.Intn(hi - lo + 1)
	}
	return time.Duration(ms) * time.Millisecond
}
