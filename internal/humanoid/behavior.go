package humanoid

import (
	"context"
	"math"
	"time"
)

// CognitivePause waits for a normally distributed span, scaled up by fatigue.
func (h *Humanoid) CognitivePause(ctx context.Context, meanMs, stdDevMs float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cognitivePause(ctx, meanMs, stdDevMs)
}

func (h *Humanoid) cognitivePause(ctx context.Context, meanMs, stdDevMs float64) error {
	ms := meanMs + h.rng.NormFloat64()*stdDevMs
	ms *= 1.0 + h.fatigueLevel*0.3
	ms = math.Max(meanMs*0.25, ms)
	return h.sleep(ctx, time.Duration(ms*float64(time.Millisecond)))
}

// applyGaussianNoise adds high-frequency tremor to a coordinate.
func (h *Humanoid) applyGaussianNoise(point Vector2D) Vector2D {
	strength := h.dynamicConfig.GaussianStrength * (0.5 + h.rng.Float64())
	return Vector2D{
		X: point.X + h.rng.NormFloat64()*strength,
		Y: point.Y + h.rng.NormFloat64()*strength,
	}
}

func (h *Humanoid) applyFatigueEffects() {
	factor := 1.0 + h.fatigueLevel
	h.dynamicConfig.GaussianStrength = h.baseConfig.GaussianStrength * factor
	h.dynamicConfig.PerlinAmplitude = h.baseConfig.PerlinAmplitude * factor
	h.dynamicConfig.FittsA = h.baseConfig.FittsA * factor
}

// updateFatigue raises fatigue in proportion to the effort of a gesture.
func (h *Humanoid) updateFatigue(intensity float64) {
	h.fatigueLevel = math.Min(1.0, h.fatigueLevel+h.baseConfig.FatigueIncreaseRate*intensity)
	h.applyFatigueEffects()
}

// recoverFatigue lowers fatigue over an idle span.
func (h *Humanoid) recoverFatigue(d time.Duration) {
	if h.fatigueLevel == 0 {
		return
	}
	h.fatigueLevel = math.Max(0.0, h.fatigueLevel-h.baseConfig.FatigueRecoveryRate*d.Seconds())
	h.applyFatigueEffects()
}

// Fatigue reports the current fatigue level in [0, 1].
func (h *Humanoid) Fatigue() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fatigueLevel
}
