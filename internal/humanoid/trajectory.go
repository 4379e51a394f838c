package humanoid

import (
	"context"
	"math"
	"time"

	"github.com/xkilldash9x/unfollowed/api/schemas"
)

const (
	// fittsTargetWidth is the nominal target width W in Fitts's law.
	fittsTargetWidth = 30.0
	// frameRate is the pointer update rate while moving.
	frameRate = 60.0
	// drift frequency along the path, in noise units per normalized path.
	driftFrequency = 0.8
)

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// fittsDuration is the movement time for distance, A + B*log2(1 + D/W),
// varied by +/-15%.
func (h *Humanoid) fittsDuration(distance float64) time.Duration {
	id := math.Log2(1.0 + distance/fittsTargetWidth)
	mt := h.dynamicConfig.FittsA + h.dynamicConfig.FittsB*id
	mt += mt * (h.rng.Float64()*0.3 - 0.15)
	return time.Duration(mt * float64(time.Millisecond))
}

// idealPath samples a cubic Bezier from start to end whose control points
// bow sideways by a random fraction of the distance.
func (h *Humanoid) idealPath(start, end Vector2D, steps int) []Vector2D {
	main := end.Sub(start)
	dist := main.Mag()
	if dist < 1.0 || steps <= 1 {
		return []Vector2D{end}
	}
	dir := main.Normalize()
	side := dir.Perp()
	bow := dist * (h.rng.Float64()*0.2 - 0.1)

	p0, p3 := start, end
	p1 := start.Add(dir.Mul(dist / 3)).Add(side.Mul(bow))
	p2 := start.Add(dir.Mul(dist * 2 / 3)).Add(side.Mul(bow * 0.5))

	path := make([]Vector2D, steps)
	for i := range path {
		t := float64(i) / float64(steps-1)
		omt := 1 - t
		path[i] = p0.Mul(omt * omt * omt).
			Add(p1.Mul(3 * omt * omt * t)).
			Add(p2.Mul(3 * omt * t * t)).
			Add(p3.Mul(t * t * t))
	}
	return path
}

// moveTo glides the pointer to end. Intermediate frames carry Perlin drift
// and tremor; the last frame lands exactly on end.
func (h *Humanoid) moveTo(ctx context.Context, end Vector2D) error {
	start := h.currentPos
	dist := start.Dist(end)
	if dist < 1.0 {
		return h.dispatchMove(ctx, end)
	}

	duration := h.fittsDuration(dist)
	steps := max(2, int(duration.Seconds()*frameRate))
	path := h.idealPath(start, end, steps)
	step := duration / time.Duration(steps-1)
	seed := h.rng.Float64() * 100

	for i := 1; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := float64(i) / float64(steps-1)
		pos := end
		if i < steps-1 {
			pos = path[int(math.Round(easeInOutCubic(t)*float64(steps-1)))]
			// Drift vanishes at both ends of the path.
			amp := h.dynamicConfig.PerlinAmplitude * math.Sin(math.Pi*t)
			drift := Vector2D{
				X: h.noiseX.Noise1D(seed+t*driftFrequency) * amp,
				Y: h.noiseY.Noise1D(seed+t*driftFrequency) * amp,
			}
			pos = h.applyGaussianNoise(pos.Add(drift))
		}
		if err := h.dispatchMove(ctx, pos); err != nil {
			return err
		}
		if err := h.clock.Sleep(ctx, step); err != nil {
			return err
		}
	}
	h.updateFatigue(dist / 1000)
	return nil
}

func (h *Humanoid) dispatchMove(ctx context.Context, pos Vector2D) error {
	err := h.device.DispatchMouseEvent(ctx, schemas.MouseEventData{
		Type:   schemas.MouseMove,
		X:      pos.X,
		Y:      pos.Y,
		Button: schemas.ButtonNone,
	})
	if err != nil {
		return err
	}
	h.currentPos = pos
	return nil
}
