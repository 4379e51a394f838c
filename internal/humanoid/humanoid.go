// Package humanoid drives the OS pointer and keyboard with human-like timing
// and motion. It implements schemas.InputCapability on top of a Device.
package humanoid

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/aquilax/go-perlin"
	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/clock"
	"go.uber.org/zap"
)

// Humanoid holds the simulated operator's state: pointer position, fatigue
// and the session persona.
type Humanoid struct {
	// mu serializes gestures. Public methods hold it for the whole gesture;
	// unexported helpers assume it is held.
	mu            sync.Mutex
	baseConfig    Config
	dynamicConfig Config
	logger        *zap.Logger
	device        Device
	clock         clock.Clock
	currentPos    Vector2D
	positioned    bool
	fatigueLevel  float64
	rng           *rand.Rand
	noiseX        *perlin.Perlin
	noiseY        *perlin.Perlin
	keyRhythm     *PinkNoiseGenerator
	scrollArea    schemas.Rect
}

var _ schemas.InputCapability = (*Humanoid)(nil)

// New creates a Humanoid driving device. Waits go through clk.
func New(config Config, logger *zap.Logger, device Device, clk clock.Clock) *Humanoid {
	seed := time.Now().UnixNano()
	rng := config.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(seed))
	}
	config.FinalizeSessionPersona(rng)

	const alpha, beta, n = 2.0, 2.0, int32(3)
	return &Humanoid{
		baseConfig:    config,
		dynamicConfig: config,
		logger:        logger.Named("humanoid"),
		device:        device,
		clock:         clk,
		rng:           rng,
		noiseX:        perlin.NewPerlin(alpha, beta, n, seed),
		noiseY:        perlin.NewPerlin(alpha, beta, n, seed+1),
		keyRhythm:     NewPinkNoiseGenerator(rng, 12),
	}
}

// Position returns the last pointer position the Humanoid moved to.
func (h *Humanoid) Position() schemas.Point {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentPos.Point()
}

// SetPosition overrides the believed pointer position.
func (h *Humanoid) SetPosition(p schemas.Point) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentPos = vec(p)
	h.positioned = true
}

// SetScrollArea makes Scroll glide the pointer into area first whenever it
// rests outside it, so wheel notches reach the list.
func (h *Humanoid) SetScrollArea(area schemas.Rect) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scrollArea = area
}

// syncPosition asks the device for the real pointer position once.
func (h *Humanoid) syncPosition(ctx context.Context) {
	if h.positioned {
		return
	}
	h.positioned = true
	pos, ok := h.device.(Positioner)
	if !ok {
		return
	}
	p, err := pos.CursorPosition(ctx)
	if err != nil {
		h.logger.Debug("Could not read cursor position, assuming origin.", zap.Error(err))
		return
	}
	h.currentPos = vec(p)
}

// sleep waits on the clock and lets fatigue recover over the wait.
func (h *Humanoid) sleep(ctx context.Context, d time.Duration) error {
	if err := h.clock.Sleep(ctx, d); err != nil {
		return err
	}
	h.recoverFatigue(d)
	return nil
}
