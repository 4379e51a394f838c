package humanoid

import (
	"context"
	"fmt"
	"math"
	"time"
	"unicode"
)

// Type sends text one character at a time with a pink-noise cadence and a
// longer pause after each word.
func (h *Humanoid) Type(ctx context.Context, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	runes := []rune(text)
	for i, r := range runes {
		if err := h.device.SendKeys(ctx, string(r)); err != nil {
			return fmt.Errorf("send key %d: %w", i, err)
		}
		if i == len(runes)-1 {
			break
		}
		pause := h.keyPause()
		if unicode.IsSpace(r) {
			pause += pause / 2
		}
		if err := h.sleep(ctx, pause); err != nil {
			return err
		}
	}
	h.updateFatigue(float64(len(runes)) * 0.05)
	return nil
}

func (h *Humanoid) keyPause() time.Duration {
	ms := h.baseConfig.KeyPauseMeanMs + h.keyRhythm.Next()*h.baseConfig.KeyPauseStdDevMs
	ms *= 1.0 + h.fatigueLevel*0.3
	ms = math.Max(h.baseConfig.KeyPauseMinMs, ms)
	return time.Duration(ms * float64(time.Millisecond))
}
