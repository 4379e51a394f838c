package humanoid

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/clock"
	"go.uber.org/zap"
)

// mockDevice records every event it receives.
type mockDevice struct {
	mu        sync.Mutex
	events    []schemas.MouseEventData
	keys      []string
	callCount int

	// returnErr is returned from the failOnCall-th mouse event onward (0 = always).
	returnErr  error
	failOnCall int

	// cancelOnCall cancels cancelFunc when that mouse event is dispatched.
	cancelOnCall int
	cancelOnType schemas.MouseEventType
	cancelFunc   context.CancelFunc

	position *schemas.Point
}

func (m *mockDevice) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, data)
	m.callCount++

	if m.returnErr != nil && (m.failOnCall == 0 || m.callCount >= m.failOnCall) {
		return m.returnErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if m.cancelFunc != nil && ((m.cancelOnCall > 0 && m.callCount == m.cancelOnCall) || data.Type == m.cancelOnType) {
		m.cancelFunc()
	}
	return nil
}

func (m *mockDevice) SendKeys(ctx context.Context, keys string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, keys)
	return nil
}

func (m *mockDevice) eventsOf(kind schemas.MouseEventType) []schemas.MouseEventData {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []schemas.MouseEventData
	for _, e := range m.events {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

// positionedDevice also reports a cursor position.
type positionedDevice struct {
	*mockDevice
	at schemas.Point
}

func (p positionedDevice) CursorPosition(context.Context) (schemas.Point, error) {
	return p.at, nil
}

func newTestHumanoid(t *testing.T, dev Device, seed int64) (*Humanoid, *clock.Fake) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Rng = rand.New(rand.NewSource(seed))
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	h := New(cfg, zap.NewNop(), dev, clk)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.dynamicConfig.FittsA = 100.0
	h.dynamicConfig.FittsB = 150.0
	h.dynamicConfig.PerlinAmplitude = 2.0
	h.dynamicConfig.GaussianStrength = 0.5
	h.baseConfig = h.dynamicConfig
	return h, clk
}
