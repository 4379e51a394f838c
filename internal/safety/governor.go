// Package safety implements the governor that paces actions, enforces the
// daily and per-run caps, and halts a run for good on block signals or an
// operator stop.
package safety

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/clock"
	"github.com/xkilldash9x/unfollowed/internal/config"
	"go.uber.org/zap"
)

// ReasonSessionCap is the halt reason recorded when the per-run cap is hit.
const ReasonSessionCap = "session_cap"

// Limits are the pacing and quota rules the governor enforces.
type Limits struct {
	DailyCap          int
	PauseEveryActions int
	PauseDuration     time.Duration
	PauseJitter       time.Duration
	MinDelay          time.Duration
	MaxDelay          time.Duration
}

// LimitsFromConfig extracts the governor limits from the application config.
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		DailyCap:          cfg.Limits.DailyCap,
		PauseEveryActions: cfg.Timing.PauseEveryActions,
		PauseDuration:     cfg.Timing.PauseDuration,
		PauseJitter:       cfg.Timing.PauseJitter,
		MinDelay:          cfg.Timing.MinActionDelay,
		MaxDelay:          cfg.Timing.MaxActionDelay,
	}
}

// Option configures a Governor.
type Option func(*Governor)

// WithSessionCap halts the run after n quota-spending actions. 0 means no cap.
func WithSessionCap(n int) Option {
	return func(g *Governor) { g.sessionCap = n }
}

// WithActionsToday seeds today's counter, normally from the journal.
func WithActionsToday(n int) Option {
	return func(g *Governor) { g.state.ActionsToday = n }
}

// Governor is the safety state machine. Stop may be called from any
// goroutine; everything else expects a single caller.
type Governor struct {
	mu         sync.Mutex
	limits     Limits
	clock      clock.Clock
	rng        *rand.Rand
	logger     *zap.Logger
	state      schemas.SafetyState
	haltErr    error
	day        time.Time
	sessionCap int
	session    int
	// pause is the drawn length of the pending cooldown. It starts at the
	// first WAIT so callers never sleep less than the full pause.
	pause time.Duration
}

// New creates a governor in the RUNNING state.
func New(limits Limits, clk clock.Clock, rng *rand.Rand, logger *zap.Logger, opts ...Option) *Governor {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	g := &Governor{
		limits: limits,
		clock:  clk,
		rng:    rng,
		logger: logger.Named("governor"),
		state:  schemas.SafetyState{Status: schemas.StatusRunning},
		day:    dayOf(clk.Now()),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.checkDailyCap()
	return g
}

// Authorize decides whether an action may start at now.
func (g *Governor) Authorize(now time.Time) schemas.Authorization {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollover(now)

	if g.state.Status.Terminal() {
		return g.deny()
	}

	if g.state.Status == schemas.StatusCooldown {
		if g.state.CooldownUntil.IsZero() {
			g.state.CooldownUntil = now.Add(g.pause)
		}
		if now.Before(g.state.CooldownUntil) {
			return schemas.Authorization{
				Verdict: schemas.VerdictWait,
				Delay:   g.state.CooldownUntil.Sub(now),
				Reason:  "cooldown",
			}
		}
		g.state.Status = schemas.StatusRunning
		g.logger.Info("Cooldown over, resuming.")
	}

	if g.checkDailyCap() || g.checkSessionCap() {
		return g.deny()
	}

	g.state.LastActionTime = now
	return schemas.Authorization{Verdict: schemas.VerdictAllow, Delay: g.actionDelay()}
}

// Record accounts for the outcome of an authorized attempt.
func (g *Governor) Record(outcome schemas.ActionOutcome) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if outcome.CountsTowardQuota() {
		g.state.ActionsToday++
		g.session++
	}
	if outcome.Decision == schemas.DecisionBlocked {
		g.observeBlock(outcome.Reason)
		return
	}

	g.state.ActionsSincePause++

	if g.state.Status.Terminal() || g.checkDailyCap() || g.checkSessionCap() {
		return
	}

	if g.limits.PauseEveryActions > 0 && g.state.ActionsSincePause >= g.limits.PauseEveryActions {
		g.state.ActionsSincePause = 0
		g.pause = g.limits.PauseDuration + g.uniform(0, g.limits.PauseJitter)
		g.state.CooldownUntil = time.Time{}
		g.state.Status = schemas.StatusCooldown
		g.logger.Info("Entering cooldown.",
			zap.Duration("pause", g.pause),
			zap.Int("actions_today", g.state.ActionsToday))
	}
}

// ObserveBlock halts the run because the platform signalled throttling.
// It overrides every other state.
func (g *Governor) ObserveBlock(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observeBlock(reason)
}

func (g *Governor) observeBlock(reason string) {
	if g.state.Status == schemas.StatusHaltedBlocked {
		return
	}
	g.halt(schemas.StatusHaltedBlocked, schemas.ErrBlockDetected, reason)
}

// Stop halts the run on operator request.
func (g *Governor) Stop(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.Status.Terminal() {
		return
	}
	g.halt(schemas.StatusHaltedManual, schemas.ErrManualStop, reason)
}

// State returns a snapshot of the governor.
func (g *Governor) State() schemas.SafetyState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Err returns the taxonomy error behind a terminal state, or nil.
func (g *Governor) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.haltErr
}

func (g *Governor) halt(status schemas.SafetyStatus, err error, reason string) {
	g.state.Status = status
	g.state.HaltReason = reason
	g.haltErr = err
	g.logger.Warn("Run halted.",
		zap.String("status", string(status)),
		zap.String("reason", reason),
		zap.Int("actions_today", g.state.ActionsToday))
}

func (g *Governor) deny() schemas.Authorization {
	return schemas.Authorization{
		Verdict: schemas.VerdictDeny,
		Reason:  g.state.HaltReason,
		Err:     g.haltErr,
	}
}

// checkDailyCap halts when today's quota is spent and reports whether it did.
func (g *Governor) checkDailyCap() bool {
	if g.state.Status.Terminal() {
		return true
	}
	if g.limits.DailyCap > 0 && g.state.ActionsToday >= g.limits.DailyCap {
		g.halt(schemas.StatusHaltedDaily, schemas.ErrDailyLimit,
			fmt.Sprintf("daily cap of %d reached", g.limits.DailyCap))
		return true
	}
	return false
}

func (g *Governor) checkSessionCap() bool {
	if g.state.Status.Terminal() {
		return true
	}
	if g.sessionCap > 0 && g.session >= g.sessionCap {
		g.halt(schemas.StatusHaltedDaily, schemas.ErrSessionLimit, ReasonSessionCap)
		return true
	}
	return false
}

// rollover resets the daily counter when the local date changes. A halted
// run stays halted.
func (g *Governor) rollover(now time.Time) {
	d := dayOf(now)
	if d.Equal(g.day) {
		return
	}
	g.logger.Info("Day rolled over, resetting daily counter.",
		zap.Time("day", d), zap.Int("previous", g.state.ActionsToday))
	g.day = d
	g.state.ActionsToday = 0
}

func (g *Governor) actionDelay() time.Duration {
	return g.uniform(g.limits.MinDelay, g.limits.MaxDelay)
}

// uniform draws from [lo, hi].
func (g *Governor) uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(g.rng.Int63n(int64(hi-lo)+1))
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
