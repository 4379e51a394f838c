// Package action runs the per-target workflow: locate the row, verify it,
// click, confirm and check that the click took effect. Any doubt before the
// first click ends the attempt without clicking.
package action

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/clock"
	"github.com/xkilldash9x/unfollowed/internal/config"
	"github.com/xkilldash9x/unfollowed/internal/vision/matcher"
	"github.com/xkilldash9x/unfollowed/internal/vision/textreader"
	"go.uber.org/zap"
)

// ReasonCancelled is the outcome reason of an attempt aborted by the caller.
const ReasonCancelled = "cancelled"

// ReasonCancelledAfterClick is the outcome reason of an attempt aborted by the
// caller after the action button was clicked.
const ReasonCancelledAfterClick = "cancelled after click"

// Locator resolves and re-checks targets inside the list region.
type Locator interface {
	Region() schemas.Rect
	Resolve(ctx context.Context, screenshot image.Image, target schemas.Target) (*schemas.ResolvedTarget, error)
	VerifyRow(ctx context.Context, screenshot image.Image, resolved *schemas.ResolvedTarget) (bool, error)
	ButtonGone(screenshot image.Image, resolved *schemas.ResolvedTarget) bool
}

// TextReader reads free text for block notices.
type TextReader interface {
	ReadText(ctx context.Context, img image.Image) (string, error)
}

// BlockObserver is told when a block signal is seen.
type BlockObserver interface {
	ObserveBlock(reason string)
}

// Options tunes the executor.
type Options struct {
	DryRun bool
	// Screen is the full screen; popups and block notices are searched there.
	Screen            schemas.Rect
	MatchThreshold    float64
	PopupThreshold    float64
	PollInterval      time.Duration
	PollAttempts      int
	MaxScrollRetries  int
	MaxCaptureRetries int
	ScrollPageAmount  int
	BlockPhrases      []string
}

// OptionsFromConfig maps the application config onto executor options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DryRun:            cfg.Run.DryRun,
		Screen:            cfg.Screen.Bounds(),
		MatchThreshold:    cfg.Vision.MatchThreshold,
		PopupThreshold:    cfg.Timing.ConfirmThreshold,
		PollInterval:      cfg.Timing.ConfirmPollInterval,
		PollAttempts:      cfg.Timing.ConfirmPollAttempts,
		MaxScrollRetries:  cfg.Limits.MaxScrollRetries,
		MaxCaptureRetries: cfg.Limits.MaxCaptureRetries,
		ScrollPageAmount:  cfg.Limits.ScrollPageAmount,
		BlockPhrases:      cfg.Vision.BlockPhrases,
	}
}

// Deps are the collaborators of an Executor.
type Deps struct {
	Screen    schemas.ScreenCapability
	Input     schemas.InputCapability
	Locator   Locator
	Matcher   *matcher.Matcher
	Templates *matcher.Set
	Reader    TextReader
	Governor  BlockObserver
	Clock     clock.Clock
}

// Executor carries one target at a time through the action workflow.
type Executor struct {
	Deps
	opts   Options
	logger *zap.Logger
}

// New creates an Executor.
func New(deps Deps, opts Options, logger *zap.Logger) *Executor {
	return &Executor{Deps: deps, opts: opts, logger: logger.Named("executor")}
}

// blockError carries the description of a detected block signal.
type blockError struct{ signal string }

func (e *blockError) Error() string { return "block signal: " + e.signal }
func (e *blockError) Unwrap() error { return schemas.ErrBlockDetected }

// Execute runs the workflow for target and classifies the result. It never
// returns an error: every failure becomes a decision.
func (e *Executor) Execute(ctx context.Context, target schemas.Target) schemas.ActionOutcome {
	log := e.logger.With(zap.Stringer("target", target), zap.Bool("dry_run", e.opts.DryRun))

	var a attempt
	err := e.run(ctx, target, &a)

	out := schemas.ActionOutcome{
		Target:    target,
		Decision:  schemas.DecisionDone,
		Timestamp: e.Clock.Now(),
		DryRun:    e.opts.DryRun,
		Reason:    a.note,
		Committed: a.committed,
	}
	if a.resolved != nil {
		cp := a.resolved.ClickPoint
		out.ClickPoint = &cp
		out.Confidence = a.resolved.RowConfidence
	}

	if err != nil {
		out.Decision, out.Reason = classify(err, a.clicked)
		var be *blockError
		if errors.As(err, &be) {
			out.Reason = be.signal
			if e.Governor != nil {
				e.Governor.ObserveBlock(be.signal)
			}
		}
	}

	log.Info("Target processed.",
		zap.String("decision", string(out.Decision)),
		zap.String("reason", out.Reason),
		zap.Bool("clicked", a.clicked))
	return out
}

// classify maps a workflow error to a decision. Errors after the first
// click can no longer be attributed to a missing target, nor can a
// cancellation after it be treated as an attempt that never happened.
func classify(err error, clicked bool) (schemas.Decision, string) {
	cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	switch {
	case errors.Is(err, schemas.ErrBlockDetected):
		return schemas.DecisionBlocked, err.Error()
	case cancelled && clicked:
		return schemas.DecisionFailedVerification, ReasonCancelledAfterClick
	case cancelled:
		return schemas.DecisionRateLimited, ReasonCancelled
	case errors.Is(err, schemas.ErrVerificationMismatch):
		return schemas.DecisionFailedVerification, err.Error()
	case clicked:
		return schemas.DecisionFailedVerification, err.Error()
	default:
		return schemas.DecisionNotFound, err.Error()
	}
}

// attempt is the mutable state of one Execute call.
type attempt struct {
	resolved  *schemas.ResolvedTarget
	clicked   bool
	committed bool
	note      string
}

func (e *Executor) run(ctx context.Context, target schemas.Target, a *attempt) error {
	resolved, err := e.locate(ctx, target)
	if err != nil {
		return err
	}
	a.resolved = resolved

	if err := e.verify(ctx, resolved); err != nil {
		return err
	}

	popup := e.Templates.ConfirmFor(target.Action)
	if e.opts.DryRun && (popup == nil || e.Templates.Cancel == nil) {
		// The row click would commit the action or leave a popup open.
		a.note = "simulated: stopped before clicking"
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	a.clicked = true
	// Without a popup the row click itself commits.
	a.committed = popup == nil
	if err := e.Input.MoveClick(ctx, resolved.ClickPoint, schemas.ClickNatural); err != nil {
		return fmt.Errorf("click action button: %w", err)
	}

	if popup != nil {
		confirm, shot, err := e.waitFor(ctx, popup)
		if err != nil {
			return err
		}
		if e.opts.DryRun {
			a.note = "simulated: confirmation dismissed"
			return e.dismiss(ctx, shot)
		}
		a.committed = true
		if err := e.Input.MoveClick(ctx, confirm.Box.Center(), schemas.ClickPrecise); err != nil {
			return fmt.Errorf("click confirm: %w", err)
		}
	}

	return e.confirmDone(ctx, resolved, popup)
}

// capture grabs the full screen and fails on block signals.
func (e *Executor) capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shot, err := e.Screen.Capture(ctx, e.opts.Screen)
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	if err := e.checkBlock(ctx, shot); err != nil {
		return nil, err
	}
	return shot, nil
}

// checkBlock looks for block templates anywhere on screen, then for block
// phrases in the screen text.
func (e *Executor) checkBlock(ctx context.Context, shot image.Image) error {
	if c, ok := e.Matcher.Any(shot, e.Templates.Block, e.opts.MatchThreshold); ok {
		return &blockError{signal: fmt.Sprintf("block template %s at %s", c.Label, c.Box)}
	}
	if len(e.opts.BlockPhrases) == 0 || e.Reader == nil {
		return nil
	}
	text, err := e.Reader.ReadText(ctx, shot)
	if err != nil {
		return fmt.Errorf("read screen text: %w", err)
	}
	if phrase, ok := textreader.ContainsPhrase(text, e.opts.BlockPhrases); ok {
		return &blockError{signal: fmt.Sprintf("block phrase %q", phrase)}
	}
	return nil
}

// locate captures and resolves target, re-capturing degraded frames and
// scrolling the list when the target is not in view.
func (e *Executor) locate(ctx context.Context, target schemas.Target) (*schemas.ResolvedTarget, error) {
	region := e.Locator.Region()
	scrolls, recaptures := 0, 0
	for {
		shot, err := e.capture(ctx)
		if err != nil {
			return nil, err
		}
		resolved, err := e.Locator.Resolve(ctx, matcher.Region(shot, region), target)
		if err == nil {
			return resolved, nil
		}

		lowConfidence := errors.Is(err, schemas.ErrLowConfidence)
		switch {
		case lowConfidence && recaptures < e.opts.MaxCaptureRetries:
			recaptures++
			e.logger.Debug("Degraded frame, capturing again.", zap.Int("attempt", recaptures), zap.Error(err))
			continue
		case lowConfidence || errors.Is(err, schemas.ErrNotFound):
		default:
			return nil, err
		}

		if scrolls >= e.opts.MaxScrollRetries {
			return nil, fmt.Errorf("%w: %q not visible after %d scrolls", schemas.ErrNotFound, target.Username, scrolls)
		}
		scrolls++
		recaptures = 0
		e.logger.Debug("Target not in view, scrolling.", zap.Int("scroll", scrolls))
		if err := e.Input.Scroll(ctx, schemas.ScrollDown, e.opts.ScrollPageAmount); err != nil {
			return nil, fmt.Errorf("scroll list: %w", err)
		}
	}
}

// verify re-captures and checks that the resolved row still holds.
func (e *Executor) verify(ctx context.Context, resolved *schemas.ResolvedTarget) error {
	shot, err := e.capture(ctx)
	if err != nil {
		return err
	}
	ok, err := e.Locator.VerifyRow(ctx, matcher.Region(shot, e.Locator.Region()), resolved)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: row of %q changed before the click", schemas.ErrVerificationMismatch, resolved.Target.Username)
	}
	return nil
}

// waitFor polls the screen until tpl shows up.
func (e *Executor) waitFor(ctx context.Context, tpl *matcher.Template) (schemas.MatchCandidate, image.Image, error) {
	for i := 0; i < e.opts.PollAttempts; i++ {
		if err := e.Clock.Sleep(ctx, e.opts.PollInterval); err != nil {
			return schemas.MatchCandidate{}, nil, err
		}
		shot, err := e.capture(ctx)
		if err != nil {
			return schemas.MatchCandidate{}, nil, err
		}
		if c, ok := e.Matcher.Best(shot, tpl, e.opts.PopupThreshold); ok {
			return c, shot, nil
		}
	}
	return schemas.MatchCandidate{}, nil, fmt.Errorf("%w: %s popup never appeared", schemas.ErrVerificationMismatch, tpl.Label)
}

// dismiss closes the confirmation popup without confirming.
func (e *Executor) dismiss(ctx context.Context, shot image.Image) error {
	c, ok := e.Matcher.Best(shot, e.Templates.Cancel, e.opts.PopupThreshold)
	if !ok {
		return fmt.Errorf("%w: cancel button not found on the popup", schemas.ErrVerificationMismatch)
	}
	if err := e.Input.MoveClick(ctx, c.Box.Center(), schemas.ClickPrecise); err != nil {
		return fmt.Errorf("click cancel: %w", err)
	}
	return nil
}

// confirmDone polls until the popup is gone and the row button has flipped.
func (e *Executor) confirmDone(ctx context.Context, resolved *schemas.ResolvedTarget, popup *matcher.Template) error {
	for i := 0; i < e.opts.PollAttempts; i++ {
		if err := e.Clock.Sleep(ctx, e.opts.PollInterval); err != nil {
			return err
		}
		shot, err := e.capture(ctx)
		if err != nil {
			return err
		}
		if popup != nil {
			if _, open := e.Matcher.Best(shot, popup, e.opts.PopupThreshold); open {
				continue
			}
		}
		if e.Locator.ButtonGone(matcher.Region(shot, e.Locator.Region()), resolved) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s button of %q did not change", schemas.ErrVerificationMismatch, resolved.Target.Action, resolved.Target.Username)
}
