// File: internal/orchestrator/orchestrator.go
// Description: Runs a batch of targets one at a time. Every attempt is gated
// by the safety governor and every outcome goes to the configured sinks.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/clock"
)

// ReasonManualStop is the governor halt reason used when the run context is
// cancelled.
const ReasonManualStop = "manual"

// Executor performs the action for one target.
type Executor interface {
	Execute(ctx context.Context, target schemas.Target) schemas.ActionOutcome
}

// Governor gates and accounts for actions.
type Governor interface {
	Authorize(now time.Time) schemas.Authorization
	Record(outcome schemas.ActionOutcome)
	Stop(reason string)
	State() schemas.SafetyState
	Err() error
}

// Orchestrator drives a batch. It is not safe for concurrent use.
type Orchestrator struct {
	executor Executor
	governor Governor
	sink     OutcomeSink
	clock    clock.Clock
	logger   *zap.Logger
}

// New creates a new Orchestrator with its dependencies provided as interfaces.
func New(
	executor Executor,
	governor Governor,
	sink OutcomeSink,
	clk clock.Clock,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if executor == nil ||
		governor == nil ||
		sink == nil ||
		clk == nil ||
		logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{
		executor: executor,
		governor: governor,
		sink:     sink,
		clock:    clk,
		logger:   logger.Named("orchestrator"),
	}, nil
}

// Dedupe drops repeated targets, keeping the first occurrence of each.
func Dedupe(targets []schemas.Target) []schemas.Target {
	seen := make(map[string]struct{}, len(targets))
	out := make([]schemas.Target, 0, len(targets))
	for _, t := range targets {
		k := t.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}

// run is the state of one Run call.
type run struct {
	*Orchestrator
	summary schemas.RunSummary
	// emitCtx outlives cancellation so a stopped run still records its tail.
	emitCtx context.Context
}

// Run processes targets in order until the list is exhausted or the governor
// halts. Halts are reported in the summary. The returned error is non-nil
// only when an outcome could not be delivered to the sinks.
func (o *Orchestrator) Run(ctx context.Context, targets []schemas.Target) (schemas.RunSummary, error) {
	queue := Dedupe(targets)
	r := &run{
		Orchestrator: o,
		summary: schemas.RunSummary{
			RunID:   uuid.NewString(),
			Started: o.clock.Now(),
			Counts:  make(map[schemas.Decision]int),
		},
		emitCtx: context.WithoutCancel(ctx),
	}
	log := o.logger.With(zap.String("run_id", r.summary.RunID))
	log.Info("Starting batch.",
		zap.Int("targets", len(queue)),
		zap.Int("duplicates", len(targets)-len(queue)))

	for i, target := range queue {
		if ctx.Err() != nil {
			return r.stop(queue[i:])
		}

		auth, err := r.authorize(ctx)
		if err != nil {
			return r.stop(queue[i:])
		}
		if auth.Verdict == schemas.VerdictDeny {
			if err := r.skip(queue[i:], auth.Reason); err != nil {
				return r.finish(schemas.HaltSinkError, err.Error()), err
			}
			return r.finish(haltFor(auth.Err), auth.Reason), nil
		}

		out := o.executor.Execute(ctx, target)
		out.RunID = r.summary.RunID
		o.governor.Record(out)
		if err := r.emit(out); err != nil {
			return r.finish(schemas.HaltSinkError, err.Error()), err
		}

		if ctx.Err() != nil {
			return r.stop(queue[i+1:])
		}
	}

	if err := o.governor.Err(); err != nil {
		return r.finish(haltFor(err), o.governor.State().HaltReason), nil
	}
	return r.finish(schemas.HaltFinished, ""), nil
}

// authorize asks the governor until it allows or denies, sleeping through
// cooldowns and the inter-action delay.
func (r *run) authorize(ctx context.Context) (schemas.Authorization, error) {
	for {
		auth := r.governor.Authorize(r.clock.Now())
		switch auth.Verdict {
		case schemas.VerdictWait:
			r.logger.Info("Cooling down.", zap.Duration("wait", auth.Delay))
			if err := r.clock.Sleep(ctx, auth.Delay); err != nil {
				return auth, err
			}
		case schemas.VerdictAllow:
			r.logger.Debug("Action authorized.", zap.Duration("delay", auth.Delay))
			if err := r.clock.Sleep(ctx, auth.Delay); err != nil {
				return auth, err
			}
			return auth, nil
		default:
			return auth, nil
		}
	}
}

// stop halts the governor on cancellation and reports the targets left over.
func (r *run) stop(rest []schemas.Target) (schemas.RunSummary, error) {
	r.governor.Stop(ReasonManualStop)
	if err := r.skip(rest, string(schemas.HaltManualStop)); err != nil {
		return r.finish(schemas.HaltSinkError, err.Error()), err
	}
	return r.finish(schemas.HaltManualStop, "run cancelled"), nil
}

// skip emits targets that will not be attempted.
func (r *run) skip(rest []schemas.Target, reason string) error {
	for _, t := range rest {
		err := r.emit(schemas.ActionOutcome{
			RunID:     r.summary.RunID,
			Target:    t,
			Decision:  schemas.DecisionRateLimited,
			Timestamp: r.clock.Now(),
			Reason:    reason,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *run) emit(out schemas.ActionOutcome) error {
	r.summary.Counts[out.Decision]++
	if err := r.sink.Emit(r.emitCtx, out); err != nil {
		r.logger.Error("Failed to record outcome, stopping.", zap.Stringer("target", out.Target), zap.Error(err))
		r.governor.Stop("outcome sink failed")
		return fmt.Errorf("emit outcome for %s: %w", out.Target, err)
	}
	return nil
}

func (r *run) finish(halt schemas.HaltReason, detail string) schemas.RunSummary {
	r.summary.Halt = halt
	r.summary.Detail = detail
	r.summary.Finished = r.clock.Now()
	r.logger.Info("Batch finished.",
		zap.String("run_id", r.summary.RunID),
		zap.String("halt", string(halt)),
		zap.String("detail", detail),
		zap.Any("counts", r.summary.Counts))
	return r.summary
}

// haltFor maps a governor error to the halt reason reported to the operator.
func haltFor(err error) schemas.HaltReason {
	switch {
	case errors.Is(err, schemas.ErrBlockDetected):
		return schemas.HaltBlockDetected
	case errors.Is(err, schemas.ErrDailyLimit):
		return schemas.HaltDailyLimit
	case errors.Is(err, schemas.ErrSessionLimit):
		return schemas.HaltSessionLimit
	default:
		return schemas.HaltManualStop
	}
}
