package orchestrator

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xkilldash9x/unfollowed/api/schemas"
)

// OutcomeSink receives every outcome of a run, in order.
type OutcomeSink interface {
	Emit(ctx context.Context, outcome schemas.ActionOutcome) error
}

// MultiSink fans an outcome out to several sinks. Every sink sees every
// outcome even when an earlier one fails.
type MultiSink []OutcomeSink

// Emit implements OutcomeSink.
func (m MultiSink) Emit(ctx context.Context, outcome schemas.ActionOutcome) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Emit(ctx, outcome))
	}
	return err
}

// LogSink writes outcomes to a zap logger.
type LogSink struct {
	Logger *zap.Logger
}

// Emit implements OutcomeSink.
func (s LogSink) Emit(_ context.Context, o schemas.ActionOutcome) error {
	fields := []zap.Field{
		zap.String("run_id", o.RunID),
		zap.String("username", o.Target.Username),
		zap.String("action", string(o.Target.Action)),
		zap.String("decision", string(o.Decision)),
		zap.Bool("dry_run", o.DryRun),
	}
	if o.Reason != "" {
		fields = append(fields, zap.String("reason", o.Reason))
	}
	if o.ClickPoint != nil {
		fields = append(fields, zap.Stringer("click", *o.ClickPoint), zap.Float64("confidence", o.Confidence))
	}

	switch o.Decision {
	case schemas.DecisionBlocked, schemas.DecisionFailedVerification:
		s.Logger.Warn("Outcome.", fields...)
	default:
		s.Logger.Info("Outcome.", fields...)
	}
	return nil
}
