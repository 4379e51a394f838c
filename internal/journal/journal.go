// Package journal persists action outcomes so that daily quotas survive
// restarts and operators can review what a run did.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/config"
	"go.uber.org/zap"
)

// Store records outcomes and answers quota queries. Every Store is an
// outcome sink.
type Store interface {
	Emit(ctx context.Context, outcome schemas.ActionOutcome) error
	// CountDone returns the number of live outcomes on day's local date that
	// spent quota: DONE ones and committed ones that could not be verified.
	CountDone(ctx context.Context, day time.Time) (int, error)
	// List returns day's outcomes in the order they were emitted.
	List(ctx context.Context, day time.Time) ([]schemas.ActionOutcome, error)
	Close() error
}

const dayLayout = "2006-01-02"

func dayKey(t time.Time) string { return t.Format(dayLayout) }

// Open creates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.JournalConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(ctx, cfg.Path, logger)
	case "postgres":
		return OpenPostgres(ctx, cfg.DatabaseURL, logger)
	case "none", "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
	}
}

// Nop discards outcomes and reports an empty history.
type Nop struct{}

func (Nop) Emit(context.Context, schemas.ActionOutcome) error { return nil }

func (Nop) CountDone(context.Context, time.Time) (int, error) { return 0, nil }

func (Nop) List(context.Context, time.Time) ([]schemas.ActionOutcome, error) { return nil, nil }

func (Nop) Close() error { return nil }
