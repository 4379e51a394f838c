package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xkilldash9x/unfollowed/api/schemas"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so the store can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

const (
	sqlCreateOutcomes = `
        CREATE TABLE IF NOT EXISTS outcomes (
            id BIGSERIAL PRIMARY KEY,
            run_id TEXT NOT NULL,
            username TEXT NOT NULL,
            action TEXT NOT NULL,
            decision TEXT NOT NULL,
            ts TIMESTAMPTZ NOT NULL,
            day DATE NOT NULL,
            dry_run BOOLEAN NOT NULL,
            reason TEXT,
            click_x INTEGER,
            click_y INTEGER,
            confidence DOUBLE PRECISION,
            committed BOOLEAN NOT NULL DEFAULT FALSE
        );
        CREATE INDEX IF NOT EXISTS idx_outcomes_day_decision ON outcomes (day, decision);
    `
	sqlInsertOutcome = `
        INSERT INTO outcomes (run_id, username, action, decision, ts, day, dry_run, reason, click_x, click_y, confidence, committed)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
    `
	sqlCountDone = `
        SELECT COUNT(*) FROM outcomes
        WHERE day = $1 AND NOT dry_run AND (decision = $2 OR committed);
    `
	sqlListOutcomes = `
        SELECT run_id, username, action, decision, ts, dry_run, reason, click_x, click_y, confidence, committed
        FROM outcomes
        WHERE day = $1
        ORDER BY id ASC;
    `
)

// PostgresStore keeps the journal in a shared PostgreSQL database.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to url and prepares the schema.
func OpenPostgres(ctx context.Context, url string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := NewPostgresStore(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps pool and verifies the connection.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool, log: logger.Named("journal")}, nil
}

// EnsureSchema creates the outcomes table if needed.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreateOutcomes); err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Emit(ctx context.Context, o schemas.ActionOutcome) error {
	var x, y *int
	if o.ClickPoint != nil {
		x, y = &o.ClickPoint.X, &o.ClickPoint.Y
	}
	_, err := s.pool.Exec(ctx, sqlInsertOutcome,
		o.RunID, o.Target.Username, string(o.Target.Action), string(o.Decision),
		o.Timestamp.UTC(), dayKey(o.Timestamp), o.DryRun, o.Reason, x, y, o.Confidence, o.Committed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountDone(ctx context.Context, day time.Time) (int, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, sqlCountDone, dayKey(day), string(schemas.DecisionDone)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count done outcomes: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) List(ctx context.Context, day time.Time) ([]schemas.ActionOutcome, error) {
	rows, err := s.pool.Query(ctx, sqlListOutcomes, dayKey(day))
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var out []schemas.ActionOutcome
	for rows.Next() {
		var (
			o                schemas.ActionOutcome
			action, decision string
			reason           *string
			x, y             *int32
			confidence       *float64
		)
		if err := rows.Scan(&o.RunID, &o.Target.Username, &action, &decision, &o.Timestamp, &o.DryRun, &reason, &x, &y, &confidence, &o.Committed); err != nil {
			return nil, fmt.Errorf("failed to scan outcome row: %w", err)
		}
		o.Target.Action = schemas.ActionKind(action)
		o.Decision = schemas.Decision(decision)
		if reason != nil {
			o.Reason = *reason
		}
		if confidence != nil {
			o.Confidence = *confidence
		}
		if x != nil && y != nil {
			o.ClickPoint = &schemas.Point{X: int(*x), Y: int(*y)}
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
