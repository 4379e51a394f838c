package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the journal in a local SQLite file.
type SQLiteStore struct {
	path string
	db   *sql.DB
	log  *zap.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the journal database at path.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve journal path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// One writer; the orchestrator is sequential anyway.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{path: absPath, db: db, log: logger.Named("journal")}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the absolute database path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS outcomes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	username TEXT NOT NULL,
	action TEXT NOT NULL,
	decision TEXT NOT NULL,
	ts TEXT NOT NULL,
	day TEXT NOT NULL,
	dry_run INTEGER NOT NULL,
	reason TEXT,
	click_x INTEGER,
	click_y INTEGER,
	confidence REAL,
	committed INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_outcomes_day_decision ON outcomes(day, decision);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Emit(ctx context.Context, o schemas.ActionOutcome) error {
	var x, y sql.NullInt64
	if o.ClickPoint != nil {
		x = sql.NullInt64{Int64: int64(o.ClickPoint.X), Valid: true}
		y = sql.NullInt64{Int64: int64(o.ClickPoint.Y), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO outcomes (run_id, username, action, decision, ts, day, dry_run, reason, click_x, click_y, confidence, committed)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.Target.Username, string(o.Target.Action), string(o.Decision),
		o.Timestamp.UTC().Format(time.RFC3339Nano), dayKey(o.Timestamp),
		o.DryRun, o.Reason, x, y, o.Confidence, o.Committed,
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountDone(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM outcomes WHERE day = ? AND dry_run = 0 AND (decision = ? OR committed = 1)",
		dayKey(day), string(schemas.DecisionDone),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count done: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) List(ctx context.Context, day time.Time) ([]schemas.ActionOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, username, action, decision, ts, dry_run, reason, click_x, click_y, confidence, committed
FROM outcomes WHERE day = ? ORDER BY id ASC`, dayKey(day))
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []schemas.ActionOutcome
	for rows.Next() {
		var (
			o          schemas.ActionOutcome
			action     string
			decision   string
			ts         string
			reason     sql.NullString
			x, y       sql.NullInt64
			confidence sql.NullFloat64
		)
		if err := rows.Scan(&o.RunID, &o.Target.Username, &action, &decision, &ts, &o.DryRun, &reason, &x, &y, &confidence, &o.Committed); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		o.Target.Action = schemas.ActionKind(action)
		o.Decision = schemas.Decision(decision)
		o.Reason = reason.String
		o.Confidence = confidence.Float64
		if o.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse outcome time %q: %w", ts, err)
		}
		if x.Valid && y.Valid {
			o.ClickPoint = &schemas.Point{X: int(x.Int64), Y: int(y.Int64)}
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
