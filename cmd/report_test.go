package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/config"
	"github.com/xkilldash9x/unfollowed/internal/journal"
)

// memoryJournal is an in-memory journal.Store.
type memoryJournal struct {
	outcomes []schemas.ActionOutcome
	listErr  error
	closed   bool
}

func (m *memoryJournal) Emit(_ context.Context, o schemas.ActionOutcome) error {
	m.outcomes = append(m.outcomes, o)
	return nil
}

func (m *memoryJournal) CountDone(context.Context, time.Time) (int, error) { return 0, nil }

func (m *memoryJournal) List(context.Context, time.Time) ([]schemas.ActionOutcome, error) {
	return m.outcomes, m.listErr
}

func (m *memoryJournal) Close() error {
	m.closed = true
	return nil
}

func opener(store journal.Store) journalOpener {
	return func(context.Context, config.JournalConfig, *zap.Logger) (journal.Store, error) {
		return store, nil
	}
}

func TestRunReport(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)
	at := day.Add(9 * time.Hour)
	store := &memoryJournal{outcomes: []schemas.ActionOutcome{
		{Target: schemas.Target{Username: "alice", Action: schemas.ActionUnfollow}, Decision: schemas.DecisionDone, Timestamp: at},
		{Target: schemas.Target{Username: "bob", Action: schemas.ActionUnfollow}, Decision: schemas.DecisionDone, Timestamp: at, DryRun: true, Reason: "simulated"},
		{Target: schemas.Target{Username: "carol", Action: schemas.ActionFollow}, Decision: schemas.DecisionBlocked, Timestamp: at, Reason: "block_0"},
	}}
	cfg := config.NewDefaultConfig()

	t.Run("table", func(t *testing.T) {
		var out strings.Builder
		err := runReport(context.Background(), &out, cfg, zap.NewNop(), opener(store), day, "table")
		require.NoError(t, err)

		text := out.String()
		assert.Contains(t, text, "USERNAME")
		assert.Contains(t, text, "alice")
		assert.Contains(t, text, "block_0")
		assert.Contains(t, text, "2026-03-02: 3 outcomes, 1 counted toward the daily cap")
		assert.Contains(t, text, "BLOCKED")
		assert.True(t, store.closed)
	})

	t.Run("json", func(t *testing.T) {
		var out strings.Builder
		err := runReport(context.Background(), &out, cfg, zap.NewNop(), opener(store), day, "json")
		require.NoError(t, err)

		rep := decodeReport(t, out.String())
		assert.Equal(t, "2026-03-02", rep.Day)
		assert.Equal(t, 1, rep.QuotaUsed)
		assert.Equal(t, 2, rep.Counts[schemas.DecisionDone])
		assert.Equal(t, 1, rep.Counts[schemas.DecisionBlocked])
		assert.Len(t, rep.Outcomes, 3)
	})

	t.Run("unknown format", func(t *testing.T) {
		err := runReport(context.Background(), &strings.Builder{}, cfg, zap.NewNop(), opener(store), day, "xml")
		assert.ErrorContains(t, err, "unknown format")
	})

	t.Run("journal disabled", func(t *testing.T) {
		off := config.NewDefaultConfig()
		off.Journal.Driver = "none"
		err := runReport(context.Background(), &strings.Builder{}, off, zap.NewNop(), opener(store), day, "table")
		assert.ErrorContains(t, err, "disabled")
	})

	t.Run("list fails", func(t *testing.T) {
		boom := errors.New("disk gone")
		err := runReport(context.Background(), &strings.Builder{}, cfg, zap.NewNop(), opener(&memoryJournal{listErr: boom}), day, "table")
		assert.ErrorIs(t, err, boom)
	})
}

func TestReportRejectsBadDay(t *testing.T) {
	ws := newWorkspace(t)
	env := newFakeEnvironment(newScene(listFrame(names, allFollowing())))

	_, err := execute(t, env, "report", "-c", ws.configPath, "--day", "02/03/2026")
	assert.ErrorContains(t, err, "YYYY-MM-DD")
}
