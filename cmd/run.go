// -- cmd/run.go --
package cmd

import (
	"context"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/action"
	"github.com/xkilldash9x/unfollowed/internal/config"
	"github.com/xkilldash9x/unfollowed/internal/humanoid"
	"github.com/xkilldash9x/unfollowed/internal/observability"
	"github.com/xkilldash9x/unfollowed/internal/orchestrator"
	"github.com/xkilldash9x/unfollowed/internal/safety"
	"github.com/xkilldash9x/unfollowed/internal/targets"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newRunCmd(env environment, open journalOpener) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Follow or unfollow every username in the input file",
		Long: `Processes the input CSV top to bottom. Each username is located on screen,
verified and acted on, with humanlike pauses between actions. The run stops
at the daily or session limit, on the first block signal or on Ctrl+C.

Reading usernames needs the Tesseract OCR engine. Binaries built without
-tags tesseract fail at startup with an "OCR engine not available" error.`,
		Example: `  unfollowed run -i unfollow.csv --dry-run
  unfollowed run -i follow.csv --action follow --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			summary, err := runBatch(ctx, cfg, logger, env, open)
			if summary.RunID != "" {
				if werr := writeSummary(cmd.OutOrStdout(), summary); werr != nil && err == nil {
					err = werr
				}
			}
			return err
		},
	}

	runCmd.Flags().StringP("input", "i", "", "CSV file with a username column")
	runCmd.Flags().Bool("dry-run", false, "locate and verify every target without committing any action")
	runCmd.Flags().String("action", "", "default action for rows without one (unfollow or follow)")
	runCmd.Flags().Int("limit", 0, "maximum actions this session (0 means only the daily cap applies)")
	return runCmd
}

// runBatch wires the pipeline from cfg and processes the input file.
func runBatch(ctx context.Context, cfg *config.Config, logger *zap.Logger, env environment, open journalOpener) (schemas.RunSummary, error) {
	if cfg.Run.Input == "" {
		return schemas.RunSummary{}, fmt.Errorf("no input file: pass --input or set run.input")
	}
	list, err := targets.Load(cfg.Run.Input, cfg.Run.ActionKind())
	if err != nil {
		return schemas.RunSummary{}, err
	}
	logger.Info("Loaded targets.",
		zap.String("input", cfg.Run.Input),
		zap.Int("count", len(list)),
		zap.Bool("dry_run", cfg.Run.DryRun))

	store, err := open(ctx, cfg.Journal, logger)
	if err != nil {
		return schemas.RunSummary{}, fmt.Errorf("open journal: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("Failed to close journal.", zap.Error(cerr))
		}
	}()

	clk := env.Clock()
	today, err := store.CountDone(ctx, clk.Now())
	if err != nil {
		return schemas.RunSummary{}, fmt.Errorf("count today's actions: %w", err)
	}
	gov := safety.New(safety.LimitsFromConfig(cfg), clk, nil, logger,
		safety.WithActionsToday(today),
		safety.WithSessionCap(cfg.Limits.ActionsPerSession))

	vs, err := buildVision(cfg, logger, env)
	if err != nil {
		return schemas.RunSummary{}, err
	}
	defer vs.Close()

	screen, err := env.Screen(cfg, logger)
	if err != nil {
		return schemas.RunSummary{}, fmt.Errorf("open screen: %w", err)
	}
	device, err := env.Device(cfg, logger)
	if err != nil {
		return schemas.RunSummary{}, fmt.Errorf("open input device: %w", err)
	}
	h := humanoid.New(humanoid.ConfigFrom(cfg.Humanoid), logger, device, clk)
	h.SetScrollArea(cfg.Screen.Region)

	executor := action.New(action.Deps{
		Screen:    screen,
		Input:     h,
		Locator:   vs.Locator,
		Matcher:   vs.Matcher,
		Templates: vs.Templates,
		Reader:    vs.Text,
		Governor:  gov,
		Clock:     clk,
	}, action.OptionsFromConfig(cfg), logger)

	sink := orchestrator.MultiSink{orchestrator.LogSink{Logger: logger.Named("outcome")}, store}
	orch, err := orchestrator.New(executor, gov, sink, clk, logger)
	if err != nil {
		return schemas.RunSummary{}, err
	}
	return orch.Run(ctx, list)
}

func writeSummary(w io.Writer, summary schemas.RunSummary) error {
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
