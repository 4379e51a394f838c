// -- cmd/report.go --
package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/unfollowed/api/schemas"
	"github.com/xkilldash9x/unfollowed/internal/config"
	"github.com/xkilldash9x/unfollowed/internal/journal"
	"github.com/xkilldash9x/unfollowed/internal/observability"
)

// journalOpener opens the outcome journal. Commands take one so tests can
// substitute a store.
type journalOpener func(ctx context.Context, cfg config.JournalConfig, logger *zap.Logger) (journal.Store, error)

func openJournal(ctx context.Context, cfg config.JournalConfig, logger *zap.Logger) (journal.Store, error) {
	return journal.Open(ctx, cfg, logger)
}

// dayReport is the JSON form of a report.
type dayReport struct {
	Day       string                   `json:"day"`
	Counts    map[schemas.Decision]int `json:"counts"`
	QuotaUsed int                      `json:"quota_used"`
	Outcomes  []schemas.ActionOutcome  `json:"outcomes"`
}

func newReportCmd(open journalOpener) *cobra.Command {
	var (
		day    string
		format string
	)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Show the outcomes journaled on a given day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			when := time.Now()
			if day != "" {
				when, err = time.ParseInLocation(time.DateOnly, day, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --day %q: want YYYY-MM-DD", day)
				}
			}
			return runReport(ctx, cmd.OutOrStdout(), cfg, observability.GetLogger(), open, when, format)
		},
	}

	reportCmd.Flags().StringVar(&day, "day", "", "day to report, YYYY-MM-DD (default today)")
	reportCmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table or json")
	return reportCmd
}

func runReport(ctx context.Context, w io.Writer, cfg *config.Config, logger *zap.Logger, open journalOpener, day time.Time, format string) error {
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}
	if cfg.Journal.Driver == "none" {
		return fmt.Errorf("journal is disabled (journal.driver is none)")
	}

	store, err := open(ctx, cfg.Journal, logger)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer store.Close()

	outcomes, err := store.List(ctx, day)
	if err != nil {
		return fmt.Errorf("list outcomes: %w", err)
	}

	rep := dayReport{
		Day:      day.Format(time.DateOnly),
		Counts:   make(map[schemas.Decision]int),
		Outcomes: outcomes,
	}
	for _, o := range outcomes {
		rep.Counts[o.Decision]++
		if o.CountsTowardQuota() {
			rep.QuotaUsed++
		}
	}

	if format == "json" {
		out, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}
	return writeReportTable(w, rep)
}

var decisionOrder = []schemas.Decision{
	schemas.DecisionDone,
	schemas.DecisionNotFound,
	schemas.DecisionRateLimited,
	schemas.DecisionFailedVerification,
	schemas.DecisionBlocked,
}

func writeReportTable(w io.Writer, rep dayReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tUSERNAME\tACTION\tDECISION\tDRY RUN\tREASON")
	for _, o := range rep.Outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			o.Timestamp.Local().Format(time.TimeOnly),
			o.Target.Username,
			o.Target.Action,
			o.Decision,
			o.DryRun,
			o.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%s: %d outcomes, %d counted toward the daily cap\n", rep.Day, len(rep.Outcomes), rep.QuotaUsed)
	for _, d := range decisionOrder {
		if n := rep.Counts[d]; n > 0 {
			fmt.Fprintf(w, "  %-22s %d\n", d, n)
		}
	}
	return nil
}
