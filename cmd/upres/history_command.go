package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"upres/internal/config"
	"upres/internal/runlog"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit      int
		sourceOnly string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ledger, err := ctx.openLedger(cfg)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer ledger.Close()

			var runs []runlog.Run
			if sourceOnly != "" {
				source, err := config.ExpandPath(sourceOnly)
				if err != nil {
					return fmt.Errorf("resolve source path: %w", err)
				}
				runs, err = ledger.BySource(cmd.Context(), source, limit)
				if err != nil {
					return err
				}
			} else {
				runs, err = ledger.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.StartedAt.Local().Format(time.DateTime),
					run.Source,
					string(run.Outcome),
					fmt.Sprintf("%d/%d", run.SegmentsDone, run.SegmentsTotal),
					runDuration(run),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Source", "Outcome", "Segments", "Duration"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().StringVar(&sourceOnly, "source", "", "Only show runs for this source path")

	return cmd
}

func runDuration(run runlog.Run) string {
	if run.FinishedAt.IsZero() {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}
