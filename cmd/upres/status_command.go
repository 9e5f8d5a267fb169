package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"upres/internal/config"
	"upres/internal/pipeline"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <source>",
		Short: "Show resumable state for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}

			status, err := pipeline.Inspect(cfg, source)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source:          %s\n", status.Source)
			fmt.Fprintf(out, "Work directory:  %s\n", status.WorkDir)
			if !status.Exists {
				fmt.Fprintln(out, "No prior run found; the next run starts from scratch.")
				return nil
			}
			fmt.Fprintf(out, "Checkpoints:     %d\n", status.Checkpoints)
			if status.HighestIndex >= 0 {
				fmt.Fprintf(out, "Highest segment: %d\n", status.HighestIndex)
			}
			if len(status.Segments) > 0 {
				rows := make([][]string, 0, len(status.Segments))
				for _, segment := range status.Segments {
					rows = append(rows, []string{
						fmt.Sprintf("%d", segment.Index),
						fmt.Sprintf("%d", segment.Bytes),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Segment", "Bytes"},
					rows,
					[]columnAlignment{alignRight, alignRight},
				))
			}
			if record := strings.TrimSpace(status.Record); record != "" {
				fmt.Fprintln(out, "Recorded configuration:")
				for _, line := range strings.Split(record, "\n") {
					fmt.Fprintf(out, "  %s\n", line)
				}
			}
			return nil
		},
	}
	return cmd
}
