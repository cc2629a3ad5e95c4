package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mediaflow/internal/ledger"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the stage results of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(ctx, func(store *ledger.Store) error {
				run, err := store.FindRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				results, err := store.RunResults(cmd.Context(), run.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintf(out, "Run:      %s\n", run.ID)
				fmt.Fprintf(out, "Status:   %s\n", colorStatus(string(run.Status), colorize))
				if run.Tier != "" {
					fmt.Fprintf(out, "Tier:     %s\n", run.Tier)
				}
				fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
				fmt.Fprintf(out, "Duration: %s\n", run.Duration().Round(time.Second))
				fmt.Fprintf(out, "Items:    %d (%d succeeded, %d skipped, %d failed)\n",
					run.Totals.Items, run.Totals.Succeeded, run.Totals.Skipped, run.Totals.Failed)
				if run.Error != "" {
					fmt.Fprintf(out, "Error:    %s\n", run.Error)
				}
				if len(results) == 0 {
					return nil
				}

				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{
						r.Source,
						r.Stage,
						colorStatus(r.Outcome, colorize),
						r.Kind,
						r.Duration.Round(time.Millisecond).String(),
						r.Message,
					})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(
					[]string{"Source", "Stage", "Outcome", "Error", "Duration", "Message"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}
