package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediaflow/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external tools and model files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return fmt.Errorf("configuration not loaded")
			}
			results := deps.Check(cfg)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(results))
			for _, s := range results {
				rows = append(rows, []string{
					s.Name,
					s.Command,
					colorStatus(depState(s), colorize),
					yesNo(!s.Optional),
					s.Detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Dependency", "Command", "Status", "Required", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))

			if missing := deps.MissingRequired(results); len(missing) > 0 {
				return fmt.Errorf("%d required dependencies missing", len(missing))
			}
			return nil
		},
	}
}

func depState(s deps.Status) string {
	switch {
	case s.Available:
		return "available"
	case s.Optional:
		return "optional"
	default:
		return "missing"
	}
}
