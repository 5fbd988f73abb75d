package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arbezerra/ffwatch/internal/preflight"
)

var checkColumns = []column{{title: "Check"}, {title: "Status"}, {title: "Required"}, {title: "Detail"}}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the transcoder and directories are usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cfg)

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "OK"
				if !r.Passed {
					status = "FAIL"
					if !r.Required {
						status = "WARN"
					}
				}
				rows = append(rows, []string{r.Name, status, yesNo(r.Required), r.Detail})
			}
			out := cmd.OutOrStdout()
			if ctx.configPath != "" {
				fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			}
			fmt.Fprintln(out, renderTable(checkColumns, rows))

			if failed := preflight.RequiredFailures(results); len(failed) > 0 {
				return fmt.Errorf("%d required check(s) failed", len(failed))
			}
			return nil
		},
	}
}
