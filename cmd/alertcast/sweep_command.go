package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alertcast/internal/client"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one reconciliation pass immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				summary, err := cl.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				total := summary.Promoted + summary.Expired + summary.Stale + summary.ForceCompleted
				if total == 0 {
					fmt.Fprintln(out, "Nothing to reconcile")
					return nil
				}
				fmt.Fprintf(out, "Promoted: %d  Expired: %d  Stale: %d  Force-completed: %d\n",
					summary.Promoted, summary.Expired, summary.Stale, summary.ForceCompleted)
				return nil
			})
		},
	}
}
