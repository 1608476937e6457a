package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alertcast/internal/client"
)

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	var username string
	var giftCount int64

	cmd := &cobra.Command{
		Use:   "trigger <slug>",
		Short: "Enqueue an alert by its slug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				entries, err := cl.Trigger(cmd.Context(), args[0], username, giftCount)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 1 {
					fmt.Fprintf(out, "Queued entry %d\n", entries[0].ID)
					return nil
				}
				fmt.Fprintf(out, "Queued %d entries:", len(entries))
				for _, entry := range entries {
					fmt.Fprintf(out, " %d", entry.ID)
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username attached to the alert")
	cmd.Flags().Int64VarP(&giftCount, "gift-count", "g", 0, "Gift count attached to the alert")
	return cmd
}
