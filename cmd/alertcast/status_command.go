package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alertcast/internal/client"
	"alertcast/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			err := ctx.withClient(func(cl *client.Client) error {
				status, err := cl.Status(cmd.Context())
				if err != nil {
					return err
				}

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Running", statusOK, fmt.Sprintf("pid %d", status.PID), colorize))
				pauseKind := statusOK
				pauseMsg := "accepting alerts"
				if status.Paused {
					pauseKind = statusWarn
					pauseMsg = "paused"
				}
				fmt.Fprintln(out, renderStatusLine("Queue", pauseKind, pauseMsg, colorize))
				fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.QueueDBPath, colorize))
				fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))

				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Queue", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, st := range queue.AllStatuses() {
					fmt.Fprintln(out, renderStatusLine(string(st), statusInfo,
						fmt.Sprintf("%d", status.QueueStats[string(st)]), colorize))
				}
				return nil
			})
			if err != nil && client.IsDaemonUnavailable(err) {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "not running", colorize))
				return nil
			}
			return err
		},
	}
}
