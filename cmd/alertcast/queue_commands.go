package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"alertcast/internal/api"
	"alertcast/internal/client"
	"alertcast/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the alert queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueHistoryCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueCountCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				status, err := cl.Status(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(status.QueueStats))
				for _, st := range queue.AllStatuses() {
					rows = append(rows, []string{string(st), strconv.Itoa(status.QueueStats[string(st)])})
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				entries, err := cl.QueueList(cmd.Context(), statusFilter)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Alert", "User", "Gifts", "Status", "Scheduled", "Deadline"},
					buildQueueRows(entries),
					[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Filter by status (pending, playing, completed)")
	return cmd
}

func newQueueHistoryCommand(ctx *commandContext) *cobra.Command {
	var page int
	var pageSize int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show completed entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				entries, err := cl.QueueHistory(cmd.Context(), page, pageSize)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No completed entries")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Alert", "User", "Gifts", "Completed"},
					buildHistoryRows(entries),
					[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "History page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Entries per page (0 uses the daemon default)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queue entry in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid entry id %q", args[0])
			}
			return ctx.withClient(func(cl *client.Client) error {
				entry, err := cl.QueueDescribe(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:         %d\n", entry.ID)
				fmt.Fprintf(out, "Alert:      %d\n", entry.AlertID)
				fmt.Fprintf(out, "Status:     %s\n", entry.Status)
				if entry.Username != "" {
					fmt.Fprintf(out, "User:       %s\n", entry.Username)
				}
				if entry.GiftCount > 0 {
					fmt.Fprintf(out, "Gifts:      %d\n", entry.GiftCount)
				}
				fmt.Fprintf(out, "Created:    %s\n", orDash(entry.CreatedAt))
				fmt.Fprintf(out, "Scheduled:  %s\n", orDash(entry.ScheduledFor))
				fmt.Fprintf(out, "Started:    %s\n", orDash(entry.ProcessingStartedAt))
				fmt.Fprintf(out, "Deadline:   %s\n", orDash(entry.ScheduledCompletion))
				fmt.Fprintf(out, "Played:     %s\n", orDash(entry.PlayedAt))
				fmt.Fprintf(out, "Completed:  %s\n", orDash(entry.CompletedAt))
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a pending or completed entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid entry id %q", args[0])
			}
			return ctx.withClient(func(cl *client.Client) error {
				if err := cl.QueueRemove(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed entry %d\n", id)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed entries from history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				removed, err := cl.ClearCompleted(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed entries\n", removed)
				return nil
			})
		},
	}
}

func newQueueCountCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Count entries still waiting or playing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				count, err := cl.QueueCount(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), count)
				return nil
			})
		},
	}
}

func buildQueueRows(entries []api.QueueEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(entry.ID, 10),
			strconv.FormatInt(entry.AlertID, 10),
			entry.Username,
			formatGiftCount(entry.GiftCount),
			entry.Status,
			orDash(entry.ScheduledFor),
			orDash(entry.ScheduledCompletion),
		})
	}
	return rows
}

func buildHistoryRows(entries []api.QueueEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(entry.ID, 10),
			strconv.FormatInt(entry.AlertID, 10),
			entry.Username,
			formatGiftCount(entry.GiftCount),
			orDash(entry.CompletedAt),
		})
	}
	return rows
}

func formatGiftCount(count int64) string {
	if count <= 0 {
		return ""
	}
	return strconv.FormatInt(count, 10)
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
