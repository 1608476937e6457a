package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"alertcast/internal/api"
	"alertcast/internal/client"
)

func newAlertsCommand(ctx *commandContext) *cobra.Command {
	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "Manage alert definitions",
	}

	alertsCmd.AddCommand(newAlertsListCommand(ctx))
	alertsCmd.AddCommand(newAlertsSaveCommand(ctx))

	return alertsCmd
}

func newAlertsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List alert definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				defs, err := cl.Alerts(cmd.Context())
				if err != nil {
					return err
				}
				if len(defs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No alerts defined")
					return nil
				}

				rows := make([][]string, 0, len(defs))
				for _, def := range defs {
					rows = append(rows, []string{
						strconv.FormatInt(def.ID, 10),
						def.Slug,
						def.Title,
						def.MediaKind,
						strconv.Itoa(def.DurationSeconds) + "s",
						yesNo(def.IsGiftAlert),
						formatRepeat(def),
					})
				}
				table := renderTable(
					[]string{"ID", "Slug", "Title", "Media", "Duration", "Gift", "Repeat"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newAlertsSaveCommand(ctx *commandContext) *cobra.Command {
	var (
		slug        string
		mediaPath   string
		mediaKind   string
		duration    int
		isGift      bool
		repeatCount int
		repeatDelay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "save <title>",
		Short: "Create or update an alert definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				saved, err := cl.SaveAlert(cmd.Context(), api.AlertDefinition{
					Slug:            slug,
					Title:           args[0],
					MediaPath:       mediaPath,
					MediaKind:       mediaKind,
					DurationSeconds: duration,
					IsGiftAlert:     isGift,
					RepeatCount:     repeatCount,
					RepeatDelayMS:   repeatDelay.Milliseconds(),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved alert %q (id %d)\n", saved.Slug, saved.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&slug, "slug", "", "Explicit slug (derived from the title when empty)")
	cmd.Flags().StringVar(&mediaPath, "media", "", "Path or URL of the overlay media")
	cmd.Flags().StringVar(&mediaKind, "kind", "image", "Media kind: image, audio, or video")
	cmd.Flags().IntVar(&duration, "duration", 5, "Display duration in seconds")
	cmd.Flags().BoolVar(&isGift, "gift", false, "Count completions toward the gift leaderboard")
	cmd.Flags().IntVar(&repeatCount, "repeat", 1, "How many entries one trigger enqueues")
	cmd.Flags().DurationVar(&repeatDelay, "repeat-delay", 0, "Delay between repeated entries")
	return cmd
}

func formatRepeat(def api.AlertDefinition) string {
	if def.RepeatCount <= 1 {
		return "-"
	}
	delay := time.Duration(def.RepeatDelayMS) * time.Millisecond
	if delay <= 0 {
		return fmt.Sprintf("%dx", def.RepeatCount)
	}
	return fmt.Sprintf("%dx every %s", def.RepeatCount, delay)
}
