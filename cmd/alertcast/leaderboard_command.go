package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"alertcast/internal/client"
)

func newLeaderboardCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the gift leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				board, err := cl.Leaderboard(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(board.Entries) == 0 {
					fmt.Fprintln(out, "No gifts recorded yet")
					return nil
				}

				rows := make([][]string, 0, len(board.Entries))
				for i, entry := range board.Entries {
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						entry.Username,
						strconv.FormatInt(entry.TotalGifts, 10),
						orDash(entry.LastGiftDate),
					})
				}
				table := renderTable(
					[]string{"#", "User", "Gifts", "Last Gift"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(out, table)
				fmt.Fprintf(out, "Overlay visibility: %s\n", yesNo(board.Visible))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of rows to show")
	return cmd
}
