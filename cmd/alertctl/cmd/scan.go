package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func (a *app) scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Starts a market scan now.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Scan(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Scan started.")
			return nil
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Shows scanner state and counters.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client.Status(cmd.Context())
			if err != nil {
				return err
			}

			lastScan := "never"
			if s.LastScan != nil {
				lastScan = s.LastScan.UTC().Format(time.DateTime) + " UTC"
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendRows([]table.Row{
				{"State", s.State},
				{"Last scan", lastScan},
				{"Scans", s.TotalScans},
				{"Alerts", s.AlertsSent},
				{"Errors", s.Errors},
				{"Seen listings", s.SeenListings},
				{"Clubs", s.Watchlist["clubs"]},
				{"Players", s.Watchlist["players"]},
			})
			t.Render()
			return nil
		},
	}
}
