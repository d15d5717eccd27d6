package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/maltedev/sorare-alert-bot/internal/models"
)

func (a *app) pricesCmd() *cobra.Command {
	var (
		limit  int
		kind   string
		rarity string
	)

	cmd := &cobra.Command{
		Use:   "prices <slug>",
		Short: "Shows the recorded price history and sales of a watched player or club.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.client.Prices(cmd.Context(), kind, args[0], rarity)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "%s (%s)\n", p.Player, p.Rarity)
			change := "n/a"
			if p.Trend.ChangePct != nil {
				change = fmt.Sprintf("%+.1f%%", *p.Trend.ChangePct)
			}
			fmt.Fprintf(out, "7d: current %s, low %s, high %s, change %s over %d points\n",
				p.Trend.Current, p.Trend.Min, p.Trend.Max, change, p.Trend.DataPoints)

			points := p.History
			if limit > 0 && len(points) > limit {
				points = points[len(points)-limit:]
			}
			t := newTable(out)
			t.AppendHeader(table.Row{"Time", "Floor", "Median", "Listings"})
			for _, pt := range points {
				t.AppendRow(table.Row{pt.Timestamp.UTC().Format(time.DateTime), pt.MinPrice, pt.MedianPrice, pt.ListingCount})
			}
			t.Render()

			if len(p.Sales) > 0 {
				s := newTable(out)
				s.AppendHeader(table.Row{"Date", "Price", "Type"})
				for _, sale := range lastSales(p.Sales, limit) {
					s.AppendRow(table.Row{sale.Date.UTC().Format(time.DateOnly), fmt.Sprintf("%.2f", sale.Price), sale.Type})
				}
				s.Render()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "rows to show, 0 for all")
	cmd.Flags().StringVar(&kind, "kind", "player", "player or club")
	cmd.Flags().StringVar(&rarity, "rarity", "", "series to show when the slug is watched at several rarities")
	return cmd
}

func lastSales(sales []models.SaleRecord, limit int) []models.SaleRecord {
	if limit > 0 && len(sales) > limit {
		return sales[len(sales)-limit:]
	}
	return sales
}

func (a *app) importCmd() *cobra.Command {
	var rarity string

	cmd := &cobra.Command{
		Use:   "import [player-slug]",
		Short: "Imports completed sales for one player, or for every watched player.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				res, err := a.client.Import(cmd.Context(), args[0], rarity)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s (%s): %d imported, %d skipped.\n", res.Slug, res.Rarity, res.Imported, res.Skipped)
				return nil
			}

			batch, err := a.client.ImportAll(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable(out)
			t.AppendHeader(table.Row{"Player", "Rarity", "Imported", "Skipped", "Error"})
			for _, r := range batch.Results {
				t.AppendRow(table.Row{r.Slug, r.Rarity, r.Imported, r.Skipped, r.Error})
			}
			t.AppendFooter(table.Row{"Total", "", batch.Imported, batch.Skipped, fmt.Sprintf("%d failed", batch.Failed)})
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&rarity, "rarity", "", "rarity to import, required for unwatched players")
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <command> [args...]",
		Short: "Sends a chat command (for example \"price brice-samba\") and prints the reply.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := a.client.Command(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if reply.Text != "" {
				fmt.Fprintln(out, reply.Text)
			}
			if e := reply.Embed; e != nil {
				fmt.Fprintln(out, e.Title)
				if e.Description != "" {
					fmt.Fprintln(out, e.Description)
				}
				for _, f := range e.Fields {
					fmt.Fprintf(out, "  %s: %s\n", f.Name, f.Value)
				}
				if e.ImageURL != "" {
					fmt.Fprintln(out, e.ImageURL)
				}
			}
			return nil
		},
	}
}
