package cmd

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/maltedev/sorare-alert-bot/internal/models"
	"github.com/maltedev/sorare-alert-bot/internal/parser"
)

func (a *app) watchlistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watchlist",
		Short: "Lists watched clubs and players.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.client.Watchlist(cmd.Context())
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Kind", "Slug", "Name", "Rarity", "Max price"})
			for _, e := range append(snap.Clubs, snap.Players...) {
				t.AppendRow(table.Row{e.Kind, e.Slug, e.DisplayName, e.Rarity, ceiling(e.Ceiling)})
			}
			t.AppendFooter(table.Row{"", "", "", "Total", len(snap.Clubs) + len(snap.Players)})
			t.Render()
			return nil
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add <player|club> <slug> <rarity> [max-price]",
		Short: "Adds a player or club to the watchlist.",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseKind(args[0])
			if err != nil {
				return err
			}
			var maxPrice *float64
			if len(args) == 4 {
				if maxPrice, err = priceArg(args[3]); err != nil {
					return err
				}
			}

			e, err := a.client.Add(cmd.Context(), kind, args[1], name, args[2], maxPrice)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s), max %s.\n", e.Kind, e.DisplayName, e.Rarity, ceiling(e.Ceiling))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the slug)")
	return cmd
}

func (a *app) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <player|club> <slug>",
		Short: "Removes every entry of a player or club.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseKind(args[0])
			if err != nil {
				return err
			}
			n, err := a.client.Remove(cmd.Context(), kind, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s entr%s for %s.\n", n, kind, plural(n, "y", "ies"), args[1])
			return nil
		},
	}
}

func (a *app) setPriceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-price <player|club> <slug> <price|none>",
		Short: "Sets or clears the alert ceiling.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseKind(args[0])
			if err != nil {
				return err
			}
			maxPrice, err := priceArg(args[2])
			if err != nil {
				return err
			}
			e, err := a.client.SetPrice(cmd.Context(), kind, args[1], maxPrice)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now alerts at %s.\n", e.DisplayName, ceiling(e.Ceiling))
			return nil
		},
	}
}

// priceArg parses a ceiling; "none" clears it.
func priceArg(s string) (*float64, error) {
	if strings.EqualFold(s, "none") {
		return nil, nil
	}
	v, ok := parser.ParseAmount(strings.TrimSuffix(strings.TrimSpace(s), "€"))
	if !ok || v < 0 {
		return nil, fmt.Errorf("invalid price %q", s)
	}
	return &v, nil
}

func ceiling(p models.Price) string {
	if !p.Known() {
		return "none"
	}
	return p.String() + "€"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
