package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

type app struct {
	server string
	client *Client
}

// NewRootCmd builds the alertctl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "alertctl",
		Short:         "alertctl manages a running Sorare alert bot.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.client = NewClient(a.server)
		},
	}

	server := os.Getenv("ALERTBOT_URL")
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVar(&a.server, "server", server, "base URL of the bot API")

	root.AddCommand(
		a.watchlistCmd(),
		a.addCmd(),
		a.removeCmd(),
		a.setPriceCmd(),
		a.scanCmd(),
		a.statusCmd(),
		a.pricesCmd(),
		a.importCmd(),
		a.runCmd(),
	)
	return root
}

func ExecuteContext(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}
