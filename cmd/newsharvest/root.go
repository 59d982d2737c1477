package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for newsharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newsharvest",
		Short: "Collect recent news articles matching a search phrase",
		Long: `newsharvest drives a browser through a news site's search page, sorts the
results by date and extracts every article published inside the lookback
window. Articles are written to results.xlsx and their pictures are packed
into a zip archive.

Every run is recorded in a local history database so that runs can be
listed and compared later.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
