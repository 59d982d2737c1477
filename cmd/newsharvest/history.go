package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/newsharvest/internal/config"
	"github.com/nao1215/newsharvest/internal/database"
	"github.com/nao1215/newsharvest/internal/report"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List and show recorded runs",
		Long: `History lists the runs recorded in the history database, newest first.

Examples:
  # List the last 20 runs
  newsharvest history

  # List runs whose query mentions gaza
  newsharvest history --query gaza

  # Show one run; a unique prefix of the ID is enough
  newsharvest history --show 3f2a

  # Show one run as JSON
  newsharvest history --show 3f2a --format json

  # Forget a run
  newsharvest history --delete 3f2a9c1e-...`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("query", "q", "",
		"Only list runs whose query contains this text")
	cmd.Flags().IntP("limit", "l", 20,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().StringP("show", "s", "",
		"Print the report of the run with this ID")
	cmd.Flags().StringP("format", "f", config.ReportText,
		"Report format for --show: text, markdown or json")
	cmd.Flags().String("delete", "",
		"Delete the run with this full ID")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	query, err := flags.GetString("query")
	if err != nil {
		return err
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	showID, err := flags.GetString("show")
	if err != nil {
		return err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	deleteID, err := flags.GetString("delete")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	// Listing an empty history must not create the database.
	if _, err := os.Stat(filepath.Join(dbDir, database.FileName)); os.IsNotExist(err) {
		fmt.Fprintln(out, "No runs recorded yet.")
		fmt.Fprintln(out, "\nUse 'newsharvest run' to start a search.")
		return nil
	}

	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	switch {
	case deleteID != "":
		if err := db.DeleteRun(ctx, deleteID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run %s\n", deleteID)
		return nil
	case showID != "":
		return showRun(ctx, db, showID, format, out)
	default:
		return listRuns(ctx, db, query, limit, out)
	}
}

// listRuns prints one line per stored run.
func listRuns(ctx context.Context, db *database.HistoryDB, query string, limit int, out io.Writer) error {
	runs, err := db.ListRuns(ctx, query, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		if query != "" {
			fmt.Fprintf(out, "No runs found for %q\n", query)
		} else {
			fmt.Fprintln(out, "No runs recorded yet.")
		}
		return nil
	}

	fmt.Fprintf(out, "Recorded runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-8s  %-19s  %-7s  %6s  %7s  %s\n", "ID", "Started", "State", "Months", "Records", "Query")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 78))

	for _, meta := range runs {
		state := meta.State
		if meta.Error != "" {
			state = "ERROR"
		}
		if state == "" {
			state = "-"
		}
		fmt.Fprintf(out, "  %-8s  %-19s  %-7s  %6d  %7d  %s\n",
			shortID(meta.ID),
			meta.StartedAt.Local().Format(time.DateTime),
			state,
			meta.LookbackMonths,
			meta.RecordCount,
			meta.Query,
		)
	}

	fmt.Fprintln(out, "\nUse 'newsharvest history --show <id>' to print a run report.")
	fmt.Fprintln(out, "Use 'newsharvest compare <query>' to compare the latest two runs of a query.")

	return nil
}

// showRun prints the stored report of one run.
func showRun(ctx context.Context, db *database.HistoryDB, id, format string, out io.Writer) error {
	runReport, err := db.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) || errors.Is(err, database.ErrAmbiguousID) {
			return err
		}
		return fmt.Errorf("failed to load run: %w", err)
	}

	writer, err := report.New(strings.ToLower(format), out, getVersion())
	if err != nil {
		return err
	}
	_, err = writer.Write(runReport)
	return err
}

// shortID returns the first block of a UUID.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
