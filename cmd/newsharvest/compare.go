package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/newsharvest/internal/config"
	"github.com/nao1215/newsharvest/internal/database"
	"github.com/nao1215/newsharvest/internal/model"
	"github.com/spf13/cobra"
)

// NewCompareCmd creates the compare command.
// This command compares the articles of two recorded runs of one query.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <query>",
		Short: "Compare the articles of two runs of a query",
		Long: `Compare shows which articles appeared and which dropped out between two runs
of the same query.

By default the latest run is compared with the run before it. Queries are
matched ignoring case.

Examples:
  # Compare the latest two runs
  newsharvest compare "climate change"

  # Compare the latest run with a specific earlier run
  newsharvest compare "climate change" --with 3f2a

  # Output the comparison as JSON
  newsharvest compare "climate change" --json`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().StringP("with", "w", "",
		"Compare with the run with this ID instead of the previous run")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(args[0])
	if query == "" {
		return errors.New("query is required")
	}

	flags := cmd.Flags()
	withID, err := flags.GetString("with")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return errors.New("--json and --markdown are mutually exclusive")
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	comparison, err := buildComparison(cmd.Context(), db, query, withID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return outputComparisonJSON(out, comparison)
	case markdownOutput:
		return outputComparisonMarkdown(out, comparison)
	default:
		return outputComparisonText(out, comparison)
	}
}

// buildComparison loads the runs to compare. The latest run of query is
// always the current one.
func buildComparison(ctx context.Context, db *database.HistoryDB, query, withID string) (*ComparisonResult, error) {
	listed, err := db.ListRuns(ctx, query, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}

	var runs []database.RunMetadata
	for _, meta := range listed {
		if strings.EqualFold(meta.Query, query) {
			runs = append(runs, meta)
		}
	}

	if len(runs) == 0 {
		return nil, fmt.Errorf("no run history found for %q", query)
	}
	if len(runs) < 2 && withID == "" {
		return nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}

	current, err := db.GetRun(ctx, runs[0].ID)
	if err != nil {
		return nil, err
	}

	var previous *model.RunReport
	if withID != "" {
		previous, err = db.GetRun(ctx, withID)
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(previous.Search.Query, query) {
			return nil, fmt.Errorf("run %s searched %q, not %q", withID, previous.Search.Query, query)
		}
		if previous.ID == current.ID {
			return nil, fmt.Errorf("run %s is the latest run; choose an earlier one", withID)
		}
	} else {
		previous, err = db.GetRun(ctx, runs[1].ID)
		if err != nil {
			return nil, err
		}
	}

	return compareRuns(previous, current), nil
}

// ComparisonResult holds the result of comparing two runs.
type ComparisonResult struct {
	// Query is the search text both runs used.
	Query string `json:"query"`

	// PreviousRun describes the older run.
	PreviousRun RunSummary `json:"previous_run"`

	// CurrentRun describes the newer run.
	CurrentRun RunSummary `json:"current_run"`

	// NewArticles were exported by the current run only.
	NewArticles []Article `json:"new_articles,omitempty"`

	// DroppedArticles were exported by the previous run only.
	DroppedArticles []Article `json:"dropped_articles,omitempty"`

	// UnchangedCount is the number of articles both runs exported.
	UnchangedCount int `json:"unchanged_count"`
}

// RunSummary contains metadata about a run for comparison display.
type RunSummary struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	LookbackMonths int       `json:"lookback_months"`
	Threshold      string    `json:"threshold"`
	Records        int       `json:"records"`
}

// Article identifies an exported article.
type Article struct {
	Date  string `json:"date"`
	Title string `json:"title"`
}

func summarize(r *model.RunReport) RunSummary {
	return RunSummary{
		ID:             r.ID,
		StartedAt:      r.StartedAt,
		LookbackMonths: r.Search.LookbackMonths,
		Threshold:      r.EffectiveThreshold.String(),
		Records:        r.RecordCount(),
	}
}

// compareRuns compares the records of two runs. Articles are matched by
// title and date; image paths are numbered per run and ignored.
func compareRuns(previous, current *model.RunReport) *ComparisonResult {
	result := &ComparisonResult{
		Query:       current.Search.Query,
		PreviousRun: summarize(previous),
		CurrentRun:  summarize(current),
	}

	previousArticles := articleSet(previous.Records)
	currentArticles := articleSet(current.Records)

	for a := range currentArticles {
		if _, ok := previousArticles[a]; !ok {
			result.NewArticles = append(result.NewArticles, a)
		}
	}
	for a := range previousArticles {
		if _, ok := currentArticles[a]; ok {
			result.UnchangedCount++
		} else {
			result.DroppedArticles = append(result.DroppedArticles, a)
		}
	}

	sortArticles(result.NewArticles)
	sortArticles(result.DroppedArticles)

	return result
}

func articleSet(records []model.NewsRecord) map[Article]struct{} {
	set := make(map[Article]struct{}, len(records))
	for _, r := range records {
		set[Article{Date: r.Date.String(), Title: r.Title}] = struct{}{}
	}
	return set
}

// sortArticles orders articles newest first, then by title.
func sortArticles(articles []Article) {
	sort.Slice(articles, func(i, j int) bool {
		if articles[i].Date != articles[j].Date {
			return articles[i].Date > articles[j].Date
		}
		return articles[i].Title < articles[j].Title
	})
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)

	md.H1("Run Comparison: " + result.Query)
	md.PlainText("")

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Run", shortID(result.PreviousRun.ID), shortID(result.CurrentRun.ID), "-"},
			{"Started",
				result.PreviousRun.StartedAt.Local().Format("2006-01-02 15:04"),
				result.CurrentRun.StartedAt.Local().Format("2006-01-02 15:04"),
				"-"},
			{"Threshold", result.PreviousRun.Threshold, result.CurrentRun.Threshold, "-"},
			{"**Records**",
				strconv.Itoa(result.PreviousRun.Records),
				strconv.Itoa(result.CurrentRun.Records),
				formatDelta(result.CurrentRun.Records - result.PreviousRun.Records)},
		},
	})
	md.PlainText("")

	if len(result.NewArticles) > 0 {
		md.H2(fmt.Sprintf("New Articles (%d)", len(result.NewArticles)))
		md.PlainText("")
		md.BulletList(articleLines(result.NewArticles, "", "")...)
		md.PlainText("")
	}

	if len(result.DroppedArticles) > 0 {
		md.H2(fmt.Sprintf("Dropped Articles (%d)", len(result.DroppedArticles)))
		md.PlainText("")
		md.BulletList(articleLines(result.DroppedArticles, "~~", "~~")...)
		md.PlainText("")
	}

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d articles unchanged*", result.UnchangedCount)
	}

	return md.Build()
}

func articleLines(articles []Article, open, closing string) []string {
	lines := make([]string, len(articles))
	for i, a := range articles {
		lines[i] = open + "**" + a.Date + "** " + a.Title + closing
	}
	return lines
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Run Comparison: %s\n", result.Query)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nPrevious run: %s  %s  (threshold %s)\n",
		shortID(result.PreviousRun.ID),
		result.PreviousRun.StartedAt.Local().Format(time.DateTime),
		result.PreviousRun.Threshold)
	fmt.Fprintf(out, "Current run:  %s  %s  (threshold %s)\n",
		shortID(result.CurrentRun.ID),
		result.CurrentRun.StartedAt.Local().Format(time.DateTime),
		result.CurrentRun.Threshold)

	fmt.Fprintf(out, "\nRecords: %d -> %d (%s)\n",
		result.PreviousRun.Records, result.CurrentRun.Records,
		formatDelta(result.CurrentRun.Records-result.PreviousRun.Records))

	if len(result.NewArticles) > 0 {
		fmt.Fprintf(out, "\nNew Articles (%d):\n", len(result.NewArticles))
		for _, a := range result.NewArticles {
			fmt.Fprintf(out, "  [+] %s %s\n", a.Date, a.Title)
		}
	}

	if len(result.DroppedArticles) > 0 {
		fmt.Fprintf(out, "\nDropped Articles (%d):\n", len(result.DroppedArticles))
		for _, a := range result.DroppedArticles {
			fmt.Fprintf(out, "  [-] %s %s\n", a.Date, a.Title)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d articles\n", result.UnchangedCount)
	}

	return nil
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
