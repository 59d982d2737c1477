package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/newsharvest/internal/browser"
	"github.com/nao1215/newsharvest/internal/config"
	"github.com/nao1215/newsharvest/internal/database"
	"github.com/nao1215/newsharvest/internal/download"
	nhlog "github.com/nao1215/newsharvest/internal/log"
	"github.com/nao1215/newsharvest/internal/model"
	"github.com/nao1215/newsharvest/internal/pipeline"
	"github.com/nao1215/newsharvest/internal/report"
	"github.com/nao1215/newsharvest/internal/scraper"
	"github.com/nao1215/newsharvest/internal/tor"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [query...]",
		Short: "Search the news site and export matching articles",
		Long: `Run searches the news site for each query, sorts the results by date and
extracts every article published inside the lookback window.

For each query the run writes:
- results.xlsx with one row per article
- archive_images, a zip file holding the downloaded pictures

With more than one query every run gets its own numbered subdirectory of
the output directory.

Examples:
  # Search with the defaults from .newsharvest
  newsharvest run

  # Articles about climate change from the last three months
  newsharvest run "climate change" -n 3

  # Two queries, two at a time, with a Markdown report
  newsharvest run "gaza ceasefire" "sudan floods" -b 2 --report markdown

  # Replay saved result pages instead of opening a browser
  newsharvest run "corridor" --replay page1.html --replay page2.html

When the environment variable environment=PROD is set, the queries and the
lookback window are read from the work item file named by
RPA_INPUT_WORKITEM_PATH.`,
		Args: cobra.ArbitraryArgs,
		RunE: runRunCmd,
	}

	// Search flags
	cmd.Flags().IntP("months", "n", config.DefaultLookbackMonths,
		"Lookback window in months (0 and 1 mean the current month)")
	cmd.Flags().String("site", config.DefaultSiteURL,
		"News site to search")

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Directory receiving results.xlsx and archive_images")
	cmd.Flags().String("report", config.ReportText,
		"Run report format: text, markdown or json")
	cmd.Flags().String("report-file", "",
		"Also write the run report to this file in the --report format")

	// Browser flags
	cmd.Flags().Bool("headless", true,
		"Hide the browser window")
	cmd.Flags().Int("max-expansions", config.DefaultMaxExpansions,
		"Maximum number of \"show more\" clicks")
	cmd.Flags().Duration("results-timeout", config.DefaultResultsTimeout,
		"How long to wait for search results to appear")
	cmd.Flags().Bool("install-driver", false,
		"Install the Playwright driver and Chromium before the run")
	cmd.Flags().StringSlice("replay", nil,
		"Scrape saved HTML result pages instead of the live site")

	// Download flags
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy for image downloads (host:port)")
	cmd.Flags().Bool("tor", false,
		"Start a Tor daemon and download images through it (requires tor on PATH)")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of queries run concurrently")

	// Configuration and history
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .newsharvest in current or home directory)")
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return err
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, logJSON)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := resolveInputs(ctx, cfg, os.Getenv, logger); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	return runHarvest(ctx, cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, the configuration file and
// command flags. Flags only override the file when they were set.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit path that does not exist is an error; a missing default
	// file is not.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		f, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(f)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if len(args) > 0 {
		cfg.Queries = append([]string(nil), args...)
	}
	if len(cfg.Queries) == 0 {
		cfg.Queries = []string{config.DefaultSearchText}
	}

	if flags.Changed("months") {
		if cfg.LookbackMonths, err = flags.GetInt("months"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("site") {
		if cfg.SiteURL, err = flags.GetString("site"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("output") {
		if cfg.OutputDir, err = flags.GetString("output"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("headless") {
		if cfg.Headless, err = flags.GetBool("headless"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-expansions") {
		if cfg.MaxExpansions, err = flags.GetInt("max-expansions"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("results-timeout") {
		if cfg.ResultsTimeout, err = flags.GetDuration("results-timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("tor") {
		if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
			return nil, err
		}
	}

	if cfg.InstallDriver, err = flags.GetBool("install-driver"); err != nil {
		return nil, err
	}
	if cfg.ReplayPages, err = flags.GetStringSlice("replay"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ReportFormat, err = flags.GetString("report"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory
	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// resolveInputs lets the environment's input provider replace the queries.
// Outside production the configured queries are used unchanged.
func resolveInputs(ctx context.Context, cfg *config.Config, getenv func(string) string, logger *slog.Logger) error {
	provider, err := config.ProviderFromEnv(getenv, config.NewStaticProvider(cfg.Searches()...), logger)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	inputs, err := provider.Inputs(ctx)
	if err != nil {
		return fmt.Errorf("failed to read inputs: %w", err)
	}
	cfg.ApplyInputs(inputs)
	return nil
}

// setupLogger creates a structured logger based on verbosity setting.
func setupLogger(w io.Writer, verbose, jsonFormat bool) *slog.Logger {
	if jsonFormat {
		return nhlog.NewJSONLogger(w, verbose)
	}
	return nhlog.NewLogger(w, verbose)
}

// runHarvest runs one pipeline per query and reports each run as it ends.
// Failed runs are logged and recorded; they do not fail the command.
func runHarvest(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	now := time.Now()
	inputs := cfg.Searches()
	searches := make([]model.SearchConfig, 0, len(inputs))
	for _, in := range inputs {
		search, err := model.NewSearchConfig(in.SearchText, in.NoOfMonths, now)
		if err != nil {
			return fmt.Errorf("invalid search %q: %w", in.SearchText, err)
		}
		searches = append(searches, search)
		logger.Debug("search prepared",
			"query", search.Query,
			"months", search.LookbackMonths,
			"threshold", search.ThresholdDate.String(),
		)
	}

	logger.Info("starting run",
		"queries", cfg.Queries,
		"site", cfg.SiteURL,
		"output", cfg.OutputDir,
		"batchSize", cfg.BatchSize,
		"replay", len(cfg.ReplayPages) > 0,
	)

	var db *database.HistoryDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("history database opened", "path", db.Path())
	}

	if cfg.UseTor {
		daemon, err := startTor(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := daemon.Stop(); err != nil {
				logger.Warn("failed to stop tor daemon", "error", err)
			}
		}()
	}

	writer, closeWriter, err := newReportWriter(cfg, stdout)
	if err != nil {
		return err
	}
	defer closeWriter()

	jobs := pipeline.NewJobs(searches, cfg.SiteURL, cfg.OutputDir)
	bp := pipeline.NewBatchProcessor(
		newPipelineFactory(cfg, logger),
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var (
		mu      sync.Mutex
		reports = make([]*model.RunReport, len(jobs))
	)
	err = bp.ProcessBatchWithCallback(ctx, jobs, func(runReport *model.RunReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		reports[index] = runReport
		if runReport.ErrorMessage != "" {
			logger.Error("run failed", "query", runReport.Search.Query, "error", runReport.ErrorMessage)
		} else {
			logger.Info("run finished",
				"query", runReport.Search.Query,
				"state", runReport.State,
				"records", runReport.RecordCount(),
				"elapsed", runReport.Duration().Round(time.Millisecond),
			)
		}

		// The history must not see this run before it is counted.
		countNewRecords(ctx, db, runReport, logger)

		if _, err := writer.Write(runReport); err != nil {
			logger.Error("report failed", "query", runReport.Search.Query, "error", err)
		}
		if err := saveRunReport(ctx, db, runReport, logger); err != nil {
			logger.Error("failed to save run report", "query", runReport.Search.Query, "error", err)
		}
	})

	if len(jobs) > 1 {
		if _, werr := writer.WriteSummary(reports); werr != nil {
			logger.Error("summary failed", "error", werr)
		}
	}

	if errors.Is(err, context.Canceled) {
		logger.Warn("run cancelled")
		return nil
	}
	return err
}

// startTor starts the Tor daemon and points image downloads at it.
func startTor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tor.Daemon, error) {
	daemon := tor.NewDaemon(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
		tor.WithLogger(logger),
	)
	if err := daemon.Start(ctx); err != nil {
		return nil, err
	}
	addr, err := daemon.SocksAddr()
	if err != nil {
		_ = daemon.Stop()
		return nil, err
	}
	cfg.ProxyAddress = addr
	return daemon, nil
}

// newPipelineFactory returns a factory building one browser session,
// downloader and pipeline per job.
func newPipelineFactory(cfg *config.Config, logger *slog.Logger) pipeline.Factory {
	return func(_ context.Context, job pipeline.Job) (*pipeline.Pipeline, error) {
		jobLogger := logger.With("query", job.Search.Query)

		downloadOpts := []download.Option{
			download.WithTimeout(cfg.DownloadTimeout),
			download.WithUserAgent(cfg.UserAgent),
			download.WithRateLimit(cfg.DownloadRate),
			download.WithLogger(jobLogger),
		}
		if cfg.ProxyAddress != "" {
			downloadOpts = append(downloadOpts, download.WithProxy(cfg.ProxyAddress))
		}
		downloader, err := download.New(job.SiteURL, downloadOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create downloader: %w", err)
		}

		session, err := newSession(cfg, jobLogger)
		if err != nil {
			return nil, err
		}

		return pipeline.DefaultPipeline(session, downloader,
			[]pipeline.Option{pipeline.WithLogger(jobLogger)},
			scraper.WithLocators(cfg.Locators),
			scraper.WithMaxExpansions(cfg.MaxExpansions),
			scraper.WithStallLimit(cfg.StallLimit),
			scraper.WithResultsTimeout(cfg.ResultsTimeout),
			scraper.WithShowMoreTimeout(cfg.ShowMoreTimeout),
		), nil
	}
}

// newSession opens a replay session when saved pages are configured and a
// Playwright browser otherwise.
func newSession(cfg *config.Config, logger *slog.Logger) (browser.Session, error) {
	if len(cfg.ReplayPages) > 0 {
		session, err := browser.NewStaticSessionFromFiles(cfg.ReplayPages,
			browser.WithPagingLocator(cfg.Locators.ShowMore),
			browser.WithPermissiveControls(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load replay pages: %w", err)
		}
		return session, nil
	}

	session, err := browser.NewPlaywrightSession(
		browser.WithHeadless(cfg.Headless),
		browser.WithDownloadsPath(filepath.Join(config.XDGCacheDir(), "downloads")),
		browser.WithUserAgent(cfg.UserAgent),
		browser.WithExecutablePath(cfg.BrowserPath),
		browser.WithActionTimeout(cfg.ActionTimeout),
		browser.WithDriverInstall(cfg.InstallDriver),
		browser.WithSessionLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return session, nil
}

// newReportWriter returns the writer for run reports. Without a report
// file the report goes to stdout in the configured format. With a report
// file the report goes to the file and a text report still goes to stdout.
func newReportWriter(cfg *config.Config, stdout io.Writer) (report.Writer, func(), error) {
	terminal := report.NewSimpleWriter(stdout, report.WithVerbose(cfg.Verbose))
	format := strings.ToLower(cfg.ReportFormat)

	if cfg.ReportFile == "" {
		if format == config.ReportText {
			return terminal, func() {}, nil
		}
		w, err := report.New(format, stdout, getVersion())
		return w, func() {}, err
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // path chosen by the user
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file: %w", err)
	}
	closeFile := func() { _ = f.Close() }

	fileWriter, err := report.New(format, f, getVersion())
	if err != nil {
		closeFile()
		return nil, nil, err
	}
	return report.NewMultiWriter(terminal, fileWriter), closeFile, nil
}

// countNewRecords logs how many exported articles no earlier run exported.
// If db is nil, this function is a no-op.
func countNewRecords(ctx context.Context, db *database.HistoryDB, runReport *model.RunReport, logger *slog.Logger) {
	if db == nil || runReport.RecordCount() == 0 {
		return
	}
	n, err := db.CountNewRecords(ctx, runReport.Records)
	if err != nil {
		logger.Warn("failed to compare with history", "error", err)
		return
	}
	logger.Info("compared with history", "query", runReport.Search.Query, "new", n, "known", runReport.RecordCount()-n)
}

// saveRunReport saves the run report to the database if enabled.
// If db is nil, this function is a no-op.
func saveRunReport(ctx context.Context, db *database.HistoryDB, runReport *model.RunReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	// A cancelled run context must not prevent recording the partial run.
	id, err := db.SaveRunReport(context.WithoutCancel(ctx), runReport)
	if err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}

	logger.Info("run report saved to database", "query", runReport.Search.Query, "id", id)
	return nil
}
