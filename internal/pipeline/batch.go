package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/nao1215/newsharvest/internal/model"
	"github.com/nao1215/newsharvest/internal/textparse"
	"golang.org/x/sync/errgroup"
)

// Job is one query to run through a pipeline.
type Job struct {
	// Search is the query and lookback window.
	Search model.SearchConfig

	// SiteURL is the news site to search.
	SiteURL string

	// OutputDir receives the spreadsheet, images and archive of this job.
	OutputDir string
}

// NewJobs creates one job per search. A single search writes straight into
// outputDir; with several searches each job gets its own subdirectory named
// after its position and query, so runs never overwrite each other.
func NewJobs(searches []model.SearchConfig, siteURL, outputDir string) []Job {
	jobs := make([]Job, len(searches))
	for i, search := range searches {
		dir := outputDir
		if len(searches) > 1 {
			dir = filepath.Join(outputDir, fmt.Sprintf("%02d-%s", i+1, slug(search.Query)))
		}
		jobs[i] = Job{Search: search, SiteURL: siteURL, OutputDir: dir}
	}
	return jobs
}

// slug turns a query into a lower case, dash separated directory name.
func slug(query string) string {
	words := strings.FieldsFunc(strings.ToLower(textparse.CleanText(query)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return "query"
	}
	s := strings.Join(words, "-")
	if len(s) > 48 {
		s = strings.TrimRight(s[:48], "-")
	}
	return s
}

// Factory creates the pipeline for a job. It is called once per job so
// that every job gets its own browser session.
type Factory func(ctx context.Context, job Job) (*Pipeline, error)

// BatchProcessor runs several jobs with bounded concurrency.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each job.
	pipelineFactory Factory

	// concurrency is the maximum number of jobs running at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed run reports.
	// Access is synchronized via mutex.
	results []*model.RunReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent jobs.
// Default is 1, jobs run one after another.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     1,
		results:         make([]*model.RunReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs every job and returns the reports in job order.
// A failing job does not stop the others; its error is recorded in its
// report. The returned error is only non-nil when the batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, jobs []Job) ([]*model.RunReport, error) {
	bp.logger.Info("starting batch processing",
		"total_queries", len(jobs),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()
	bp.results = make([]*model.RunReport, len(jobs))

	err := bp.run(ctx, jobs, func(report *model.RunReport, index int) {
		bp.mu.Lock()
		bp.results[index] = report
		bp.mu.Unlock()
	})

	bp.logger.Info("batch processing complete",
		"total_queries", len(jobs),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}

// ProcessBatchWithCallback runs every job and calls callback with each
// finished report and the job's index. The callback is called from the
// goroutine that ran the job, so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	jobs []Job,
	callback func(report *model.RunReport, index int),
) error {
	bp.logger.Info("starting batch processing with callback",
		"total_queries", len(jobs),
		"concurrency", bp.concurrency,
	)
	return bp.run(ctx, jobs, callback)
}

func (bp *BatchProcessor) run(ctx context.Context, jobs []Job, done func(*model.RunReport, int)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("running query",
				"query", job.Search.Query,
				"index", i+1,
				"total", len(jobs),
			)

			report := model.NewRunReport(job.Search, job.SiteURL, job.OutputDir)

			p, err := bp.pipelineFactory(ctx, job)
			if err != nil {
				bp.logger.Warn("failed to prepare pipeline",
					"query", job.Search.Query,
					"error", err,
				)
				report.Error = err
				report.ErrorMessage = err.Error()
				report.FinishedAt = time.Now()
				done(report, i)
				return nil
			}

			if err := p.Execute(ctx, report); err != nil {
				bp.logger.Warn("query failed",
					"query", job.Search.Query,
					"error", err,
				)
			} else {
				bp.logger.Info("query completed",
					"query", job.Search.Query,
					"records", report.RecordCount(),
				)
			}

			done(report, i)
			return nil
		})
	}

	return g.Wait()
}
