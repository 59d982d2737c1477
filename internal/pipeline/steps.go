package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/newsharvest/internal/archive"
	"github.com/nao1215/newsharvest/internal/browser"
	"github.com/nao1215/newsharvest/internal/export"
	"github.com/nao1215/newsharvest/internal/media"
	"github.com/nao1215/newsharvest/internal/model"
	"github.com/nao1215/newsharvest/internal/scraper"
)

const (
	// ImagesDirName is the directory below the output directory that
	// receives downloaded article images.
	ImagesDirName = "images"

	// ArchiveName is the zip written next to the spreadsheet. It has no
	// extension.
	ArchiveName = "archive_images"
)

// ImagesDir returns the images directory for outputDir.
func ImagesDir(outputDir string) string {
	return filepath.Join(outputDir, ImagesDirName)
}

// ArchivePath returns the image archive path for outputDir.
func ArchivePath(outputDir string) string {
	return filepath.Join(outputDir, ArchiveName)
}

// ScrapeStep drives the search page through the scraper state machine and
// copies the outcome into the report.
type ScrapeStep struct {
	// session is the browser page to operate on.
	session browser.Session

	// downloader stores article images. Nil disables downloads.
	downloader scraper.ImageDownloader

	// options are passed through to scraper.New.
	options []scraper.Option

	// logger for structured logging.
	logger *slog.Logger
}

// ScrapeStepOption configures a ScrapeStep.
type ScrapeStepOption func(*ScrapeStep)

// WithScrapeDownloader sets the image downloader.
func WithScrapeDownloader(d scraper.ImageDownloader) ScrapeStepOption {
	return func(s *ScrapeStep) {
		s.downloader = d
	}
}

// WithScraperOptions appends options for the underlying scraper.
func WithScraperOptions(opts ...scraper.Option) ScrapeStepOption {
	return func(s *ScrapeStep) {
		s.options = append(s.options, opts...)
	}
}

// WithScrapeLogger sets a custom logger for the scrape step.
func WithScrapeLogger(logger *slog.Logger) ScrapeStepOption {
	return func(s *ScrapeStep) {
		s.logger = logger
	}
}

// NewScrapeStep creates a scrape step operating on session.
func NewScrapeStep(session browser.Session, opts ...ScrapeStepOption) *ScrapeStep {
	s := &ScrapeStep{
		session: session,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ScrapeStep) Name() string {
	return "scrape"
}

// Do runs the scraper. A search without results is not an error: the
// report keeps the ABORTED state and no records.
func (s *ScrapeStep) Do(ctx context.Context, report *model.RunReport) error {
	opts := []scraper.Option{
		scraper.WithImagesDir(ImagesDir(report.OutputDir)),
		scraper.WithLogger(s.logger),
	}
	if s.downloader != nil {
		opts = append(opts, scraper.WithDownloader(s.downloader))
	}
	opts = append(opts, s.options...)

	sc, err := scraper.New(s.session, report.Search, report.SiteURL, opts...)
	if err != nil {
		return fmt.Errorf("failed to create scraper: %w", err)
	}
	report.EffectiveThreshold = sc.EffectiveThreshold()

	res, err := sc.Run(ctx)
	if res != nil {
		report.State = res.State.String()
		report.Expansions = res.Expansions
		report.ResultsSeen = res.Seen
		report.StoppedAt = res.StoppedAt
		report.DownloadFailures = res.DownloadFailures
		report.DefaultedDates = res.DefaultedDates
		if records := res.Records.Sorted(); records != nil {
			report.Records = records
		}
	}

	if errors.Is(err, scraper.ErrNoResults) {
		s.logger.Warn("search returned no results", "query", report.Search.Query)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("scrape finished",
		"query", report.Search.Query,
		"records", report.RecordCount(),
		"expansions", report.Expansions,
		"stoppedAt", report.StoppedAt,
	)
	return nil
}

// ExportStep writes the report's records to the spreadsheet.
type ExportStep struct {
	// session is closed when there is nothing to export.
	session io.Closer

	// logger for structured logging.
	logger *slog.Logger
}

// ExportStepOption configures an ExportStep.
type ExportStepOption func(*ExportStep)

// WithExportLogger sets a custom logger for the export step.
func WithExportLogger(logger *slog.Logger) ExportStepOption {
	return func(s *ExportStep) {
		s.logger = logger
	}
}

// NewExportStep creates an export step. session may be nil.
func NewExportStep(session io.Closer, opts ...ExportStepOption) *ExportStep {
	s := &ExportStep{
		session: session,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return "export"
}

// Do exports the records. With no records a warning is logged, the
// browser session is closed and no file is written.
func (s *ExportStep) Do(ctx context.Context, report *model.RunReport) error {
	set := model.NewResultSet()
	for i, r := range report.Records {
		set.Add(r, i)
	}

	sink := export.NewSink(report.OutputDir, export.WithLogger(s.logger))
	path, err := sink.Export(ctx, set)
	if errors.Is(err, export.ErrNoRecords) {
		s.logger.Warn("no data to write into excel file", "query", report.Search.Query)
		if s.session != nil {
			if cerr := s.session.Close(); cerr != nil {
				s.logger.Warn("failed to close browser session", "error", cerr)
			}
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to export results: %w", err)
	}

	report.SpreadsheetPath = path
	return nil
}

// ArchiveStep inspects the downloaded images, zips them and removes the
// images directory. It only runs after a spreadsheet was written.
type ArchiveStep struct {
	// packager writes the archive.
	packager *archive.Packager

	// inspect enables EXIF inspection before the images are removed.
	inspect bool

	// logger for structured logging.
	logger *slog.Logger
}

// ArchiveStepOption configures an ArchiveStep.
type ArchiveStepOption func(*ArchiveStep)

// WithImageInspection toggles EXIF inspection of the images.
func WithImageInspection(inspect bool) ArchiveStepOption {
	return func(s *ArchiveStep) {
		s.inspect = inspect
	}
}

// WithArchiveLogger sets a custom logger for the archive step.
func WithArchiveLogger(logger *slog.Logger) ArchiveStepOption {
	return func(s *ArchiveStep) {
		s.logger = logger
	}
}

// NewArchiveStep creates an archive step.
func NewArchiveStep(opts ...ArchiveStepOption) *ArchiveStep {
	s := &ArchiveStep{
		inspect: true,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}
	s.packager = archive.NewPackager(s.logger)

	return s
}

// Name returns the step name.
func (s *ArchiveStep) Name() string {
	return "archive"
}

// Do archives the images directory. A failure to write the archive is
// returned; the images directory is only removed after a successful write.
func (s *ArchiveStep) Do(ctx context.Context, report *model.RunReport) error {
	if report.SpreadsheetPath == "" {
		s.logger.Debug("nothing exported, skipping archive", "query", report.Search.Query)
		return nil
	}

	imagesDir := ImagesDir(report.OutputDir)
	if err := os.MkdirAll(imagesDir, 0o750); err != nil {
		return fmt.Errorf("failed to create images directory: %w", err)
	}

	if s.inspect {
		images, err := media.InspectDir(ctx, imagesDir)
		if err != nil {
			s.logger.Warn("image inspection failed", "dir", imagesDir, "error", err)
		} else {
			report.Images = images
		}
	}

	archivePath := ArchivePath(report.OutputDir)
	if _, err := s.packager.ArchiveAndClear(ctx, imagesDir, archivePath); err != nil {
		return err
	}
	report.ArchivePath = archivePath
	return nil
}

// DefaultPipeline creates a pipeline with the standard steps for one query:
// scrape, export and archive. The session is closed when the pipeline
// finishes.
func DefaultPipeline(session browser.Session, downloader scraper.ImageDownloader, pipelineOpts []Option, scraperOpts ...scraper.Option) *Pipeline {
	p := New(pipelineOpts...)
	p.closer = session

	logger := p.logger
	scrapeOpts := []ScrapeStepOption{
		WithScrapeLogger(logger),
		WithScraperOptions(scraperOpts...),
	}
	if downloader != nil {
		scrapeOpts = append(scrapeOpts, WithScrapeDownloader(downloader))
	}

	p.AddSteps(
		NewScrapeStep(session, scrapeOpts...),
		NewExportStep(session, WithExportLogger(logger)),
		NewArchiveStep(WithArchiveLogger(logger)),
	)
	return p
}
