package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/newsharvest/internal/archive"
	"github.com/nao1215/newsharvest/internal/browser"
	"github.com/nao1215/newsharvest/internal/model"
	"github.com/nao1215/newsharvest/internal/scraper"
	"github.com/nao1215/newsharvest/internal/textparse"
)

var fixedNow = time.Date(2024, time.October, 18, 12, 0, 0, 0, time.UTC)

const controls = `
<header class="site-header__search-trigger"><button class="no-styles-button">Search</button></header>
<input class="search-bar__input">
<button class="css-sp7gd">Search</button>
<div class="search-summary">Results</div>
<select id="search-sort-option"><option>Relevance</option><option>Date</option></select>`

func page(withControls bool, items ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if withControls {
		b.WriteString(controls)
	}
	b.WriteString(`<div class="search-result__list">`)
	for _, item := range items {
		b.WriteString(item)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

func item(title, description, image string) string {
	return `<article><h3>` + title + `</h3><p>` + description + `</p><img src="` + image + `"></article>`
}

func staticSession(t *testing.T, pages ...string) *browser.StaticSession {
	t.Helper()

	readers := make([]io.Reader, 0, len(pages))
	for _, p := range pages {
		readers = append(readers, strings.NewReader(p))
	}
	s, err := browser.NewStaticSession(readers, browser.WithPagingLocator(model.DefaultLocators().ShowMore))
	if err != nil {
		t.Fatalf("NewStaticSession() error = %v", err)
	}
	return s
}

// fileDownloader writes the source URL into the target file.
type fileDownloader struct{}

func (fileDownloader) Download(_ context.Context, rawURL, target string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return 0, err
	}
	if err := os.WriteFile(target, []byte(rawURL), 0o600); err != nil {
		return 0, err
	}
	return int64(len(rawURL)), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClockParser() scraper.Option {
	return scraper.WithDateParser(textparse.NewDateParser(
		textparse.WithClock(func() time.Time { return fixedNow }),
		textparse.WithLogger(quietLogger()),
	))
}

func newReport(t *testing.T, query string, months int) *model.RunReport {
	t.Helper()

	search, err := model.NewSearchConfig(query, months, fixedNow)
	if err != nil {
		t.Fatalf("NewSearchConfig() error = %v", err)
	}
	return model.NewRunReport(search, "https://www.aljazeera.com", t.TempDir())
}

// TestDefaultPipelineEndToEnd drives a replayed search through scrape,
// export and archive.
func TestDefaultPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	session := staticSession(t, page(true,
		item("Corridor talks resume", "3 hours ago ... a $2 billion package", "/img/a.jpg"),
		item("Trade corridor", "Oct 1, 2024 ... ministers meet", "/img/b.jpg"),
		item("Old story", "Jan 5, 2023 ... archive", "/img/c.jpg"),
	))
	report := newReport(t, "corridor", 8)

	p := DefaultPipeline(session, fileDownloader{},
		[]Option{WithLogger(quietLogger())},
		fixedClockParser(),
	)
	if err := p.Execute(context.Background(), report); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if report.State != "DONE" {
		t.Errorf("State = %q, want DONE", report.State)
	}
	if report.RecordCount() != 2 {
		t.Fatalf("RecordCount() = %d, want 2", report.RecordCount())
	}
	if report.StoppedAt != 3 {
		t.Errorf("StoppedAt = %d, want 3", report.StoppedAt)
	}
	if report.Records[0].Title != "Corridor talks resume" {
		t.Errorf("newest record first, got %q", report.Records[0].Title)
	}
	if report.AmountRecords() != 1 {
		t.Errorf("AmountRecords() = %d, want 1", report.AmountRecords())
	}
	if report.EffectiveThreshold != model.NewDate(2024, time.June, 1) {
		t.Errorf("EffectiveThreshold = %s, want 2024-06-01", report.EffectiveThreshold)
	}

	if _, err := os.Stat(report.SpreadsheetPath); err != nil {
		t.Errorf("spreadsheet missing: %v", err)
	}
	if report.ArchivePath != ArchivePath(report.OutputDir) {
		t.Errorf("ArchivePath = %q", report.ArchivePath)
	}
	entries, err := archive.Entries(report.ArchivePath)
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	want := []string{"news-article-1.jpg", "news-article-2.jpg"}
	if strings.Join(entries, ",") != strings.Join(want, ",") {
		t.Errorf("archive entries = %v, want %v", entries, want)
	}
	if _, err := os.Stat(ImagesDir(report.OutputDir)); !os.IsNotExist(err) {
		t.Errorf("images directory should be removed, stat error = %v", err)
	}
	if len(report.Images) != 2 {
		t.Errorf("expected 2 inspected images, got %d", len(report.Images))
	}

	wantSteps := []string{"scrape", "export", "archive"}
	if strings.Join(report.PerformedSteps, ",") != strings.Join(wantSteps, ",") {
		t.Errorf("PerformedSteps = %v, want %v", report.PerformedSteps, wantSteps)
	}
	if !session.Closed() {
		t.Error("session should be closed after the pipeline")
	}
}

// TestScrapeStepNoResults tests that an empty search is not a step failure.
func TestScrapeStepNoResults(t *testing.T) {
	t.Parallel()

	html := strings.Replace(page(true), `<div class="search-summary">Results</div>`, "", 1)
	session := staticSession(t, html)
	report := newReport(t, "nothing", 6)

	step := NewScrapeStep(session,
		WithScrapeLogger(quietLogger()),
		WithScraperOptions(scraper.WithResultsTimeout(time.Millisecond)),
	)
	if err := step.Do(context.Background(), report); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if report.State != "ABORTED" {
		t.Errorf("State = %q, want ABORTED", report.State)
	}
	if report.RecordCount() != 0 {
		t.Errorf("RecordCount() = %d, want 0", report.RecordCount())
	}
	if report.Records == nil {
		t.Error("Records must stay non-nil")
	}
}

// TestScrapeStepAbort tests that a missing control fails the step.
func TestScrapeStepAbort(t *testing.T) {
	t.Parallel()

	html := strings.Replace(page(true), `<button class="css-sp7gd">Search</button>`, "", 1)
	session := staticSession(t, html)
	report := newReport(t, "corridor", 6)

	err := NewScrapeStep(session, WithScrapeLogger(quietLogger())).Do(context.Background(), report)
	if !errors.Is(err, scraper.ErrAborted) {
		t.Fatalf("Do() error = %v, want ErrAborted", err)
	}
	if report.State != "ABORTED" {
		t.Errorf("State = %q, want ABORTED", report.State)
	}
	if !session.Closed() {
		t.Error("aborted run must close the session")
	}
}

// TestExportStepEmpty tests the warning path of the export step.
func TestExportStepEmpty(t *testing.T) {
	t.Parallel()

	closer := &closeCounter{}
	report := newReport(t, "corridor", 6)

	if err := NewExportStep(closer, WithExportLogger(quietLogger())).Do(context.Background(), report); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if closer.calls != 1 {
		t.Errorf("session closed %d times, want 1", closer.calls)
	}
	if report.SpreadsheetPath != "" {
		t.Errorf("SpreadsheetPath = %q, want empty", report.SpreadsheetPath)
	}
	if _, err := os.Stat(filepath.Join(report.OutputDir, "results.xlsx")); !os.IsNotExist(err) {
		t.Errorf("no workbook should be written, stat error = %v", err)
	}
}

// TestArchiveStep tests the archive step on its own.
func TestArchiveStep(t *testing.T) {
	t.Parallel()

	t.Run("skips when nothing was exported", func(t *testing.T) {
		t.Parallel()

		report := newReport(t, "corridor", 6)
		if err := NewArchiveStep(WithArchiveLogger(quietLogger())).Do(context.Background(), report); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if report.ArchivePath != "" {
			t.Errorf("ArchivePath = %q, want empty", report.ArchivePath)
		}
		if _, err := os.Stat(ArchivePath(report.OutputDir)); !os.IsNotExist(err) {
			t.Errorf("archive should not exist, stat error = %v", err)
		}
	})

	t.Run("archives an empty images directory", func(t *testing.T) {
		t.Parallel()

		report := newReport(t, "corridor", 6)
		report.SpreadsheetPath = filepath.Join(report.OutputDir, "results.xlsx")

		step := NewArchiveStep(WithArchiveLogger(quietLogger()), WithImageInspection(false))
		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		entries, err := archive.Entries(report.ArchivePath)
		if err != nil {
			t.Fatalf("Entries() error = %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected empty archive, got %v", entries)
		}
		if report.Images != nil {
			t.Errorf("inspection disabled, got %v", report.Images)
		}
	})
}

// TestStepNames tests step names used in PerformedSteps.
func TestStepNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		step Step
		want string
	}{
		{NewScrapeStep(nil), "scrape"},
		{NewExportStep(nil), "export"},
		{NewArchiveStep(), "archive"},
	}
	for _, tt := range tests {
		if got := tt.step.Name(); got != tt.want {
			t.Errorf("Name() = %q, want %q", got, tt.want)
		}
	}
}
