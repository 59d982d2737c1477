package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/newsharvest/internal/browser"
	"github.com/nao1215/newsharvest/internal/model"
	"github.com/nao1215/newsharvest/internal/textparse"
)

var fixedNow = time.Date(2024, time.October, 18, 12, 0, 0, 0, time.UTC)

const searchControls = `
<header class="site-header__search-trigger"><button class="no-styles-button">Search</button></header>
<input class="search-bar__input">
<button class="css-sp7gd">Search</button>
<div class="search-summary">Results</div>
<select id="search-sort-option"><option>Relevance</option><option>Date</option></select>`

const showMoreButton = `<button data-testid="show-more-button">Show more</button>`

type article struct {
	title       string
	description string
	image       string
}

// resultPage renders one page of search results.
func resultPage(first bool, more bool, articles ...article) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if first {
		b.WriteString(searchControls)
	}
	b.WriteString(`<div class="search-result__list">`)
	for _, a := range articles {
		b.WriteString("<article><h3>" + a.title + "</h3><p>" + a.description + "</p>")
		if a.image != "" {
			b.WriteString(`<img src="` + a.image + `">`)
		}
		b.WriteString("</article>")
	}
	b.WriteString("</div>")
	if more {
		b.WriteString(showMoreButton)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newSession(t *testing.T, pages ...string) *browser.StaticSession {
	t.Helper()

	readers := make([]io.Reader, 0, len(pages))
	for _, p := range pages {
		readers = append(readers, strings.NewReader(p))
	}
	s, err := browser.NewStaticSession(readers, browser.WithPagingLocator(model.DefaultLocators().ShowMore))
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return s
}

type fakeDownloader struct {
	mu      sync.Mutex
	calls   map[string]string
	failFor map[string]bool
}

func newFakeDownloader(failFor ...string) *fakeDownloader {
	d := &fakeDownloader{calls: make(map[string]string), failFor: make(map[string]bool)}
	for _, f := range failFor {
		d.failFor[f] = true
	}
	return d
}

func (d *fakeDownloader) Download(_ context.Context, rawURL, target string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[target] = rawURL
	if d.failFor[rawURL] {
		return 0, fmt.Errorf("%s: not found", rawURL)
	}
	return 1, nil
}

func newTestScraper(t *testing.T, session browser.Session, months int, opts ...Option) *Scraper {
	t.Helper()

	search, err := model.NewSearchConfig("gaza", months, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := []Option{
		WithLogger(logger),
		WithDateParser(textparse.NewDateParser(
			textparse.WithClock(func() time.Time { return fixedNow }),
			textparse.WithLogger(logger),
		)),
		WithImagesDir(filepath.Join("out", "images")),
	}
	s, err := New(session, search, "https://www.aljazeera.com", append(base, opts...)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

// TestRunStopsAtFirstOutOfRangeArticle tests the break-not-skip extraction.
func TestRunStopsAtFirstOutOfRangeArticle(t *testing.T) {
	t.Parallel()

	// With an 8 month window the effective threshold is 2024-06-01, which
	// keeps today, -5d and -40d and rejects -200d.
	session := newSession(t,
		resultPage(true, true,
			article{title: "Today in gaza", description: "3 hours ago ... aid worth $1,200 arrives", image: "/a.jpg"},
			article{title: "Five days", description: "5 days ago ... talks in gaza", image: "/b.jpg"},
			article{title: "Forty days", description: "40 days ago ... report", image: "/c.jpg"},
		),
		resultPage(false, false,
			article{title: "Two hundred days", description: "200 days ago ... old", image: "/d.jpg"},
			article{title: "Four hundred days", description: "400 days ago ... older", image: "/e.jpg"},
		),
	)
	dl := newFakeDownloader()
	s := newTestScraper(t, session, 8, WithDownloader(dl))

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.State != StateDone {
		t.Errorf("expected DONE, got %s", res.State)
	}
	if res.Records.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", res.Records.Len())
	}
	if res.StoppedAt != 4 {
		t.Errorf("expected extraction to stop at 4, got %d", res.StoppedAt)
	}
	if res.Seen != 5 {
		t.Errorf("expected 5 loaded results, got %d", res.Seen)
	}
	if res.Expansions != 1 {
		t.Errorf("expected 1 expansion, got %d", res.Expansions)
	}

	sorted := res.Records.Sorted()
	if sorted[0].Title != "Today in gaza" {
		t.Errorf("expected today's article first, got %q", sorted[0].Title)
	}
	if sorted[0].Date != model.DateOf(fixedNow) {
		t.Errorf("expected today's date, got %s", sorted[0].Date)
	}
	if !sorted[0].ContainsAmount {
		t.Error("expected first record to contain an amount")
	}
	if sorted[0].TitleMatchCount != 1 {
		t.Errorf("expected 1 title match, got %d", sorted[0].TitleMatchCount)
	}
	if sorted[1].DescriptionMatchCount != 1 {
		t.Errorf("expected 1 description match, got %d", sorted[1].DescriptionMatchCount)
	}
	if sorted[2].Date != model.DateOf(fixedNow).AddDays(-40) {
		t.Errorf("expected -40d last, got %s", sorted[2].Date)
	}

	if len(dl.calls) != 3 {
		t.Errorf("expected 3 downloads, got %d", len(dl.calls))
	}
	want := filepath.Join("out", "images", "news-article-3.jpg")
	if dl.calls[want] != "/c.jpg" {
		t.Errorf("expected /c.jpg downloaded to %s, got %v", want, dl.calls)
	}
	if _, ok := dl.calls[filepath.Join("out", "images", "news-article-4.jpg")]; ok {
		t.Error("out of range article must not be downloaded")
	}

	wantStates := []State{StateSearching, StateSorting, StateExpanding, StateExtracting, StateDone}
	if fmt.Sprint(res.Transitions) != fmt.Sprint(wantStates) {
		t.Errorf("expected transitions %v, got %v", wantStates, res.Transitions)
	}
	if session.Closed() {
		t.Error("a successful run must leave the session open for export")
	}
}

// TestRunSearchInteractions tests the order of search interactions.
func TestRunSearchInteractions(t *testing.T) {
	t.Parallel()

	session := newSession(t, resultPage(true, false,
		article{title: "One", description: "1 days ago ... x"},
	))
	s := newTestScraper(t, session, 6)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := session.Actions()
	want := []string{
		"open:https://www.aljazeera.com",
		"click:.site-header__search-trigger .no-styles-button",
		"fill:.search-bar__input=gaza",
		"click:.css-sp7gd",
		"select:#search-sort-option=Date",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("expected %v, got %v", want, got)
	}
}

// TestRunNoResults tests the clean abort when the search is empty.
func TestRunNoResults(t *testing.T) {
	t.Parallel()

	page := strings.Replace(resultPage(true, false), `<div class="search-summary">Results</div>`, "", 1)
	session := newSession(t, page)
	s := newTestScraper(t, session, 6)

	res, err := s.Run(context.Background())
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
	if errors.Is(err, ErrAborted) {
		t.Error("no results must not be reported as a failure")
	}
	if res.State != StateAborted {
		t.Errorf("expected ABORTED, got %s", res.State)
	}
	if !res.Records.IsEmpty() {
		t.Error("expected no records")
	}
	if !session.Closed() {
		t.Error("expected session to be closed")
	}
}

// TestRunHiddenResultsIndicator tests that an attached but hidden indicator means no results.
func TestRunHiddenResultsIndicator(t *testing.T) {
	t.Parallel()

	page := strings.Replace(resultPage(true, false),
		`<div class="search-summary">`, `<div class="search-summary" hidden>`, 1)
	s := newTestScraper(t, newSession(t, page), 6)

	if _, err := s.Run(context.Background()); !errors.Is(err, ErrNoResults) {
		t.Errorf("expected ErrNoResults, got %v", err)
	}
}

// TestRunMissingSearchControl tests that UI failures abort the run.
func TestRunMissingSearchControl(t *testing.T) {
	t.Parallel()

	page := strings.Replace(resultPage(true, false), `class="css-sp7gd"`, `class="renamed"`, 1)
	session := newSession(t, page)
	s := newTestScraper(t, session, 6)

	res, err := s.Run(context.Background())
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if !errors.Is(err, browser.ErrTimeout) {
		t.Errorf("expected the cause to be kept, got %v", err)
	}
	if res.State != StateAborted || s.State() != StateAborted {
		t.Errorf("expected ABORTED, got %s", res.State)
	}
	if !session.Closed() {
		t.Error("expected session to be closed")
	}
}

// TestRunExpansionBounds tests the stall detection and click cap.
func TestRunExpansionBounds(t *testing.T) {
	t.Parallel()

	t.Run("inert show more stops after the stall limit", func(t *testing.T) {
		t.Parallel()

		session := newSession(t, resultPage(true, true,
			article{title: "One", description: "1 days ago ... x"},
		))
		s := newTestScraper(t, session, 6, WithStallLimit(3))

		res, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Expansions != 3 {
			t.Errorf("expected 3 clicks, got %d", res.Expansions)
		}
		if res.Records.Len() != 1 {
			t.Errorf("expected 1 record, got %d", res.Records.Len())
		}
	})

	t.Run("click cap is honored", func(t *testing.T) {
		t.Parallel()

		a := article{title: "One", description: "1 days ago ... x"}
		session := newSession(t,
			resultPage(true, true, a),
			resultPage(false, true, article{title: "Two", description: "2 days ago ... x"}),
			resultPage(false, true, article{title: "Three", description: "3 days ago ... x"}),
			resultPage(false, true, article{title: "Four", description: "4 days ago ... x"}),
		)
		s := newTestScraper(t, session, 6, WithMaxExpansions(2))

		res, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Expansions != 2 {
			t.Errorf("expected 2 clicks, got %d", res.Expansions)
		}
		if res.Seen != 3 {
			t.Errorf("expected 3 loaded results, got %d", res.Seen)
		}
	})
}

// TestRunDownloadFailureKeepsRecord tests that failed downloads are not fatal.
func TestRunDownloadFailureKeepsRecord(t *testing.T) {
	t.Parallel()

	session := newSession(t, resultPage(true, false,
		article{title: "One", description: "1 days ago ... x", image: "/ok.jpg"},
		article{title: "Two", description: "2 days ago ... y", image: "/missing.jpg"},
		article{title: "Three", description: "3 days ago ... z"},
	))
	s := newTestScraper(t, session, 6, WithDownloader(newFakeDownloader("/missing.jpg")))

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Records.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", res.Records.Len())
	}
	// one 404 and one article without an image
	if res.DownloadFailures != 2 {
		t.Errorf("expected 2 download failures, got %d", res.DownloadFailures)
	}

	sorted := res.Records.Sorted()
	if sorted[1].ImagePath != s.ImagePath(2) {
		t.Errorf("expected image path %s to be kept, got %s", s.ImagePath(2), sorted[1].ImagePath)
	}
}

// TestRunDefaultedDates tests counting of descriptions without a date.
func TestRunDefaultedDates(t *testing.T) {
	t.Parallel()

	session := newSession(t, resultPage(true, false,
		article{title: "Undated", description: "no date here"},
	))
	s := newTestScraper(t, session, 6)

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DefaultedDates != 1 {
		t.Errorf("expected 1 defaulted date, got %d", res.DefaultedDates)
	}
}

// TestRunCanceled tests that a canceled context aborts the run.
func TestRunCanceled(t *testing.T) {
	t.Parallel()

	session := newSession(t, resultPage(true, false))
	s := newTestScraper(t, session, 6)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.State != StateAborted {
		t.Errorf("expected ABORTED, got %s", res.State)
	}
}

// TestRunTwice tests that a second run starts again from SEARCHING.
func TestRunTwice(t *testing.T) {
	t.Parallel()

	session := newSession(t, resultPage(true, false,
		article{title: "One", description: "1 days ago ... x"},
		article{title: "Two", description: "2 days ago ... y"},
	))
	s := newTestScraper(t, session, 6)

	first, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: unexpected error: %v", err)
	}
	second, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: unexpected error: %v", err)
	}

	if second.Records.Len() != first.Records.Len() {
		t.Errorf("expected %d records on the second run, got %d", first.Records.Len(), second.Records.Len())
	}
	wantStates := []State{StateSearching, StateSorting, StateExpanding, StateExtracting, StateDone}
	if fmt.Sprint(second.Transitions) != fmt.Sprint(wantStates) {
		t.Errorf("expected transitions %v, got %v", wantStates, second.Transitions)
	}
}

// timeoutSession records the timeouts passed to WaitAttached.
type timeoutSession struct {
	*browser.StaticSession

	mu       sync.Mutex
	attached map[string]time.Duration
}

func (s *timeoutSession) WaitAttached(ctx context.Context, locator string, timeout time.Duration) error {
	s.mu.Lock()
	s.attached[locator] = timeout
	s.mu.Unlock()
	return s.StaticSession.WaitAttached(ctx, locator, timeout)
}

// TestRunShowMoreTimeout tests the timeout used to look for "show more".
func TestRunShowMoreTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []Option
		want time.Duration
	}{
		{name: "default", want: DefaultShowMoreTimeout},
		{name: "custom", opts: []Option{WithShowMoreTimeout(750 * time.Millisecond)}, want: 750 * time.Millisecond},
		{name: "non-positive keeps default", opts: []Option{WithShowMoreTimeout(0)}, want: DefaultShowMoreTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			session := &timeoutSession{
				StaticSession: newSession(t, resultPage(true, false,
					article{title: "One", description: "1 days ago ... x"},
				)),
				attached: make(map[string]time.Duration),
			}
			s := newTestScraper(t, session, 6, tt.opts...)

			if _, err := s.Run(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, ok := session.attached[model.DefaultLocators().ShowMore]
			if !ok {
				t.Fatal("expected a wait for show more")
			}
			if got != tt.want {
				t.Errorf("expected timeout %v, got %v", tt.want, got)
			}
		})
	}
}

// TestNew tests constructor validation.
func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, model.SearchConfig{}, "https://example.com"); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

// TestStateString tests state names.
func TestStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    State
		want     string
		terminal bool
	}{
		{StateSearching, "SEARCHING", false},
		{StateSorting, "SORTING", false},
		{StateExpanding, "EXPANDING", false},
		{StateExtracting, "EXTRACTING", false},
		{StateDone, "DONE", true},
		{StateAborted, "ABORTED", true},
		{State(42), "UNKNOWN", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			if tt.state.String() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.state.String())
			}
			if tt.state.Terminal() != tt.terminal {
				t.Errorf("expected terminal %v", tt.terminal)
			}
		})
	}
}
