package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nao1215/newsharvest/internal/browser"
	"github.com/nao1215/newsharvest/internal/daterange"
	"github.com/nao1215/newsharvest/internal/model"
	"github.com/nao1215/newsharvest/internal/textparse"
)

const (
	// DefaultMaxExpansions caps how often "show more" is clicked in one run.
	DefaultMaxExpansions = 100

	// DefaultStallLimit is how many consecutive clicks may load nothing new
	// before expansion gives up.
	DefaultStallLimit = 3

	// DefaultResultsTimeout bounds the wait for the results indicator.
	DefaultResultsTimeout = 20 * time.Second

	// DefaultControlTimeout bounds waits for search controls.
	DefaultControlTimeout = 10 * time.Second

	// DefaultShowMoreTimeout bounds the presence check of "show more".
	DefaultShowMoreTimeout = 5 * time.Second
)

// ImageDownloader stores the image at rawURL in target.
type ImageDownloader interface {
	Download(ctx context.Context, rawURL, target string) (int64, error)
}

// Result is the outcome of a run.
type Result struct {
	// State is the terminal state the run ended in.
	State State

	// Records holds the unique extracted records.
	Records *model.ResultSet

	// Expansions is how many times "show more" was clicked.
	Expansions int

	// Seen is the number of loaded result elements at extraction time.
	Seen int

	// StoppedAt is the 1-based index of the first out-of-range article,
	// or 0 if extraction walked every element.
	StoppedAt int

	// DownloadFailures counts images that could not be stored.
	DownloadFailures int

	// DefaultedDates counts records whose date fell back to today.
	DefaultedDates int

	// Transitions lists every state the run passed through, in order.
	Transitions []State
}

// Scraper drives one search through a browser session.
type Scraper struct {
	// session is the browser page the run operates on.
	session browser.Session

	// search holds the query and lookback window.
	search model.SearchConfig

	// siteURL is opened at the start of the run.
	siteURL string

	// locators bind the run to the site's markup.
	locators model.Locators

	// parser turns description text into article dates.
	parser *textparse.DateParser

	// filter decides whether an article is recent enough.
	filter daterange.Filter

	// downloader stores article images. Nil disables downloads.
	downloader ImageDownloader

	// imagesDir is where news-article-<n>.jpg files are written.
	imagesDir string

	maxExpansions   int
	stallLimit      int
	resultsTimeout  time.Duration
	controlTimeout  time.Duration
	showMoreTimeout time.Duration

	logger *slog.Logger

	// state is the current phase; transitions records its history.
	state       State
	transitions []State
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithLocators overrides the site selectors. Empty fields keep their defaults.
func WithLocators(l model.Locators) Option {
	return func(s *Scraper) {
		s.locators = l.Merge(model.DefaultLocators())
	}
}

// WithDownloader sets the image downloader.
func WithDownloader(d ImageDownloader) Option {
	return func(s *Scraper) {
		s.downloader = d
	}
}

// WithImagesDir sets the directory images are downloaded into.
func WithImagesDir(dir string) Option {
	return func(s *Scraper) {
		s.imagesDir = dir
	}
}

// WithDateParser sets the parser used for article dates.
func WithDateParser(p *textparse.DateParser) Option {
	return func(s *Scraper) {
		if p != nil {
			s.parser = p
		}
	}
}

// WithMaxExpansions caps the number of "show more" clicks.
func WithMaxExpansions(n int) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.maxExpansions = n
		}
	}
}

// WithStallLimit sets how many unproductive clicks end expansion.
func WithStallLimit(n int) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.stallLimit = n
		}
	}
}

// WithResultsTimeout sets the wait for the results indicator.
func WithResultsTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.resultsTimeout = d
		}
	}
}

// WithControlTimeout sets the wait for search controls.
func WithControlTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.controlTimeout = d
		}
	}
}

// WithShowMoreTimeout sets how long expansion looks for "show more"
// before deciding every result is loaded.
func WithShowMoreTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.showMoreTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scraper for search on siteURL using session.
func New(session browser.Session, search model.SearchConfig, siteURL string, opts ...Option) (*Scraper, error) {
	if session == nil {
		return nil, ErrNoSession
	}
	s := &Scraper{
		session:         session,
		search:          search,
		siteURL:         siteURL,
		locators:        model.DefaultLocators(),
		parser:          textparse.NewDateParser(),
		filter:          daterange.NewFilter(search),
		imagesDir:       "images",
		maxExpansions:   DefaultMaxExpansions,
		stallLimit:      DefaultStallLimit,
		resultsTimeout:  DefaultResultsTimeout,
		controlTimeout:  DefaultControlTimeout,
		showMoreTimeout: DefaultShowMoreTimeout,
		logger:          slog.Default(),
		state:           StateSearching,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the current state.
func (s *Scraper) State() State {
	return s.state
}

// EffectiveThreshold returns the date articles are compared against.
func (s *Scraper) EffectiveThreshold() model.Date {
	return s.filter.Effective()
}

// ImagePath returns the image file for the article at 1-based index n.
func (s *Scraper) ImagePath(n int) string {
	return filepath.Join(s.imagesDir, "news-article-"+strconv.Itoa(n)+".jpg")
}

// Run executes the state machine until it reaches DONE or ABORTED.
//
// On ABORTED the browser session is closed and the returned error wraps
// ErrAborted, ErrNoResults or the context error. The Result is never nil.
// Every call starts again from SEARCHING.
func (s *Scraper) Run(ctx context.Context) (*Result, error) {
	res := &Result{Records: model.NewResultSet()}
	s.state = StateSearching
	s.transitions = []State{s.state}

	for !s.state.Terminal() {
		if err := ctx.Err(); err != nil {
			return s.abort(res, err)
		}

		var err error
		switch s.state {
		case StateSearching:
			err = s.searchPhase(ctx)
		case StateSorting:
			err = s.sortPhase(ctx)
		case StateExpanding:
			err = s.expandPhase(ctx, res)
		case StateExtracting:
			err = s.extractPhase(ctx, res)
		}
		if err != nil {
			return s.abort(res, err)
		}
	}

	res.State = s.state
	res.Transitions = s.transitions
	return res, nil
}

func (s *Scraper) transition(next State) {
	s.logger.Debug("scraper state change", "from", s.state.String(), "to", next.String())
	s.state = next
	s.transitions = append(s.transitions, next)
}

func (s *Scraper) abort(res *Result, cause error) (*Result, error) {
	from := s.state
	s.transition(StateAborted)
	res.State = s.state
	res.Transitions = s.transitions

	if err := s.session.Close(); err != nil {
		s.logger.Warn("failed to close browser session", "error", err)
	}

	switch {
	case errors.Is(cause, ErrNoResults):
		return res, cause
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		return res, cause
	default:
		s.logger.Error("scrape aborted", "state", from.String(), "error", cause)
		return res, fmt.Errorf("%w in %s: %w", ErrAborted, from, cause)
	}
}

func (s *Scraper) searchPhase(ctx context.Context) error {
	l := s.locators

	s.logger.Info("opening news site", "url", s.siteURL)
	if err := s.session.Open(ctx, s.siteURL); err != nil {
		return err
	}

	s.logger.Info("opening search input field")
	if err := s.session.WaitVisible(ctx, l.SearchTrigger, s.controlTimeout); err != nil {
		return err
	}
	if err := s.session.Click(ctx, l.SearchTrigger); err != nil {
		return err
	}
	if err := s.session.Fill(ctx, l.SearchInput, s.search.Query); err != nil {
		return err
	}
	s.logger.Info("search text entered", "query", s.search.Query)

	if err := s.session.WaitVisible(ctx, l.SearchSubmit, s.controlTimeout); err != nil {
		return err
	}
	if err := s.session.Click(ctx, l.SearchSubmit); err != nil {
		return err
	}
	s.logger.Info("search performed")

	s.transition(StateSorting)
	return nil
}

func (s *Scraper) sortPhase(ctx context.Context) error {
	l := s.locators

	if err := s.session.WaitAttached(ctx, l.ResultsSummary, s.resultsTimeout); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.Info("no results found for search query", "query", s.search.Query)
		return ErrNoResults
	}
	visible, err := s.session.IsVisible(ctx, l.ResultsSummary)
	if err != nil {
		return err
	}
	if !visible {
		s.logger.Info("no results found for search query", "query", s.search.Query)
		return ErrNoResults
	}

	if err := s.session.SelectOption(ctx, l.SortSelect, l.SortLabel); err != nil {
		return err
	}
	s.logger.Info("sorted articles", "by", l.SortLabel, "query", s.search.Query)

	s.transition(StateExpanding)
	return nil
}

// expandPhase clicks "show more" until it disappears, a click fails, the
// click cap is reached or the result count stops growing.
func (s *Scraper) expandPhase(ctx context.Context, res *Result) error {
	l := s.locators

	last, err := s.session.Count(ctx, l.ResultItem)
	if err != nil {
		return err
	}
	stalled := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if res.Expansions >= s.maxExpansions {
			s.logger.Warn("show more limit reached", "clicks", res.Expansions, "results", last)
			break
		}

		if err := s.session.WaitAttached(ctx, l.ShowMore, s.showMoreTimeout); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.logger.Info("no more articles to load")
			break
		}
		if err := s.session.Scroll(ctx, l.ScrollScript); err != nil {
			s.logger.Info("no more articles to load", "reason", err)
			break
		}
		if err := s.session.Click(ctx, l.ShowMore); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.logger.Info("no more articles to load", "reason", err)
			break
		}
		res.Expansions++

		n, err := s.session.Count(ctx, l.ResultItem)
		if err != nil {
			return err
		}
		if n > last {
			last = n
			stalled = 0
			continue
		}
		stalled++
		if stalled >= s.stallLimit {
			s.logger.Warn("show more stopped loading results", "clicks", res.Expansions, "results", last)
			break
		}
	}

	s.logger.Info("all news articles loaded", "results", last, "clicks", res.Expansions)
	s.transition(StateExtracting)
	return nil
}

func (s *Scraper) extractPhase(ctx context.Context, res *Result) error {
	l := s.locators

	s.logger.Info("starting to extract news data")
	if err := s.session.WaitAttached(ctx, l.ResultItem, s.controlTimeout); err != nil {
		return err
	}
	elems, err := s.session.Elements(ctx, l.ResultItem)
	if err != nil {
		return err
	}
	res.Seen = len(elems)

	for i, elem := range elems {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := i + 1

		record, parsed, keep := s.extractOne(ctx, elem, n)
		if !keep {
			s.logger.Info("article date is outside the lookback window, stopping extraction",
				"index", n, "date", parsed.Date.String(), "threshold", s.filter.Effective().String())
			res.StoppedAt = n
			break
		}
		if parsed.Defaulted() {
			res.DefaultedDates++
			s.logger.Debug("article date defaulted to today", "index", n, "reason", parsed.Reason)
		}

		if s.downloader != nil {
			if err := s.downloadImage(ctx, elem, record.ImagePath); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				res.DownloadFailures++
				s.logger.Warn("failed to download image", "index", n, "error", err)
			}
		}

		res.Records.Add(record, n)
		s.logger.Info("extracted news article", "index", n, "title", record.Title, "date", record.Date.String())
	}

	s.logger.Info("extraction of news data completed", "records", res.Records.Len())
	s.transition(StateDone)
	return nil
}

// extractOne builds the record for the element at index n. keep is false
// when the article falls outside the lookback window.
func (s *Scraper) extractOne(ctx context.Context, elem browser.Element, n int) (model.NewsRecord, model.DateResult, bool) {
	l := s.locators

	rawTitle, err := elem.Text(ctx, l.Title)
	if err != nil {
		s.logger.Debug("article without title", "index", n, "error", err)
	}
	rawDescription, err := elem.Text(ctx, l.Description)
	if err != nil {
		s.logger.Debug("article without description", "index", n, "error", err)
	}

	title := textparse.CleanText(rawTitle)
	description := textparse.CleanText(rawDescription)
	parsed := s.parser.Parse(description)

	if !s.filter.Keep(parsed.Date) {
		return model.NewsRecord{}, parsed, false
	}

	return model.NewsRecord{
		Title:                 title,
		Description:           description,
		Date:                  parsed.Date,
		ImagePath:             s.ImagePath(n),
		TitleMatchCount:       textparse.CountOccurrences(title, s.search.Query),
		DescriptionMatchCount: textparse.CountOccurrences(description, s.search.Query),
		ContainsAmount:        textparse.ContainsAmount(title, description),
	}, parsed, true
}

func (s *Scraper) downloadImage(ctx context.Context, elem browser.Element, target string) error {
	src, err := elem.Attribute(ctx, s.locators.Image, "src")
	if err != nil {
		return err
	}
	_, err = s.downloader.Download(ctx, src, target)
	return err
}
