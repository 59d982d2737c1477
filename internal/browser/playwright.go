package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

const (
	// DefaultActionTimeout bounds every Playwright action without an explicit timeout.
	DefaultActionTimeout = 30 * time.Second
)

// installOnce guards the driver download so concurrent sessions share it.
var installOnce sync.Once

// PlaywrightSession is a Session backed by a Chromium page.
type PlaywrightSession struct {
	headless       bool
	downloadsPath  string
	userAgent      string
	executablePath string
	actionTimeout  time.Duration
	installDriver  bool
	logger         *slog.Logger

	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// PlaywrightOption configures a PlaywrightSession.
type PlaywrightOption func(*PlaywrightSession)

// WithHeadless toggles headless mode.
func WithHeadless(headless bool) PlaywrightOption {
	return func(s *PlaywrightSession) {
		s.headless = headless
	}
}

// WithDownloadsPath sets the browser download directory.
func WithDownloadsPath(dir string) PlaywrightOption {
	return func(s *PlaywrightSession) {
		s.downloadsPath = dir
	}
}

// WithUserAgent overrides the browser user agent.
func WithUserAgent(ua string) PlaywrightOption {
	return func(s *PlaywrightSession) {
		s.userAgent = ua
	}
}

// WithExecutablePath points at a system Chromium instead of the bundled one.
func WithExecutablePath(path string) PlaywrightOption {
	return func(s *PlaywrightSession) {
		s.executablePath = path
	}
}

// WithActionTimeout sets the default timeout of page actions.
func WithActionTimeout(d time.Duration) PlaywrightOption {
	return func(s *PlaywrightSession) {
		if d > 0 {
			s.actionTimeout = d
		}
	}
}

// WithDriverInstall installs the Playwright driver once before launching.
func WithDriverInstall(install bool) PlaywrightOption {
	return func(s *PlaywrightSession) {
		s.installDriver = install
	}
}

// WithSessionLogger sets the logger.
func WithSessionLogger(logger *slog.Logger) PlaywrightOption {
	return func(s *PlaywrightSession) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewPlaywrightSession starts Playwright and launches a maximized Chromium.
func NewPlaywrightSession(opts ...PlaywrightOption) (*PlaywrightSession, error) {
	s := &PlaywrightSession{
		headless:      true,
		actionTimeout: DefaultActionTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.installDriver {
		installOnce.Do(func() {
			s.logger.Info("installing playwright driver")
			if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
				s.logger.Warn("playwright driver installation failed", "error", err)
			}
		})
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	s.pw = pw

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.headless),
		Args:     []string{"--start-maximized"},
	}
	if s.downloadsPath != "" {
		launch.DownloadsPath = playwright.String(s.downloadsPath)
	}
	if s.executablePath != "" {
		launch.ExecutablePath = playwright.String(s.executablePath)
	}

	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}
	s.browser = browser

	contextOpts := playwright.BrowserNewContextOptions{
		NoViewport:      playwright.Bool(true),
		AcceptDownloads: playwright.Bool(true),
	}
	if s.userAgent != "" {
		contextOpts.UserAgent = playwright.String(s.userAgent)
	}
	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		s.shutdown()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		s.shutdown()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(s.actionTimeout.Milliseconds()))
	s.page = page

	s.logger.Debug("browser launched", "headless", s.headless, "downloads", s.downloadsPath)
	return s, nil
}

// Open navigates to url and waits for the DOM to be ready.
func (s *PlaywrightSession) Open(ctx context.Context, url string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, translate(err))
	}
	return nil
}

// WaitVisible waits for locator to become visible.
func (s *PlaywrightSession) WaitVisible(ctx context.Context, locator string, timeout time.Duration) error {
	return s.waitFor(ctx, locator, playwright.WaitForSelectorStateVisible, timeout)
}

// WaitAttached waits for locator to be attached to the DOM.
func (s *PlaywrightSession) WaitAttached(ctx context.Context, locator string, timeout time.Duration) error {
	return s.waitFor(ctx, locator, playwright.WaitForSelectorStateAttached, timeout)
}

func (s *PlaywrightSession) waitFor(ctx context.Context, locator string, state *playwright.WaitForSelectorState, timeout time.Duration) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	opts := playwright.LocatorWaitForOptions{State: state}
	if timeout > 0 {
		opts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	if err := s.page.Locator(locator).First().WaitFor(opts); err != nil {
		return fmt.Errorf("%s: %w", locator, translate(err))
	}
	return nil
}

// IsVisible reports whether the first match of locator is visible.
func (s *PlaywrightSession) IsVisible(ctx context.Context, locator string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	visible, err := s.page.Locator(locator).First().IsVisible()
	if err != nil {
		return false, fmt.Errorf("%s: %w", locator, translate(err))
	}
	return visible, nil
}

// Click clicks the first match of locator.
func (s *PlaywrightSession) Click(ctx context.Context, locator string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := s.page.Locator(locator).First().Click(); err != nil {
		return fmt.Errorf("failed to click %s: %w", locator, translate(err))
	}
	return nil
}

// Fill types text into the first match of locator.
func (s *PlaywrightSession) Fill(ctx context.Context, locator, text string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := s.page.Locator(locator).First().Fill(text); err != nil {
		return fmt.Errorf("failed to fill %s: %w", locator, translate(err))
	}
	return nil
}

// SelectOption selects the option labelled label.
func (s *PlaywrightSession) SelectOption(ctx context.Context, locator, label string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.page.Locator(locator).First().SelectOption(playwright.SelectOptionValues{
		Labels: &[]string{label},
	})
	if err != nil {
		return fmt.Errorf("failed to select %q in %s: %w", label, locator, translate(err))
	}
	return nil
}

// Scroll evaluates script in the page.
func (s *PlaywrightSession) Scroll(ctx context.Context, script string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.page.Evaluate(script); err != nil {
		return fmt.Errorf("failed to scroll: %w", translate(err))
	}
	return nil
}

// Elements returns all matches of locator in document order.
func (s *PlaywrightSession) Elements(ctx context.Context, locator string) ([]Element, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	locs, err := s.page.Locator(locator).All()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", locator, translate(err))
	}
	elems := make([]Element, 0, len(locs))
	for _, l := range locs {
		elems = append(elems, &playwrightElement{loc: l})
	}
	return elems, nil
}

// Count returns the number of matches of locator.
func (s *PlaywrightSession) Count(ctx context.Context, locator string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	n, err := s.page.Locator(locator).Count()
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", locator, translate(err))
	}
	return n, nil
}

// Close shuts the browser and the Playwright driver down.
func (s *PlaywrightSession) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		s.closeErr = s.shutdown()
	})
	return s.closeErr
}

func (s *PlaywrightSession) shutdown() error {
	var errs []error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}
	s.logger.Debug("browser closed")
	return errors.Join(errs...)
}

func (s *PlaywrightSession) ready(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.page == nil {
		return ErrNotOpened
	}
	return ctx.Err()
}

type playwrightElement struct {
	loc playwright.Locator
}

func (e *playwrightElement) first(ctx context.Context, selector string) (playwright.Locator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc := e.loc.Locator(selector)
	n, err := loc.Count()
	if err != nil {
		return nil, translate(err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%s: %w", selector, ErrElementNotFound)
	}
	return loc.First(), nil
}

func (e *playwrightElement) Text(ctx context.Context, selector string) (string, error) {
	loc, err := e.first(ctx, selector)
	if err != nil {
		return "", err
	}
	text, err := loc.InnerText()
	if err != nil {
		return "", fmt.Errorf("%s: %w", selector, translate(err))
	}
	return strings.TrimSpace(text), nil
}

func (e *playwrightElement) Attribute(ctx context.Context, selector, name string) (string, error) {
	loc, err := e.first(ctx, selector)
	if err != nil {
		return "", err
	}
	v, err := loc.GetAttribute(name)
	if err != nil {
		return "", fmt.Errorf("%s[%s]: %w", selector, name, translate(err))
	}
	return v, nil
}

// translate maps Playwright errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, playwright.ErrTimeout):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, playwright.ErrTargetClosed):
		return fmt.Errorf("%w: %w", ErrSessionClosed, err)
	default:
		return err
	}
}
