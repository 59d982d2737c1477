package browser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// StaticSession replays saved HTML pages.
//
// Open reveals the first page. Every click on the paging locator reveals one
// more page; Elements and Count see the union of all revealed pages in
// order. Other interactions only require their locator to be present, unless
// the session is permissive, in which case interactions with missing
// controls are recorded and ignored.
type StaticSession struct {
	mu         sync.Mutex
	pages      []*goquery.Document
	revealed   int
	paging     string
	permissive bool
	actions    []string
	closed     bool
}

// StaticOption configures a StaticSession.
type StaticOption func(*StaticSession)

// WithPagingLocator sets the locator whose click reveals the next page.
func WithPagingLocator(locator string) StaticOption {
	return func(s *StaticSession) {
		s.paging = locator
	}
}

// WithPermissiveControls lets interactions with absent controls succeed.
// Saved result pages usually lack the search form.
func WithPermissiveControls() StaticOption {
	return func(s *StaticSession) {
		s.permissive = true
	}
}

// NewStaticSession parses each reader as one HTML page.
func NewStaticSession(pages []io.Reader, opts ...StaticOption) (*StaticSession, error) {
	s := &StaticSession{}
	for _, opt := range opts {
		opt(s)
	}
	for i, r := range pages {
		doc, err := goquery.NewDocumentFromReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %d: %w", i+1, err)
		}
		s.pages = append(s.pages, doc)
	}
	return s, nil
}

// NewStaticSessionFromFiles reads and parses the given HTML files.
func NewStaticSessionFromFiles(paths []string, opts ...StaticOption) (*StaticSession, error) {
	readers := make([]io.Reader, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p) //nolint:gosec // replay files are chosen by the user
		if err != nil {
			return nil, fmt.Errorf("failed to read replay page: %w", err)
		}
		readers = append(readers, bytes.NewReader(data))
	}
	return NewStaticSession(readers, opts...)
}

// Actions returns the interactions performed so far, e.g. "click:#submit".
func (s *StaticSession) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.actions...)
}

// Revealed returns the number of pages currently revealed.
func (s *StaticSession) Revealed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revealed
}

func (s *StaticSession) Open(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, false); err != nil {
		return err
	}
	if len(s.pages) == 0 {
		return fmt.Errorf("no replay pages for %s: %w", url, ErrNotOpened)
	}
	s.revealed = 1
	s.record("open", url)
	return nil
}

// WaitVisible returns immediately: the locator is present and not hidden, or the wait times out.
// A permissive session also accepts a locator that is absent altogether.
func (s *StaticSession) WaitVisible(ctx context.Context, locator string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, true); err != nil {
		return err
	}
	if s.permissive && s.find(locator).Length() == 0 {
		return nil
	}
	if !s.visible(locator) {
		return fmt.Errorf("%s: %w", locator, ErrTimeout)
	}
	return nil
}

func (s *StaticSession) WaitAttached(ctx context.Context, locator string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, true); err != nil {
		return err
	}
	if s.find(locator).Length() == 0 {
		return fmt.Errorf("%s: %w", locator, ErrTimeout)
	}
	return nil
}

func (s *StaticSession) IsVisible(ctx context.Context, locator string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, true); err != nil {
		return false, err
	}
	return s.visible(locator), nil
}

func (s *StaticSession) Click(ctx context.Context, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, true); err != nil {
		return err
	}
	if locator == s.paging && s.paging != "" {
		if s.find(locator).Length() == 0 {
			return fmt.Errorf("%s: %w", locator, ErrElementNotFound)
		}
		if s.revealed < len(s.pages) {
			s.revealed++
		}
		s.record("click", locator)
		return nil
	}
	return s.interact("click", locator)
}

func (s *StaticSession) Fill(ctx context.Context, locator, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, true); err != nil {
		return err
	}
	return s.interact("fill", locator+"="+text)
}

func (s *StaticSession) SelectOption(ctx context.Context, locator, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, true); err != nil {
		return err
	}
	if !s.permissive {
		found := false
		s.find(locator).Find("option").EachWithBreak(func(_ int, o *goquery.Selection) bool {
			found = strings.TrimSpace(o.Text()) == label
			return !found
		})
		if !found {
			return fmt.Errorf("option %q in %s: %w", label, locator, ErrElementNotFound)
		}
	}
	s.record("select", locator+"="+label)
	return nil
}

func (s *StaticSession) Scroll(ctx context.Context, script string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, true); err != nil {
		return err
	}
	s.record("scroll", script)
	return nil
}

func (s *StaticSession) Elements(ctx context.Context, locator string) ([]Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, true); err != nil {
		return nil, err
	}
	var elems []Element
	s.find(locator).Each(func(_ int, sel *goquery.Selection) {
		elems = append(elems, &staticElement{sel: sel})
	})
	return elems, nil
}

func (s *StaticSession) Count(ctx context.Context, locator string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, true); err != nil {
		return 0, err
	}
	return s.find(locator).Length(), nil
}

// Close marks the session closed. It is safe to call more than once.
func (s *StaticSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.record("close", "")
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *StaticSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *StaticSession) interact(kind, target string) error {
	locator, _, _ := strings.Cut(target, "=")
	if s.find(locator).Length() == 0 && !s.permissive {
		return fmt.Errorf("%s: %w", locator, ErrElementNotFound)
	}
	s.record(kind, target)
	return nil
}

func (s *StaticSession) check(ctx context.Context, needPage bool) error {
	if s.closed {
		return ErrSessionClosed
	}
	if needPage && s.revealed == 0 {
		return ErrNotOpened
	}
	return ctx.Err()
}

// find matches locator across the revealed pages. The paging control is
// only looked up on the most recent page.
func (s *StaticSession) find(locator string) *goquery.Selection {
	if s.revealed == 0 {
		return &goquery.Selection{}
	}
	if locator == s.paging && s.paging != "" {
		return s.pages[s.revealed-1].Find(locator)
	}
	sel := s.pages[0].Find(locator)
	for _, doc := range s.pages[1:s.revealed] {
		sel = sel.AddSelection(doc.Find(locator))
	}
	return sel
}

func (s *StaticSession) visible(locator string) bool {
	visible := false
	s.find(locator).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		_, hidden := sel.Attr("hidden")
		style, _ := sel.Attr("style")
		visible = !hidden && !strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none")
		return !visible
	})
	return visible
}

func (s *StaticSession) record(kind, target string) {
	if target == "" {
		s.actions = append(s.actions, kind)
		return
	}
	s.actions = append(s.actions, kind+":"+target)
}

type staticElement struct {
	sel *goquery.Selection
}

func (e *staticElement) Text(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	found := e.sel.Find(selector).First()
	if found.Length() == 0 {
		return "", fmt.Errorf("%s: %w", selector, ErrElementNotFound)
	}
	return strings.TrimSpace(found.Text()), nil
}

func (e *staticElement) Attribute(ctx context.Context, selector, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	found := e.sel.Find(selector).First()
	if found.Length() == 0 {
		return "", fmt.Errorf("%s: %w", selector, ErrElementNotFound)
	}
	v, _ := found.Attr(name)
	return v, nil
}
