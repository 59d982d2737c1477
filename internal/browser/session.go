package browser

import (
	"context"
	"time"
)

// Session is an open browser page.
type Session interface {
	// Open navigates to url.
	Open(ctx context.Context, url string) error

	// WaitVisible blocks until locator is visible or timeout elapses.
	WaitVisible(ctx context.Context, locator string, timeout time.Duration) error

	// WaitAttached blocks until locator is present in the DOM or timeout elapses.
	WaitAttached(ctx context.Context, locator string, timeout time.Duration) error

	// IsVisible reports whether locator is currently visible.
	IsVisible(ctx context.Context, locator string) (bool, error)

	Click(ctx context.Context, locator string) error
	Fill(ctx context.Context, locator, text string) error

	// SelectOption picks the option with the given visible label.
	SelectOption(ctx context.Context, locator, label string) error

	// Scroll evaluates a scroll script in the page.
	Scroll(ctx context.Context, script string) error

	// Elements returns every element matching locator in document order.
	Elements(ctx context.Context, locator string) ([]Element, error)

	// Count returns the number of elements matching locator.
	Count(ctx context.Context, locator string) (int, error)

	// Close releases the browser. Calling it more than once is a no-op.
	Close() error
}

// Element is a single matched element, queried relative to itself.
type Element interface {
	// Text returns the trimmed inner text of the first descendant matching selector.
	Text(ctx context.Context, selector string) (string, error)

	// Attribute returns the named attribute of the first descendant matching selector.
	Attribute(ctx context.Context, selector, name string) (string, error)
}
