package browser

import "errors"

var (
	// ErrElementNotFound is returned when a locator matches nothing.
	ErrElementNotFound = errors.New("element not found")

	// ErrTimeout is returned when a wait exceeds its timeout.
	ErrTimeout = errors.New("timed out waiting for element")

	// ErrSessionClosed is returned for any operation on a closed session.
	ErrSessionClosed = errors.New("browser session closed")

	// ErrNotOpened is returned when an operation needs a page but Open was never called.
	ErrNotOpened = errors.New("no page opened")
)
