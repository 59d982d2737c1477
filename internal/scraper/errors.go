package scraper

import "errors"

var (
	// ErrAborted wraps the UI failure that ended a run early.
	ErrAborted = errors.New("scrape aborted")

	// ErrNoResults is returned when the search produced no results.
	// It is a clean end of the run, not a failure.
	ErrNoResults = errors.New("no results found")

	// ErrNoSession is returned when a Scraper is built without a browser session.
	ErrNoSession = errors.New("no browser session")
)
