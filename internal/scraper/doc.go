// Package scraper runs one search against the news site.
//
// A run is a small state machine:
//
//	SEARCHING -> SORTING -> EXPANDING -> EXTRACTING -> DONE
//
// with ABORTED reachable from every state. SEARCHING submits the query,
// SORTING waits for results and orders them by date, EXPANDING keeps
// activating the "show more" control and EXTRACTING walks the loaded results
// in document order. Because results are sorted newest first, extraction
// stops at the first article outside the lookback window instead of
// skipping it.
//
// The expansion loop is bounded by a maximum number of clicks and by stall
// detection, so an inert "show more" button cannot keep a run alive forever.
package scraper
