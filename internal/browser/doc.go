// Package browser drives the search site.
//
// Session is the narrow set of page interactions the scraper needs:
// navigation, waiting for locators, clicking, filling, selecting, scrolling
// and enumerating result elements. Two implementations exist.
//
// PlaywrightSession controls a real Chromium through playwright-go.
// StaticSession replays saved HTML pages through goquery. Each click on the
// "show more" locator reveals the next page, so an expansion loop can be
// exercised offline.
//
// Locators are CSS selectors. A Session is not safe for concurrent use.
package browser
