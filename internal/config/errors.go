package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoQuery is returned when there is nothing to search for.
	ErrNoQuery = errors.New("no search text specified: pass a query or set search_text")

	// ErrNegativeMonths is returned when the lookback window is negative.
	ErrNegativeMonths = errors.New("invalid number of months: must not be negative")

	// ErrInvalidSiteURL is returned when the site URL is not an absolute http(s) URL.
	ErrInvalidSiteURL = errors.New("invalid site url: must be an absolute http or https url")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxExpansions is returned when the "show more" cap is not positive.
	ErrInvalidMaxExpansions = errors.New("invalid max expansions: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidReportFormat is returned for an unknown report format.
	ErrInvalidReportFormat = errors.New("invalid report format: must be text, markdown or json")

	// ErrInvalidDownloadRate is returned when the download rate is negative.
	ErrInvalidDownloadRate = errors.New("invalid download rate: must not be negative")

	// ErrProxyConflict is returned when both a proxy and Tor are requested.
	ErrProxyConflict = errors.New("proxy and tor are mutually exclusive")

	// ErrEmptyOutputDir is returned when no output directory is configured.
	ErrEmptyOutputDir = errors.New("output directory must not be empty")
)
