package model

import (
	"errors"
	"strings"
	"time"
)

// ErrEmptyQuery is returned when a search is configured without a query.
var ErrEmptyQuery = errors.New("search query must not be empty")

// ErrNegativeLookback is returned when the lookback window is negative.
var ErrNegativeLookback = errors.New("lookback months must not be negative")

// SearchConfig describes one search run. It is built once when the run
// starts and never modified afterwards.
type SearchConfig struct {
	// Query is the text typed into the site's search box.
	Query string `json:"query"`

	// LookbackMonths is the recency window in months.
	LookbackMonths int `json:"lookback_months"`

	// ThresholdDate is the first day of the month that lies
	// max(LookbackMonths, 1) months before the run date.
	ThresholdDate Date `json:"threshold_date"`
}

// NewSearchConfig validates the inputs and derives the threshold date from now.
func NewSearchConfig(query string, lookbackMonths int, now time.Time) (SearchConfig, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchConfig{}, ErrEmptyQuery
	}
	if lookbackMonths < 0 {
		return SearchConfig{}, ErrNegativeLookback
	}

	return SearchConfig{
		Query:          query,
		LookbackMonths: lookbackMonths,
		ThresholdDate:  SearchThreshold(now, lookbackMonths),
	}, nil
}

// SearchThreshold returns the first day of the month that is
// max(lookbackMonths, 1) months before now.
func SearchThreshold(now time.Time, lookbackMonths int) Date {
	return DateOf(now).FirstOfMonth(-ClampMonths(lookbackMonths))
}

// ClampMonths raises a lookback window below one month to one month.
func ClampMonths(months int) int {
	if months < 1 {
		return 1
	}
	return months
}
