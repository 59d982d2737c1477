package textparse

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/newsharvest/internal/model"
)

// absoluteLayout is the layout of "Mon D, YYYY" dates after whitespace has
// been collapsed.
const absoluteLayout = "Jan 2, 2006"

// maxDaysAgo is the number of days between 0001-01-01 and 9999-12-31.
// Larger "N days ago" counts cannot name a calendar date.
const maxDaysAgo = 3652058

// earliestDate is the oldest date a relative phrase may resolve to.
var earliestDate = model.NewDate(1, time.January, 1)

var (
	daysAgoPattern  = regexp.MustCompile(`(\d+)\s+days?\s+ago`)
	hoursAgoPattern = regexp.MustCompile(`(\d+)\s+hours?\s+ago`)
	absolutePattern = regexp.MustCompile(`([A-Za-z]{3}\s+\d{1,2},\s+\d{4})`)
)

// DateParser extracts the publication date from a result description.
type DateParser struct {
	now    func() time.Time
	logger *slog.Logger
}

// DateParserOption configures a DateParser.
type DateParserOption func(*DateParser)

// WithClock sets the function used to read the current time.
func WithClock(now func() time.Time) DateParserOption {
	return func(p *DateParser) {
		p.now = now
	}
}

// WithLogger sets a custom logger for the parser.
func WithLogger(logger *slog.Logger) DateParserOption {
	return func(p *DateParser) {
		p.logger = logger
	}
}

// NewDateParser creates a DateParser that uses the wall clock.
func NewDateParser(opts ...DateParserOption) *DateParser {
	p := &DateParser{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse looks for three phrasings, in this order: "N days ago",
// "N hours ago" and "Mon D, YYYY". Every phrase that matches overwrites the
// previous result, so an absolute date beats a relative one in the same
// text. A "Mon D, YYYY" match that is not a real date is ignored. When
// nothing matches, today's date is returned as a defaulted result.
func (p *DateParser) Parse(text string) model.DateResult {
	today := model.DateOf(p.now())
	result := model.DateResult{
		Date:   today,
		Source: model.DateDefaulted,
		Reason: "no date phrase found",
	}

	if m := daysAgoPattern.FindStringSubmatch(text); m != nil {
		if days, err := strconv.Atoi(m[1]); err == nil && days <= maxDaysAgo && !today.AddDays(-days).Before(earliestDate) {
			result = model.DateResult{Date: today.AddDays(-days), Source: model.DateDaysAgo}
			p.logger.Debug("found relative date", "format", "days ago", "date", result.Date, "text", text)
		} else {
			result.Reason = "day count out of range"
		}
	}

	if hoursAgoPattern.MatchString(text) {
		result = model.DateResult{Date: today, Source: model.DateHoursAgo}
		p.logger.Debug("found relative date", "format", "hours ago", "date", result.Date, "text", text)
	}

	if m := absolutePattern.FindStringSubmatch(text); m != nil {
		phrase := strings.Join(strings.Fields(m[1]), " ")
		if t, err := time.Parse(absoluteLayout, phrase); err == nil {
			result = model.DateResult{Date: model.DateOf(t), Source: model.DateAbsolute}
			p.logger.Debug("found absolute date", "date", result.Date, "text", text)
		} else if result.Defaulted() {
			result.Reason = "absolute date unparsable: " + phrase
		}
	}

	return result
}
