package model

// DateSource tells which phrasing produced a parsed article date.
type DateSource int

const (
	// DateDefaulted means no recognized phrase matched and the date fell back to today.
	DateDefaulted DateSource = iota

	// DateDaysAgo means the date came from an "N days ago" phrase.
	DateDaysAgo

	// DateHoursAgo means the date came from an "N hours ago" phrase.
	DateHoursAgo

	// DateAbsolute means the date came from a "Mon D, YYYY" phrase.
	DateAbsolute
)

// String returns the source name.
func (s DateSource) String() string {
	switch s {
	case DateDaysAgo:
		return "days_ago"
	case DateHoursAgo:
		return "hours_ago"
	case DateAbsolute:
		return "absolute"
	default:
		return "defaulted"
	}
}

// DateResult is the outcome of parsing an article date out of free text.
// A defaulted result still carries a usable Date (today) together with the
// reason the default was applied.
type DateResult struct {
	Date   Date
	Source DateSource
	Reason string
}

// Defaulted reports whether the date is a fallback rather than a parsed value.
func (r DateResult) Defaulted() bool {
	return r.Source == DateDefaulted
}
