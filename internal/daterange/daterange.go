package daterange

import (
	"time"

	"github.com/nao1215/newsharvest/internal/model"
)

// monthsPerYear is the base of the effective threshold shift.
const monthsPerYear = 12

// Threshold returns the search threshold for a run started at now: the first
// day of the month that is max(months, 1) months earlier.
func Threshold(now time.Time, months int) model.Date {
	return model.SearchThreshold(now, months)
}

// EffectiveThreshold shifts threshold forward by 12 - max(months, 1) months
// and pins it to the first day of the resulting month.
func EffectiveThreshold(threshold model.Date, months int) model.Date {
	months = model.ClampMonths(months)
	return threshold.FirstOfMonth(monthsPerYear - months)
}

// IsWithinRange reports whether articleDate is on or after the effective
// threshold computed from threshold and months.
func IsWithinRange(articleDate, threshold model.Date, months int) bool {
	return !articleDate.Before(EffectiveThreshold(threshold, months))
}

// Filter binds a search configuration to IsWithinRange.
type Filter struct {
	threshold model.Date
	months    int
	effective model.Date
}

// NewFilter creates a Filter for the given search.
func NewFilter(search model.SearchConfig) Filter {
	return Filter{
		threshold: search.ThresholdDate,
		months:    search.LookbackMonths,
		effective: EffectiveThreshold(search.ThresholdDate, search.LookbackMonths),
	}
}

// Keep reports whether an article published on d is in range.
func (f Filter) Keep(d model.Date) bool {
	return IsWithinRange(d, f.threshold, f.months)
}

// Effective returns the effective threshold the filter compares against.
func (f Filter) Effective() model.Date {
	return f.effective
}
