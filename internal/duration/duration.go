// Package duration classifies the time footprint of an occasion into
// half-day, full-day and multi-day categories.
package duration

import "time"

// Days is a bit flag describing duration categories. An activity may
// carry several flags at once, one for each distinct category among
// its occasions.
type Days uint8

const (
	Half Days = 1 << iota
	Full
	Many
)

// Has reports whether the given flag is set.
func (d Days) Has(flag Days) bool {
	return d&flag != 0
}

// Aggregate combines the categories of several occasions into the
// flag set reported on their activity.
func Aggregate(categories ...Days) Days {
	var result Days
	for _, c := range categories {
		result |= c
	}
	return result
}

// Span is one concrete time range of an occasion, in local time.
type Span struct {
	Start time.Time
	End   time.Time
}

// Calibration constants. A session of up to six hours is half a day,
// anything up to a day that stays within one local calendar day is a
// full day. A session that runs past midnight still counts as a full
// day as long as it winds down before morning; a second calendar day
// reached later than that is a separate occurrence.
const (
	halfDayMax      = 6 * time.Hour
	fullDayMax      = 24 * time.Hour
	morningCutoffHr = 6
)

// Classify returns the duration category for the given spans, which
// must all belong to one occasion and carry local (not UTC) times.
// The category is derived from the elapsed time between the earliest
// start and the latest end.
func Classify(spans []Span) Days {
	if len(spans) == 0 {
		return 0
	}

	start := spans[0].Start
	end := spans[0].End

	for _, s := range spans[1:] {
		if s.Start.Before(start) {
			start = s.Start
		}
		if s.End.After(end) {
			end = s.End
		}
	}

	elapsed := end.Sub(start)

	switch {
	case elapsed <= halfDayMax:
		return Half
	case elapsed <= fullDayMax:
		if sameDay(start, end) {
			return Full
		}
		if nextDay(start, end) && end.Hour() < morningCutoffHr {
			return Full
		}
		return Many
	default:
		return Many
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func nextDay(a, b time.Time) bool {
	return sameDay(a.AddDate(0, 0, 1), b)
}
