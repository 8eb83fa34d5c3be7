// Package filter composes the facet predicates used to browse
// activities. A State is an immutable value: toggling a facet value
// returns a new State, toggling the same value again removes it.
// Values within one facet combine with OR, facets combine with AND.
package filter

import (
	"time"

	"gorm.io/gorm"

	"activity-booking-backend/internal/duration"
	"activity-booking-backend/internal/model"
)

// NumRange is an inclusive numeric range facet value.
type NumRange struct {
	Min int
	Max int
}

// Overlaps reports whether the two inclusive ranges share a value.
func (r NumRange) Overlaps(other NumRange) bool {
	return r.Min <= other.Max && other.Min <= r.Max
}

// DateRange is an inclusive date range facet value.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Timeline facet values.
const (
	TimelinePast    = "past"
	TimelineNow     = "now"
	TimelineFuture  = "future"
	TimelineUndated = "undated"
)

// Availability facet values.
const (
	AvailableNone = "none"
	AvailableFew  = "few"
	AvailableMany = "many"
)

// fewSpotsMax is the largest number of free spots still reported as
// "few".
const fewSpotsMax = 2

// State holds the toggled values of each facet.
type State struct {
	Tags        []string
	States      []model.ActivityState
	Durations   []duration.Days
	Weekdays    []int
	Owners      []string
	PeriodIDs   []uint
	Timelines   []string
	Available   []string
	AgeRanges   []NumRange
	PriceRanges []NumRange
	DateRanges  []DateRange
}

// toggle removes the value if present, otherwise appends it. The
// input slice is never modified.
func toggle[T comparable](values []T, value T) []T {
	out := make([]T, 0, len(values)+1)
	found := false
	for _, v := range values {
		if v == value {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, value)
	}
	return out
}

func (s State) WithToggledTag(tag string) State {
	s.Tags = toggle(s.Tags, tag)
	return s
}

func (s State) WithToggledState(state model.ActivityState) State {
	s.States = toggle(s.States, state)
	return s
}

func (s State) WithToggledDuration(d duration.Days) State {
	s.Durations = toggle(s.Durations, d)
	return s
}

func (s State) WithToggledWeekday(weekday int) State {
	s.Weekdays = toggle(s.Weekdays, weekday)
	return s
}

func (s State) WithToggledOwner(owner string) State {
	s.Owners = toggle(s.Owners, owner)
	return s
}

func (s State) WithToggledPeriod(periodID uint) State {
	s.PeriodIDs = toggle(s.PeriodIDs, periodID)
	return s
}

func (s State) WithToggledTimeline(timeline string) State {
	s.Timelines = toggle(s.Timelines, timeline)
	return s
}

func (s State) WithToggledAvailability(availability string) State {
	s.Available = toggle(s.Available, availability)
	return s
}

func (s State) WithToggledAgeRange(r NumRange) State {
	s.AgeRanges = toggle(s.AgeRanges, r)
	return s
}

func (s State) WithToggledPriceRange(r NumRange) State {
	s.PriceRanges = toggle(s.PriceRanges, r)
	return s
}

func (s State) WithToggledDateRange(r DateRange) State {
	s.DateRanges = toggle(s.DateRanges, r)
	return s
}

// ContainsAgeRange reports whether the given inclusive range overlaps
// any of the toggled age ranges.
func (s State) ContainsAgeRange(r NumRange) bool {
	for _, toggled := range s.AgeRanges {
		if toggled.Overlaps(r) {
			return true
		}
	}
	return false
}

// Apply compiles the facets onto an activity query.
func (s State) Apply(db *gorm.DB) *gorm.DB {
	q := db.Model(&model.Activity{})

	if len(s.States) > 0 {
		q = q.Where("activities.state IN ?", s.States)
	}

	if len(s.Owners) > 0 {
		q = q.Where("activities.username IN ?", s.Owners)
	}

	if len(s.Tags) > 0 {
		q = q.Where(
			"activities.id IN (?)",
			db.Table("activity_tags").
				Select("activity_tags.activity_id").
				Joins("JOIN tags ON tags.id = activity_tags.tag_id").
				Where("tags.name IN ?", s.Tags),
		)
	}

	occasions := s.occasionSubquery(db)

	// activities without any occasion are their own timeline value,
	// unioned with any dated timeline toggled alongside it
	if contains(s.Timelines, TimelineUndated) {
		sub := db.Model(&model.Occasion{}).Select("activity_id")
		if len(s.PeriodIDs) > 0 {
			sub = sub.Where("period_id IN ?", s.PeriodIDs)
		}
		if s.timelineConditions(db) != nil {
			return q.Where(
				"activities.id NOT IN (?) OR activities.id IN (?)",
				sub, occasions,
			)
		}
		return q.Where("activities.id NOT IN (?)", sub)
	}

	if occasions != nil {
		q = q.Where("activities.id IN (?)", occasions)
	}

	return q
}

// occasionSubquery builds the occasion-based part of the filter, or
// nil if no occasion facet is toggled.
func (s State) occasionSubquery(db *gorm.DB) *gorm.DB {
	applied := false

	sub := db.Model(&model.Occasion{}).
		Select("occasions.activity_id").
		Joins("JOIN occasion_dates ON occasion_dates.occasion_id = occasions.id").
		Distinct()

	if len(s.PeriodIDs) > 0 {
		applied = true
		sub = sub.Where("occasions.period_id IN ?", s.PeriodIDs)
	}

	if len(s.Durations) > 0 {
		applied = true
		sub = sub.Where("occasions.duration IN ?", s.Durations)
	}

	if len(s.Weekdays) > 0 {
		applied = true
		sub = sub.Where("occasion_dates.weekday IN ?", s.Weekdays)
	}

	if len(s.AgeRanges) > 0 {
		applied = true
		cond := db.Session(&gorm.Session{NewDB: true})
		clause := cond.Where("1 = 0")
		for _, r := range s.AgeRanges {
			// overlap of the inclusive facet range with the
			// half-open occasion range
			clause = clause.Or("occasions.min_age <= ? AND ? < occasions.max_age", r.Max, r.Min)
		}
		sub = sub.Where(clause)
	}

	if len(s.PriceRanges) > 0 {
		applied = true
		cond := db.Session(&gorm.Session{NewDB: true})
		clause := cond.Where("1 = 0")
		for _, r := range s.PriceRanges {
			clause = clause.Or("occasions.cost BETWEEN ? AND ?", r.Min, r.Max)
		}
		sub = sub.Where(clause)
	}

	if len(s.DateRanges) > 0 {
		applied = true
		cond := db.Session(&gorm.Session{NewDB: true})
		clause := cond.Where("1 = 0")
		for _, r := range s.DateRanges {
			clause = clause.Or("occasion_dates.start <= ? AND ? <= occasion_dates.\"end\"", r.To, r.From)
		}
		sub = sub.Where(clause)
	}

	if timelines := s.timelineConditions(db); timelines != nil {
		applied = true
		sub = sub.Where(timelines)
	}

	if availability := s.availabilityConditions(db); availability != nil {
		applied = true
		sub = sub.Where(availability)
	}

	if !applied {
		return nil
	}
	return sub
}

func (s State) timelineConditions(db *gorm.DB) *gorm.DB {
	if len(s.Timelines) == 0 {
		return nil
	}

	now := time.Now().UTC()
	cond := db.Session(&gorm.Session{NewDB: true})
	clause := cond.Where("1 = 0")
	applied := false

	if contains(s.Timelines, TimelinePast) {
		applied = true
		clause = clause.Or("occasion_dates.\"end\" < ?", now)
	}

	if contains(s.Timelines, TimelineNow) {
		applied = true
		clause = clause.Or("occasion_dates.start <= ? AND ? <= occasion_dates.\"end\"", now, now)
	}

	if contains(s.Timelines, TimelineFuture) {
		applied = true
		clause = clause.Or("? < occasion_dates.start", now)
	}

	if !applied {
		return nil
	}
	return clause
}

func (s State) availabilityConditions(db *gorm.DB) *gorm.DB {
	if len(s.Available) == 0 {
		return nil
	}

	// free spots per occasion, given the half-open spots range
	spots := "occasions.max_spots - 1 - (SELECT COUNT(*) FROM bookings " +
		"WHERE bookings.occasion_id = occasions.id AND bookings.state = 'accepted')"

	cond := db.Session(&gorm.Session{NewDB: true})
	clause := cond.Where("1 = 0")
	applied := false

	if contains(s.Available, AvailableNone) {
		applied = true
		clause = clause.Or(spots + " <= 0")
	}

	if contains(s.Available, AvailableFew) {
		applied = true
		clause = clause.Or(spots+" BETWEEN 1 AND ?", fewSpotsMax)
	}

	if contains(s.Available, AvailableMany) {
		applied = true
		clause = clause.Or(spots+" > ?", fewSpotsMax)
	}

	if !applied {
		return nil
	}
	return clause
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
