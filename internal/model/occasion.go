package model

import (
	"time"

	"activity-booking-backend/internal/duration"
)

// Occasion is one bookable offering of an activity within exactly one
// period. Age and spots are stored as half-open ranges: the lower
// bound is inclusive, the upper bound exclusive, so the real capacity
// of an occasion is MaxSpots-1.
type Occasion struct {
	ID         uint `gorm:"primaryKey"`
	ActivityID uint `gorm:"index;not null"`
	PeriodID   uint `gorm:"index;not null"`

	MinAge   int `gorm:"not null;default:0"`
	MaxAge   int `gorm:"not null;default:0"`
	MinSpots int `gorm:"not null;default:0"`
	MaxSpots int `gorm:"not null;default:0"`

	Cost      float64
	Cancelled bool `gorm:"not null;default:false"`

	// Duration category of the occasion's dates, maintained by the
	// store whenever dates are added or removed.
	Duration duration.Days `gorm:"not null;default:0;index"`

	Location string `gorm:"size:256"`
	Note     string `gorm:"size:1024"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Activity Activity
	Period   Period
	Dates    []OccasionDate `gorm:"foreignKey:OccasionID;constraint:OnDelete:CASCADE"`
	Bookings []Booking      `gorm:"foreignKey:OccasionID"`
}

// AvailableSpots returns how many more bookings the occasion can
// accept, given the current number of accepted bookings. A cancelled
// occasion has no spots at all.
func (o *Occasion) AvailableSpots(accepted int) int {
	if o.Cancelled {
		return 0
	}

	if n := o.MaxSpots - 1 - accepted; n > 0 {
		return n
	}
	return 0
}

// Operable reports whether the occasion is going to run with the
// given number of accepted bookings.
func (o *Occasion) Operable(accepted int) bool {
	return accepted >= o.MinSpots && accepted < o.MaxSpots
}

// ContainsAge reports whether the given age falls into the occasion's
// age range.
func (o *Occasion) ContainsAge(age int) bool {
	return age >= o.MinAge && age < o.MaxAge
}

// Spans returns the localized time ranges of the occasion's dates,
// for duration classification.
func (o *Occasion) Spans() []duration.Span {
	spans := make([]duration.Span, 0, len(o.Dates))
	for i := range o.Dates {
		spans = append(spans, duration.Span{
			Start: o.Dates[i].LocalizedStart(),
			End:   o.Dates[i].LocalizedEnd(),
		})
	}
	return spans
}

// EarliestStart returns the start of the occasion's first date, used
// as tie breaker when ordering bookings. The zero time is returned
// for an occasion without dates.
func (o *Occasion) EarliestStart() time.Time {
	var earliest time.Time
	for i := range o.Dates {
		if earliest.IsZero() || o.Dates[i].Start.Before(earliest) {
			earliest = o.Dates[i].Start
		}
	}
	return earliest
}

// OverlapsDates reports whether any date of this occasion overlaps in
// time with any date of the other occasion.
func (o *Occasion) OverlapsDates(other *Occasion) bool {
	for i := range o.Dates {
		for j := range other.Dates {
			if o.Dates[i].Overlaps(&other.Dates[j]) {
				return true
			}
		}
	}
	return false
}

// OccasionDate is one concrete time range belonging to an occasion.
// Start and end are stored in UTC; Timezone names the local zone used
// for duration classification.
type OccasionDate struct {
	ID         uint      `gorm:"primaryKey"`
	OccasionID uint      `gorm:"index;not null"`
	Start      time.Time `gorm:"not null"`
	End        time.Time `gorm:"not null"`
	Timezone   string    `gorm:"size:64;not null"`

	// Weekday of the local start, denormalized for the weekday facet.
	Weekday int `gorm:"not null;default:0"`
}

// Overlaps reports whether the two dates overlap in time. The start
// is inclusive, the end exclusive, so back-to-back dates do not
// overlap.
func (d *OccasionDate) Overlaps(other *OccasionDate) bool {
	return d.Start.Before(other.End) && other.Start.Before(d.End)
}

// LocalizedStart returns the start in the date's local timezone.
func (d *OccasionDate) LocalizedStart() time.Time {
	return d.Start.In(d.location())
}

// LocalizedEnd returns the end in the date's local timezone.
func (d *OccasionDate) LocalizedEnd() time.Time {
	return d.End.In(d.location())
}

func (d *OccasionDate) location() *time.Location {
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
