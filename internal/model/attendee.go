package model

import "time"

// Attendee is a person eligible to book occasions, linked to the
// login user that manages them.
type Attendee struct {
	ID       uint   `gorm:"primaryKey"`
	Username string `gorm:"size:128;not null;index"`
	Name     string `gorm:"size:256;not null"`

	BirthDate time.Time `gorm:"not null"`
	Gender    string    `gorm:"size:16"`

	// Overrides the period's booking limit when set.
	Limit *int

	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Bookings []Booking `gorm:"foreignKey:AttendeeID;constraint:OnDelete:CASCADE"`
}

// AgeOn returns the attendee's age in years at the given time.
func (a *Attendee) AgeOn(t time.Time) int {
	years := t.Year() - a.BirthDate.Year()
	if t.YearDay() < a.BirthDate.YearDay() {
		years--
	}
	return years
}

// BookingLimit returns the booking limit that applies to this
// attendee in the given period. The personal limit wins over the
// period default; the second return value is false if neither limits.
func (a *Attendee) BookingLimit(p *Period) (int, bool) {
	if a.Limit != nil {
		return *a.Limit, true
	}
	return p.BookingLimit()
}
