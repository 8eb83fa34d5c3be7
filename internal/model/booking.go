package model

import (
	"time"

	"gorm.io/gorm"
)

// BookingState is the lifecycle state of a booking.
type BookingState string

const (
	// BookingOpen is the initial state of every booking.
	BookingOpen BookingState = "open"

	// BookingBlocked marks a booking that is temporarily
	// un-acceptable due to a live conflict or the booking limit. It
	// is system-managed and re-evaluated when bookings elsewhere are
	// cancelled.
	BookingBlocked BookingState = "blocked"

	// BookingAccepted marks a booking with a reserved spot.
	BookingAccepted BookingState = "accepted"

	// BookingDenied marks a booking permanently rejected by a
	// confirm or accept decision. Only an explicit new accept can
	// resurrect it.
	BookingDenied BookingState = "denied"

	// BookingCancelled is terminal.
	BookingCancelled BookingState = "cancelled"
)

// Booking is an attendee's request for one occasion. Its period id
// mirrors the occasion's and is rewritten by the store when an
// occasion moves to another period.
type Booking struct {
	ID         uint `gorm:"primaryKey"`
	AttendeeID uint `gorm:"index;not null;uniqueIndex:idx_attendee_occasion"`
	OccasionID uint `gorm:"index;not null;uniqueIndex:idx_attendee_occasion"`
	PeriodID   uint `gorm:"index;not null"`

	// The login user that created the booking.
	Username string `gorm:"size:128;not null;index"`

	State BookingState `gorm:"size:16;not null;default:open"`

	// Priority is derived from the starred/nobbled flags and kept in
	// sync on every save.
	Priority int  `gorm:"not null;default:0"`
	Starred  bool `gorm:"not null;default:false"`
	Nobbled  bool `gorm:"not null;default:false"`

	// Copied over permanently when the period is confirmed.
	Cost float64

	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Attendee Attendee
	Occasion Occasion
	Period   Period
}

// BeforeSave keeps the priority in sync with the starred/nobbled
// flags.
func (b *Booking) BeforeSave(tx *gorm.DB) error {
	b.Priority = 0
	if b.Starred {
		b.Priority += 1
	}
	if b.Nobbled {
		b.Priority += 2
	}
	return nil
}

// Weight is the priority weight used by the happiness metric and the
// confirm-time ordering.
func (b *Booking) Weight() int {
	return b.Priority + 1
}
