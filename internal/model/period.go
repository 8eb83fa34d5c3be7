package model

import "time"

// Phase is the derived lifecycle stage of a period.
type Phase string

const (
	PhaseInactive  Phase = "inactive"
	PhaseWishlist  Phase = "wishlist"
	PhaseBooking   Phase = "booking"
	PhasePayment   Phase = "payment"
	PhaseExecution Phase = "execution"
	PhaseArchive   Phase = "archive"
)

// Period is one wishlist/booking cycle. Only one period is active at
// a time; occasions take their effective active flag from it.
type Period struct {
	ID    uint   `gorm:"primaryKey"`
	Title string `gorm:"size:256;not null"`

	Active    bool `gorm:"not null;default:false"`
	Confirmed bool `gorm:"not null;default:false"`
	Finalized bool `gorm:"not null;default:false"`
	Archived  bool `gorm:"not null;default:false"`

	// Wishlist window during which bookings may be entered.
	PrebookingStart time.Time `gorm:"not null"`
	PrebookingEnd   time.Time `gorm:"not null"`

	// Earliest possible occasion start and latest possible end.
	ExecutionStart time.Time `gorm:"not null"`
	ExecutionEnd   time.Time `gorm:"not null"`

	// True if the period charges a flat booking cost instead of the
	// per-occasion cost, in which case the booking limit applies.
	AllInclusive bool `gorm:"not null;default:false"`
	BookingCost  float64

	MaxBookingsPerAttendee *int

	// Bookings close DeadlineDays before an occasion starts, or on
	// DeadlineDate if one is set (the date wins over the day count).
	DeadlineDays *int
	DeadlineDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Occasions []Occasion `gorm:"foreignKey:PeriodID"`
	Bookings  []Booking  `gorm:"foreignKey:PeriodID"`
}

// PhaseAt derives the lifecycle stage of the period at the given time.
func (p *Period) PhaseAt(now time.Time) Phase {
	if p.Archived {
		return PhaseArchive
	}

	if !p.Active || now.Before(p.PrebookingStart) {
		return PhaseInactive
	}

	if !p.Confirmed {
		return PhaseWishlist
	}

	if !p.Finalized {
		return PhaseBooking
	}

	if now.Before(p.ExecutionStart) {
		return PhasePayment
	}

	if !now.After(p.ExecutionEnd) {
		return PhaseExecution
	}

	return PhaseArchive
}

// Phase derives the lifecycle stage of the period right now.
func (p *Period) Phase() Phase {
	return p.PhaseAt(time.Now().UTC())
}

// WishlistOpenAt reports whether wishes may still be entered.
func (p *Period) WishlistOpenAt(now time.Time) bool {
	return p.PhaseAt(now) == PhaseWishlist && !now.After(p.PrebookingEnd)
}

// BookingDeadline returns the last moment a booking may be created
// for an occasion starting at the given time. The second return value
// is false if the period sets no deadline, or if the day-based
// deadline applies to an occasion without dates (zero start).
func (p *Period) BookingDeadline(occasionStart time.Time) (time.Time, bool) {
	if p.DeadlineDate != nil {
		return *p.DeadlineDate, true
	}

	if p.DeadlineDays != nil && !occasionStart.IsZero() {
		return occasionStart.AddDate(0, 0, -*p.DeadlineDays), true
	}

	return time.Time{}, false
}

// BookingLimit returns the number of accepted bookings an attendee
// without a personal limit may hold in this period. The second return
// value is false if the period does not limit bookings.
func (p *Period) BookingLimit() (int, bool) {
	if p.AllInclusive && p.MaxBookingsPerAttendee != nil {
		return *p.MaxBookingsPerAttendee, true
	}
	return 0, false
}
