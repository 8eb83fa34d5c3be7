// Package matching assigns attendees to occasions.
//
// Every accept or cancel can ripple through an attendee's entire
// wishlist: accepting a booking blocks the wishes it now conflicts
// with, cancelling one promotes the best blocked wish that fits
// again. The engine must never leave two conflicting bookings both
// accepted, nor overbook an occasion.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"activity-booking-backend/internal/model"
)

// Dispatcher receives the ids of bookings that were promoted from
// blocked to accepted, after the surrounding transaction committed.
type Dispatcher interface {
	Dispatch(bookingID uint)
}

// Engine runs the matching inside request-scoped transactions.
type Engine struct {
	db         *gorm.DB
	dispatcher Dispatcher
}

// NewEngine creates a matching engine. The dispatcher may be nil.
func NewEngine(db *gorm.DB, dispatcher Dispatcher) *Engine {
	return &Engine{db: db, dispatcher: dispatcher}
}

// AcceptBooking reserves a spot for the given booking and blocks the
// attendee's other wishes that are no longer acceptable.
func (e *Engine) AcceptBooking(ctx context.Context, bookingID uint) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := loadBooking(tx, bookingID)
		if err != nil {
			return err
		}

		if !b.Period.Confirmed {
			return fmt.Errorf("accept booking %d: %w", b.ID, ErrPeriodNotConfirmed)
		}

		if b.State != model.BookingOpen && b.State != model.BookingDenied {
			return fmt.Errorf(
				"accept booking %d in state %q: %w",
				b.ID, b.State, ErrInvalidBookingState,
			)
		}

		if err := lockAttendee(tx, b.AttendeeID); err != nil {
			return err
		}

		return acceptLocked(tx, b)
	})
}

// CancelBooking cancels the given booking and promotes the highest
// priority blocked bookings of the same attendee that fit again.
func (e *Engine) CancelBooking(ctx context.Context, bookingID uint) error {
	var promoted []uint

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := loadBooking(tx, bookingID)
		if err != nil {
			return err
		}

		if !b.Period.Confirmed {
			return fmt.Errorf("cancel booking %d: %w", b.ID, ErrPeriodNotConfirmed)
		}

		if b.State == model.BookingCancelled {
			return fmt.Errorf(
				"cancel booking %d twice: %w", b.ID, ErrInvalidBookingState,
			)
		}

		if err := lockAttendee(tx, b.AttendeeID); err != nil {
			return err
		}

		if err := setState(tx, b, model.BookingCancelled); err != nil {
			return err
		}

		promoted, err = promoteBlocked(tx, b.AttendeeID, b.PeriodID)
		return err
	})
	if err != nil {
		return err
	}

	// Notify only after the transaction committed.
	if e.dispatcher != nil {
		for _, id := range promoted {
			e.dispatcher.Dispatch(id)
		}
	}
	return nil
}

// ConfirmPeriod freezes the wishlist and matches all outstanding
// bookings: attendee by attendee, open bookings are accepted greedily
// in descending priority order while capacity, conflicts and the
// booking limit allow, and the remainder is denied. Booking costs are
// copied over permanently.
func (e *Engine) ConfirmPeriod(ctx context.Context, periodID uint) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var period model.Period
		if err := forUpdate(tx).First(&period, periodID).Error; err != nil {
			return err
		}

		if period.Confirmed {
			return fmt.Errorf(
				"period %d is already confirmed: %w",
				period.ID, ErrPeriodNotConfirmable,
			)
		}

		if time.Now().UTC().Before(period.PrebookingEnd) {
			return fmt.Errorf(
				"wishlist of period %d is still open: %w",
				period.ID, ErrPeriodNotConfirmable,
			)
		}

		period.Confirmed = true
		if err := tx.Model(&period).Update("confirmed", true).Error; err != nil {
			return err
		}

		var bookings []model.Booking
		err := tx.
			Preload("Occasion.Dates").
			Preload("Attendee").
			Where("period_id = ?", period.ID).
			Order("attendee_id").
			Find(&bookings).Error
		if err != nil {
			return err
		}

		// The booking costs are copied over permanently so they can't
		// change anymore once the period is confirmed.
		for i := range bookings {
			b := &bookings[i]

			cost := b.Occasion.Cost
			if period.AllInclusive {
				cost = period.BookingCost
			}

			if err := tx.Model(b).Update("cost", cost).Error; err != nil {
				return err
			}
		}

		groups := groupByAttendee(bookings)
		attendeeIDs := make([]uint, 0, len(groups))
		for id := range groups {
			attendeeIDs = append(attendeeIDs, id)
		}
		sort.Slice(attendeeIDs, func(i, j int) bool { return attendeeIDs[i] < attendeeIDs[j] })

		for _, id := range attendeeIDs {
			group := groups[id]
			open := make([]*model.Booking, 0, len(group))
			for _, b := range group {
				if b.State == model.BookingOpen {
					b.Period = period
					open = append(open, b)
				}
			}
			sortCandidates(open)

			for _, b := range open {
				err := checkAcceptable(tx, b)
				switch {
				case err == nil:
					if err := setState(tx, b, model.BookingAccepted); err != nil {
						return err
					}
				case isPrecondition(err):
					if err := setState(tx, b, model.BookingDenied); err != nil {
						return err
					}
				default:
					return err
				}
			}
		}

		return nil
	})
}

// ArchivePeriod ends the period's life. Accepted activities whose
// occasions all belong to this or older periods are archived along
// with it, as are accepted activities without any occasion.
func (e *Engine) ArchivePeriod(ctx context.Context, periodID uint) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var period model.Period
		if err := forUpdate(tx).First(&period, periodID).Error; err != nil {
			return err
		}

		if !period.Confirmed || !period.Finalized {
			return fmt.Errorf(
				"archive period %d: %w", period.ID, ErrPeriodNotFinalized,
			)
		}

		updates := map[string]any{"archived": true, "active": false}
		if err := tx.Model(&period).Updates(updates).Error; err != nil {
			return err
		}

		// Activities with an occasion in a strictly later, non-archived
		// period survive the archival.
		var surviving []uint
		err := tx.Model(&model.Occasion{}).
			Joins("JOIN periods ON periods.id = occasions.period_id").
			Where("periods.archived = ?", false).
			Where("periods.execution_start > ?", period.ExecutionStart).
			Distinct().
			Pluck("occasions.activity_id", &surviving).Error
		if err != nil {
			return err
		}

		var offered []uint
		err = tx.Model(&model.Occasion{}).
			Where("period_id = ?", period.ID).
			Distinct().
			Pluck("activity_id", &offered).Error
		if err != nil {
			return err
		}

		if len(offered) > 0 {
			q := tx.Model(&model.Activity{}).
				Where("id IN ?", offered).
				Where("state = ?", model.ActivityAccepted)
			if len(surviving) > 0 {
				q = q.Where("id NOT IN ?", surviving)
			}
			if err := q.Update("state", model.ActivityArchived).Error; err != nil {
				return err
			}
		}

		// Also archive accepted activities that never got an occasion.
		err = tx.Model(&model.Activity{}).
			Where("state = ?", model.ActivityAccepted).
			Where("NOT EXISTS (SELECT 1 FROM occasions WHERE occasions.activity_id = activities.id)").
			Update("state", model.ActivityArchived).Error
		return err
	})
}

// acceptLocked performs the capacity, conflict and limit checks,
// accepts the booking and blocks the attendee's wishes that are no
// longer acceptable. The attendee row must already be locked.
func acceptLocked(tx *gorm.DB, b *model.Booking) error {
	if err := lockOccasion(tx, b.OccasionID); err != nil {
		return err
	}

	if err := checkAcceptable(tx, b); err != nil {
		return err
	}

	if err := setState(tx, b, model.BookingAccepted); err != nil {
		return err
	}

	return blockUnacceptable(tx, b)
}

// checkAcceptable runs the capacity, conflict and limit checks for
// the given booking without changing any state.
func checkAcceptable(tx *gorm.DB, b *model.Booking) error {
	accepted, err := acceptedCount(tx, b.OccasionID)
	if err != nil {
		return err
	}

	if b.Occasion.AvailableSpots(accepted) <= 0 {
		return fmt.Errorf("occasion %d: %w", b.OccasionID, ErrOccasionFull)
	}

	siblings, err := siblingBookings(tx, b)
	if err != nil {
		return err
	}

	var acceptedSiblings int
	for i := range siblings {
		s := &siblings[i]
		if s.State != model.BookingAccepted {
			continue
		}

		acceptedSiblings++
		if b.Occasion.OverlapsDates(&s.Occasion) {
			return fmt.Errorf(
				"booking %d overlaps booking %d: %w",
				b.ID, s.ID, ErrSchedulingConflict,
			)
		}
	}

	if limit, ok := b.Attendee.BookingLimit(&b.Period); ok && acceptedSiblings >= limit {
		return fmt.Errorf(
			"attendee %d already holds %d bookings: %w",
			b.AttendeeID, acceptedSiblings, ErrBookingLimitReached,
		)
	}

	return nil
}

// blockUnacceptable moves the attendee's open and denied bookings
// that now conflict with b, or that can no longer fit into the
// booking limit, into the blocked state.
func blockUnacceptable(tx *gorm.DB, b *model.Booking) error {
	siblings, err := siblingBookings(tx, b)
	if err != nil {
		return err
	}

	var acceptedTotal int
	for i := range siblings {
		if siblings[i].State == model.BookingAccepted {
			acceptedTotal++
		}
	}
	acceptedTotal++ // b itself

	limit, limited := b.Attendee.BookingLimit(&b.Period)

	for i := range siblings {
		s := &siblings[i]
		if s.State != model.BookingOpen && s.State != model.BookingDenied {
			continue
		}

		if b.Occasion.OverlapsDates(&s.Occasion) || (limited && acceptedTotal >= limit) {
			if err := setState(tx, s, model.BookingBlocked); err != nil {
				return err
			}
		}
	}

	return nil
}

// promoteBlocked re-evaluates the attendee's blocked bookings, best
// candidate first, until no further promotion is possible. A blocked
// booking whose occasion filled up in the meantime is denied; one
// still conflicting or over the limit stays blocked. Each candidate
// goes through acceptLocked, so its occasion row is locked before the
// capacity is read, the same as on the direct accept path.
func promoteBlocked(tx *gorm.DB, attendeeID, periodID uint) ([]uint, error) {
	var promoted []uint

	for {
		var blocked []model.Booking
		err := tx.
			Preload("Occasion.Dates").
			Preload("Attendee").
			Preload("Period").
			Where("attendee_id = ? AND period_id = ? AND state = ?",
				attendeeID, periodID, model.BookingBlocked).
			Find(&blocked).Error
		if err != nil {
			return nil, err
		}

		candidates := make([]*model.Booking, 0, len(blocked))
		for i := range blocked {
			candidates = append(candidates, &blocked[i])
		}
		sortCandidates(candidates)

		progressed := false
		for _, c := range candidates {
			err := acceptLocked(tx, c)
			switch {
			case err == nil:
				promoted = append(promoted, c.ID)
				progressed = true

			case errors.Is(err, ErrOccasionFull):
				if err := setState(tx, c, model.BookingDenied); err != nil {
					return nil, err
				}
				progressed = true

			case errors.Is(err, ErrSchedulingConflict),
				errors.Is(err, ErrBookingLimitReached):
				// stays blocked, try the next candidate

			default:
				return nil, err
			}

			// the candidate set has changed, start over
			if progressed {
				break
			}
		}

		if !progressed {
			return promoted, nil
		}
	}
}

// sortCandidates orders bookings by descending priority, ties broken
// by the earliest occasion start.
func sortCandidates(bookings []*model.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].Priority != bookings[j].Priority {
			return bookings[i].Priority > bookings[j].Priority
		}
		return bookings[i].Occasion.EarliestStart().
			Before(bookings[j].Occasion.EarliestStart())
	})
}

func groupByAttendee(bookings []model.Booking) map[uint][]*model.Booking {
	groups := make(map[uint][]*model.Booking)
	for i := range bookings {
		b := &bookings[i]
		groups[b.AttendeeID] = append(groups[b.AttendeeID], b)
	}
	return groups
}

func loadBooking(tx *gorm.DB, id uint) (*model.Booking, error) {
	var b model.Booking
	err := tx.
		Preload("Occasion.Dates").
		Preload("Attendee").
		Preload("Period").
		First(&b, id).Error
	if err != nil {
		return nil, fmt.Errorf("load booking %d: %w", id, err)
	}
	return &b, nil
}

func siblingBookings(tx *gorm.DB, b *model.Booking) ([]model.Booking, error) {
	var siblings []model.Booking
	err := tx.
		Preload("Occasion.Dates").
		Where("attendee_id = ? AND period_id = ? AND id <> ?",
			b.AttendeeID, b.PeriodID, b.ID).
		Find(&siblings).Error
	return siblings, err
}

func acceptedCount(tx *gorm.DB, occasionID uint) (int, error) {
	var n int64
	err := tx.Model(&model.Booking{}).
		Where("occasion_id = ? AND state = ?", occasionID, model.BookingAccepted).
		Count(&n).Error
	return int(n), err
}

func setState(tx *gorm.DB, b *model.Booking, state model.BookingState) error {
	b.State = state
	return tx.Model(&model.Booking{}).
		Where("id = ?", b.ID).
		Update("state", state).Error
}

// isPrecondition reports whether the error is one of the rejected
// business preconditions, as opposed to a database failure.
func isPrecondition(err error) bool {
	return errors.Is(err, ErrOccasionFull) ||
		errors.Is(err, ErrSchedulingConflict) ||
		errors.Is(err, ErrBookingLimitReached)
}

// forUpdate adds a row lock on dialects that support it. The capacity
// and conflict checks are read-then-write and must be atomic with the
// state write; SQLite serializes writers on its own.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func lockAttendee(tx *gorm.DB, id uint) error {
	var a model.Attendee
	return forUpdate(tx).First(&a, id).Error
}

func lockOccasion(tx *gorm.DB, id uint) error {
	var o model.Occasion
	return forUpdate(tx).First(&o, id).Error
}
