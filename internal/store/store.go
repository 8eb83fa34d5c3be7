package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"activity-booking-backend/internal/duration"
	"activity-booking-backend/internal/model"
)

var (
	// ErrReferentialIntegrity rejects deleting an occasion or
	// activity that still owns bookings.
	ErrReferentialIntegrity = errors.New("record still owns bookings")

	// ErrDateOverlap rejects an occasion date overlapping another
	// date of the same occasion.
	ErrDateOverlap = errors.New("occasion dates may not overlap")

	// ErrDeadlinePassed rejects creating a booking after the
	// period's booking deadline.
	ErrDeadlinePassed = errors.New("booking deadline has passed")
)

// OccasionParams describes a new occasion. Age and spots are given as
// inclusive min/max pairs and stored as half-open ranges.
type OccasionParams struct {
	ActivityID uint
	PeriodID   uint
	Age        [2]int
	Spots      [2]int
	Cost       float64
	Location   string
	Note       string
}

// Store defines the interface for all database operations outside the
// matching engine.
type Store interface {
	DB() *gorm.DB

	AddPeriod(ctx context.Context, period *model.Period) error
	ActivatePeriod(ctx context.Context, periodID uint) error
	FinalizePeriod(ctx context.Context, periodID uint) error

	AddActivity(ctx context.Context, title, username string, tags ...string) (*model.Activity, error)
	DeleteActivity(ctx context.Context, activityID uint) error

	AddOccasion(ctx context.Context, params OccasionParams) (*model.Occasion, error)
	DeleteOccasion(ctx context.Context, occasionID uint) error
	ReassignOccasion(ctx context.Context, occasionID, periodID uint) error
	AddOccasionDate(ctx context.Context, occasionID uint, start, end time.Time, timezone string) (*model.OccasionDate, error)
	DeleteOccasionDate(ctx context.Context, dateID uint) error

	AddAttendee(ctx context.Context, attendee *model.Attendee) error
	DeleteAttendee(ctx context.Context, attendeeID uint) error

	AddBooking(ctx context.Context, username string, attendeeID, occasionID uint, priority int) (*model.Booking, error)
	SetBookingFlags(ctx context.Context, bookingID uint, starred, nobbled bool) error

	AvailableSpots(ctx context.Context, occasionID uint) (int, error)
	Operable(ctx context.Context, occasionID uint) (bool, error)
	Happiness(ctx context.Context, attendeeID, periodID uint) (float64, bool, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) AddPeriod(ctx context.Context, period *model.Period) error {
	return s.db.WithContext(ctx).Create(period).Error
}

// ActivatePeriod activates the given period and makes sure no other
// period stays active.
func (s *gormStore) ActivatePeriod(ctx context.Context, periodID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.Period{}).
			Where("active = ? AND id <> ?", true, periodID).
			Update("active", false).Error
		if err != nil {
			return err
		}

		return tx.Model(&model.Period{}).
			Where("id = ?", periodID).
			Update("active", true).Error
	})
}

func (s *gormStore) FinalizePeriod(ctx context.Context, periodID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var period model.Period
		if err := tx.First(&period, periodID).Error; err != nil {
			return err
		}

		if !period.Confirmed {
			return fmt.Errorf("finalize period %d before confirming it", period.ID)
		}

		return tx.Model(&period).Update("finalized", true).Error
	})
}

func (s *gormStore) AddActivity(ctx context.Context, title, username string, tags ...string) (*model.Activity, error) {
	activity := model.Activity{
		Title:    title,
		Username: username,
		State:    model.ActivityPreview,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range tags {
			var tag model.Tag
			err := tx.Where(model.Tag{Name: name}).FirstOrCreate(&tag).Error
			if err != nil {
				return err
			}
			activity.Tags = append(activity.Tags, tag)
		}

		return tx.Create(&activity).Error
	})
	if err != nil {
		return nil, fmt.Errorf("add activity %q: %w", title, err)
	}

	return &activity, nil
}

// DeleteActivity removes an activity and its occasions. It fails as
// long as any owned occasion still has bookings.
func (s *gormStore) DeleteActivity(ctx context.Context, activityID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bookings int64
		err := tx.Model(&model.Booking{}).
			Joins("JOIN occasions ON occasions.id = bookings.occasion_id").
			Where("occasions.activity_id = ?", activityID).
			Count(&bookings).Error
		if err != nil {
			return err
		}

		if bookings > 0 {
			return fmt.Errorf("delete activity %d: %w", activityID, ErrReferentialIntegrity)
		}

		err = tx.Where(
			"occasion_id IN (?)",
			tx.Model(&model.Occasion{}).Select("id").Where("activity_id = ?", activityID),
		).Delete(&model.OccasionDate{}).Error
		if err != nil {
			return err
		}

		if err := tx.Where("activity_id = ?", activityID).Delete(&model.Occasion{}).Error; err != nil {
			return err
		}

		return tx.Delete(&model.Activity{}, activityID).Error
	})
}

func (s *gormStore) AddOccasion(ctx context.Context, params OccasionParams) (*model.Occasion, error) {
	// coerce the inclusive pairs into half-open ranges
	occasion := model.Occasion{
		ActivityID: params.ActivityID,
		PeriodID:   params.PeriodID,
		MinAge:     params.Age[0],
		MaxAge:     params.Age[1] + 1,
		MinSpots:   params.Spots[0],
		MaxSpots:   params.Spots[1] + 1,
		Cost:       params.Cost,
		Location:   params.Location,
		Note:       params.Note,
	}

	if err := s.db.WithContext(ctx).Create(&occasion).Error; err != nil {
		return nil, fmt.Errorf("add occasion: %w", err)
	}
	return &occasion, nil
}

// DeleteOccasion removes an occasion and its dates. It fails as long
// as the occasion still has bookings.
func (s *gormStore) DeleteOccasion(ctx context.Context, occasionID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var occasion model.Occasion
		if err := tx.First(&occasion, occasionID).Error; err != nil {
			return err
		}

		var bookings int64
		err := tx.Model(&model.Booking{}).
			Where("occasion_id = ?", occasionID).
			Count(&bookings).Error
		if err != nil {
			return err
		}

		if bookings > 0 {
			return fmt.Errorf("delete occasion %d: %w", occasionID, ErrReferentialIntegrity)
		}

		if err := tx.Where("occasion_id = ?", occasionID).Delete(&model.OccasionDate{}).Error; err != nil {
			return err
		}

		if err := tx.Delete(&model.Occasion{}, occasionID).Error; err != nil {
			return err
		}

		return refreshActivityDurations(tx, occasion.ActivityID)
	})
}

// ReassignOccasion moves an occasion into another period and rewrites
// the period id of its bookings within the same transaction.
func (s *gormStore) ReassignOccasion(ctx context.Context, occasionID, periodID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var period model.Period
		if err := tx.First(&period, periodID).Error; err != nil {
			return err
		}

		err := tx.Model(&model.Occasion{}).
			Where("id = ?", occasionID).
			Update("period_id", period.ID).Error
		if err != nil {
			return err
		}

		return tx.Model(&model.Booking{}).
			Where("occasion_id = ?", occasionID).
			Update("period_id", period.ID).Error
	})
}

// AddOccasionDate appends a time range to an occasion and updates the
// duration bookkeeping. Dates of the same occasion must not overlap.
func (s *gormStore) AddOccasionDate(ctx context.Context, occasionID uint, start, end time.Time, timezone string) (*model.OccasionDate, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("occasion date must start before it ends")
	}

	date := model.OccasionDate{
		OccasionID: occasionID,
		Start:      start.UTC(),
		End:        end.UTC(),
		Timezone:   timezone,
	}
	date.Weekday = int(date.LocalizedStart().Weekday())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []model.OccasionDate
		if err := tx.Where("occasion_id = ?", occasionID).Find(&existing).Error; err != nil {
			return err
		}

		for i := range existing {
			if date.Overlaps(&existing[i]) {
				return fmt.Errorf("occasion %d: %w", occasionID, ErrDateOverlap)
			}
		}

		if err := tx.Create(&date).Error; err != nil {
			return err
		}

		return refreshDurations(tx, occasionID)
	})
	if err != nil {
		return nil, err
	}

	return &date, nil
}

// DeleteOccasionDate removes one time range. Deleting the last date
// clears the occasion's date footprint, not the occasion itself.
func (s *gormStore) DeleteOccasionDate(ctx context.Context, dateID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var date model.OccasionDate
		if err := tx.First(&date, dateID).Error; err != nil {
			return err
		}

		if err := tx.Delete(&model.OccasionDate{}, dateID).Error; err != nil {
			return err
		}

		return refreshDurations(tx, date.OccasionID)
	})
}

func (s *gormStore) AddAttendee(ctx context.Context, attendee *model.Attendee) error {
	return s.db.WithContext(ctx).Create(attendee).Error
}

// DeleteAttendee removes an attendee together with their bookings.
func (s *gormStore) DeleteAttendee(ctx context.Context, attendeeID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("attendee_id = ?", attendeeID).Delete(&model.Booking{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Attendee{}, attendeeID).Error
	})
}

// AddBooking creates an open booking for the given attendee and
// occasion. The priority encodes the starred (bit 0) and nobbled
// (bit 1) flags.
func (s *gormStore) AddBooking(ctx context.Context, username string, attendeeID, occasionID uint, priority int) (*model.Booking, error) {
	var booking *model.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var occasion model.Occasion
		err := tx.Preload("Dates").Preload("Period").First(&occasion, occasionID).Error
		if err != nil {
			return err
		}

		deadline, ok := occasion.Period.BookingDeadline(occasion.EarliestStart())
		if ok && time.Now().UTC().After(deadline) {
			return fmt.Errorf("occasion %d: %w", occasionID, ErrDeadlinePassed)
		}

		booking = &model.Booking{
			AttendeeID: attendeeID,
			OccasionID: occasionID,
			PeriodID:   occasion.PeriodID,
			Username:   username,
			State:      model.BookingOpen,
			Starred:    priority&1 != 0,
			Nobbled:    priority&2 != 0,
		}

		return tx.Create(booking).Error
	})
	if err != nil {
		return nil, err
	}

	return booking, nil
}

func (s *gormStore) SetBookingFlags(ctx context.Context, bookingID uint, starred, nobbled bool) error {
	var booking model.Booking
	if err := s.db.WithContext(ctx).First(&booking, bookingID).Error; err != nil {
		return err
	}

	booking.Starred = starred
	booking.Nobbled = nobbled

	// Save runs the hook that recomputes the priority.
	return s.db.WithContext(ctx).
		Model(&booking).
		Select("starred", "nobbled", "priority").
		Updates(&booking).Error
}

func (s *gormStore) AvailableSpots(ctx context.Context, occasionID uint) (int, error) {
	db := s.db.WithContext(ctx)

	var occasion model.Occasion
	if err := db.First(&occasion, occasionID).Error; err != nil {
		return 0, err
	}

	accepted, err := acceptedCount(db, occasionID)
	if err != nil {
		return 0, err
	}

	return occasion.AvailableSpots(accepted), nil
}

func (s *gormStore) Operable(ctx context.Context, occasionID uint) (bool, error) {
	db := s.db.WithContext(ctx)

	var occasion model.Occasion
	if err := db.First(&occasion, occasionID).Error; err != nil {
		return false, err
	}

	accepted, err := acceptedCount(db, occasionID)
	if err != nil {
		return false, err
	}

	return occasion.Operable(accepted), nil
}

// Happiness computes the priority-weighted fraction of the attendee's
// wishlist that ended up accepted. The second return value is false
// if the attendee has no bookings in the period.
func (s *gormStore) Happiness(ctx context.Context, attendeeID, periodID uint) (float64, bool, error) {
	var bookings []model.Booking
	err := s.db.WithContext(ctx).
		Where("attendee_id = ? AND period_id = ?", attendeeID, periodID).
		Find(&bookings).Error
	if err != nil {
		return 0, false, err
	}

	var gained, wished int
	for i := range bookings {
		b := &bookings[i]
		if b.State == model.BookingCancelled {
			continue
		}

		wished += b.Weight()
		if b.State == model.BookingAccepted {
			gained += b.Weight()
		}
	}

	if wished == 0 {
		return 0, false, nil
	}

	return float64(gained) / float64(wished), true, nil
}

func acceptedCount(db *gorm.DB, occasionID uint) (int, error) {
	var n int64
	err := db.Model(&model.Booking{}).
		Where("occasion_id = ? AND state = ?", occasionID, model.BookingAccepted).
		Count(&n).Error
	return int(n), err
}

// refreshDurations recomputes the duration category of the occasion
// and the aggregated flags of its activity.
func refreshDurations(tx *gorm.DB, occasionID uint) error {
	var occasion model.Occasion
	if err := tx.Preload("Dates").First(&occasion, occasionID).Error; err != nil {
		return err
	}

	category := duration.Classify(occasion.Spans())
	err := tx.Model(&model.Occasion{}).
		Where("id = ?", occasionID).
		Update("duration", category).Error
	if err != nil {
		return err
	}

	return refreshActivityDurations(tx, occasion.ActivityID)
}

func refreshActivityDurations(tx *gorm.DB, activityID uint) error {
	var categories []duration.Days
	err := tx.Model(&model.Occasion{}).
		Where("activity_id = ?", activityID).
		Pluck("duration", &categories).Error
	if err != nil {
		return err
	}

	return tx.Model(&model.Activity{}).
		Where("id = ?", activityID).
		Update("durations", duration.Aggregate(categories...)).Error
}
