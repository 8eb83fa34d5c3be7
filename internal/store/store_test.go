package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"activity-booking-backend/internal/db"
	"activity-booking-backend/internal/duration"
	"activity-booking-backend/internal/model"
)

func setupStore(t *testing.T) (Store, *gorm.DB) {
	t.Helper()

	testDB, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to the in-memory database: %v", err)
	}
	sqlDB, _ := testDB.DB()
	t.Cleanup(func() { sqlDB.Close() })

	assert.NoError(t, db.Migrate(testDB))
	return NewGormStore(testDB), testDB
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()

	parsed, err := time.Parse("2006-01-02 15:04", value)
	assert.NoError(t, err)
	return parsed
}

func seedPeriod(t *testing.T, s Store) *model.Period {
	t.Helper()

	period := model.Period{
		Title:           "Summer 2024",
		PrebookingStart: mustTime(t, "2024-03-01 00:00"),
		PrebookingEnd:   mustTime(t, "2024-04-01 00:00"),
		ExecutionStart:  mustTime(t, "2024-07-01 00:00"),
		ExecutionEnd:    mustTime(t, "2024-08-01 00:00"),
	}
	assert.NoError(t, s.AddPeriod(context.Background(), &period))
	return &period
}

func seedOccasion(t *testing.T, s Store, activityID, periodID uint) *model.Occasion {
	t.Helper()

	occasion, err := s.AddOccasion(context.Background(), OccasionParams{
		ActivityID: activityID,
		PeriodID:   periodID,
		Age:        [2]int{6, 10},
		Spots:      [2]int{2, 10},
		Cost:       25,
	})
	assert.NoError(t, err)
	return occasion
}

func TestActivatePeriod(t *testing.T) {
	s, testDB := setupStore(t)
	ctx := context.Background()

	first := seedPeriod(t, s)
	second := seedPeriod(t, s)

	assert.NoError(t, s.ActivatePeriod(ctx, first.ID))
	assert.NoError(t, s.ActivatePeriod(ctx, second.ID))

	var active []model.Period
	assert.NoError(t, testDB.Where("active = ?", true).Find(&active).Error)
	if assert.Len(t, active, 1, "only one period may be active") {
		assert.Equal(t, second.ID, active[0].ID)
	}
}

func TestFinalizePeriod(t *testing.T) {
	s, testDB := setupStore(t)
	ctx := context.Background()

	period := seedPeriod(t, s)

	assert.Error(t, s.FinalizePeriod(ctx, period.ID), "unconfirmed periods cannot be finalized")

	assert.NoError(t, testDB.Model(period).Update("confirmed", true).Error)
	assert.NoError(t, s.FinalizePeriod(ctx, period.ID))

	var got model.Period
	assert.NoError(t, testDB.First(&got, period.ID).Error)
	assert.True(t, got.Finalized)
}

func TestAddActivity(t *testing.T) {
	s, testDB := setupStore(t)
	ctx := context.Background()

	first, err := s.AddActivity(ctx, "Pottery", "organizer@example.org", "crafts", "indoor")
	assert.NoError(t, err)
	assert.Equal(t, model.ActivityPreview, first.State)
	assert.Len(t, first.Tags, 2)

	// a second activity reuses the existing tag rows
	second, err := s.AddActivity(ctx, "Painting", "organizer@example.org", "crafts")
	assert.NoError(t, err)
	assert.Len(t, second.Tags, 1)

	var tagCount int64
	assert.NoError(t, testDB.Model(&model.Tag{}).Count(&tagCount).Error)
	assert.Equal(t, int64(2), tagCount)
}

func TestAddOccasionStoresHalfOpenRanges(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	period := seedPeriod(t, s)
	activity, err := s.AddActivity(ctx, "Pottery", "organizer@example.org")
	assert.NoError(t, err)

	occasion := seedOccasion(t, s, activity.ID, period.ID)

	// inclusive 6-10 and 2-10 become half-open upper bounds
	assert.Equal(t, 6, occasion.MinAge)
	assert.Equal(t, 11, occasion.MaxAge)
	assert.Equal(t, 2, occasion.MinSpots)
	assert.Equal(t, 11, occasion.MaxSpots)

	assert.True(t, occasion.ContainsAge(10))
	assert.False(t, occasion.ContainsAge(11))
}

func TestOccasionDates(t *testing.T) {
	ctx := context.Background()

	t.Run("dates must not overlap", func(t *testing.T) {
		s, _ := setupStore(t)
		period := seedPeriod(t, s)
		activity, err := s.AddActivity(ctx, "Pottery", "organizer@example.org")
		assert.NoError(t, err)
		occasion := seedOccasion(t, s, activity.ID, period.ID)

		_, err = s.AddOccasionDate(ctx, occasion.ID,
			mustTime(t, "2024-07-01 10:00"), mustTime(t, "2024-07-01 12:00"), "UTC")
		assert.NoError(t, err)

		_, err = s.AddOccasionDate(ctx, occasion.ID,
			mustTime(t, "2024-07-01 11:00"), mustTime(t, "2024-07-01 13:00"), "UTC")
		assert.ErrorIs(t, err, ErrDateOverlap)

		// back-to-back is fine
		_, err = s.AddOccasionDate(ctx, occasion.ID,
			mustTime(t, "2024-07-01 12:00"), mustTime(t, "2024-07-01 14:00"), "UTC")
		assert.NoError(t, err)
	})

	t.Run("a date must start before it ends", func(t *testing.T) {
		s, _ := setupStore(t)
		period := seedPeriod(t, s)
		activity, err := s.AddActivity(ctx, "Pottery", "organizer@example.org")
		assert.NoError(t, err)
		occasion := seedOccasion(t, s, activity.ID, period.ID)

		_, err = s.AddOccasionDate(ctx, occasion.ID,
			mustTime(t, "2024-07-01 12:00"), mustTime(t, "2024-07-01 10:00"), "UTC")
		assert.Error(t, err)
	})

	t.Run("the weekday is derived from the local start", func(t *testing.T) {
		s, _ := setupStore(t)
		period := seedPeriod(t, s)
		activity, err := s.AddActivity(ctx, "Pottery", "organizer@example.org")
		assert.NoError(t, err)
		occasion := seedOccasion(t, s, activity.ID, period.ID)

		// 2024-07-01 is a Monday
		date, err := s.AddOccasionDate(ctx, occasion.ID,
			mustTime(t, "2024-07-01 10:00"), mustTime(t, "2024-07-01 12:00"), "UTC")
		assert.NoError(t, err)
		assert.Equal(t, int(time.Monday), date.Weekday)
	})
}

func TestDurationBookkeeping(t *testing.T) {
	s, testDB := setupStore(t)
	ctx := context.Background()

	period := seedPeriod(t, s)
	activity, err := s.AddActivity(ctx, "Pottery", "organizer@example.org")
	assert.NoError(t, err)

	occasionDuration := func(id uint) duration.Days {
		var o model.Occasion
		assert.NoError(t, testDB.First(&o, id).Error)
		return o.Duration
	}
	activityDurations := func() duration.Days {
		var a model.Activity
		assert.NoError(t, testDB.First(&a, activity.ID).Error)
		return a.Durations
	}

	first := seedOccasion(t, s, activity.ID, period.ID)
	second := seedOccasion(t, s, activity.ID, period.ID)

	// a short morning session
	morning, err := s.AddOccasionDate(ctx, first.ID,
		mustTime(t, "2024-07-01 09:00"), mustTime(t, "2024-07-01 12:00"), "UTC")
	assert.NoError(t, err)
	assert.Equal(t, duration.Half, occasionDuration(first.ID))
	assert.Equal(t, duration.Half, activityDurations())

	// an afternoon session stretches the first occasion to a full day
	_, err = s.AddOccasionDate(ctx, first.ID,
		mustTime(t, "2024-07-01 14:00"), mustTime(t, "2024-07-01 17:00"), "UTC")
	assert.NoError(t, err)
	assert.Equal(t, duration.Full, occasionDuration(first.ID))
	assert.Equal(t, duration.Full, activityDurations())

	// the second occasion spans a weekend
	_, err = s.AddOccasionDate(ctx, second.ID,
		mustTime(t, "2024-07-06 08:00"), mustTime(t, "2024-07-07 16:00"), "UTC")
	assert.NoError(t, err)
	assert.Equal(t, duration.Many, occasionDuration(second.ID))
	assert.Equal(t, duration.Full|duration.Many, activityDurations())

	// removing the morning session leaves a half day behind
	assert.NoError(t, s.DeleteOccasionDate(ctx, morning.ID))
	assert.Equal(t, duration.Half, occasionDuration(first.ID))
	assert.Equal(t, duration.Half|duration.Many, activityDurations())
}

func TestReferentialIntegrity(t *testing.T) {
	ctx := context.Background()

	seedBooked := func(t *testing.T) (Store, *gorm.DB, *model.Activity, *model.Occasion) {
		s, testDB := setupStore(t)

		period := seedPeriod(t, s)
		activity, err := s.AddActivity(ctx, "Pottery", "organizer@example.org")
		assert.NoError(t, err)
		occasion := seedOccasion(t, s, activity.ID, period.ID)

		attendee := model.Attendee{
			Username:  "parent@example.org",
			Name:      "Anna",
			BirthDate: mustTime(t, "2014-01-01 00:00"),
		}
		assert.NoError(t, s.AddAttendee(ctx, &attendee))

		_, err = s.AddBooking(ctx, attendee.Username, attendee.ID, occasion.ID, 0)
		assert.NoError(t, err)

		return s, testDB, activity, occasion
	}

	t.Run("an occasion with bookings cannot be deleted", func(t *testing.T) {
		s, _, _, occasion := seedBooked(t)
		assert.ErrorIs(t, s.DeleteOccasion(ctx, occasion.ID), ErrReferentialIntegrity)
	})

	t.Run("an activity with booked occasions cannot be deleted", func(t *testing.T) {
		s, _, activity, _ := seedBooked(t)
		assert.ErrorIs(t, s.DeleteActivity(ctx, activity.ID), ErrReferentialIntegrity)
	})

	t.Run("deleting the attendee cascades to the bookings", func(t *testing.T) {
		s, testDB, _, occasion := seedBooked(t)

		var booking model.Booking
		assert.NoError(t, testDB.Where("occasion_id = ?", occasion.ID).First(&booking).Error)

		assert.NoError(t, s.DeleteAttendee(ctx, booking.AttendeeID))

		var count int64
		assert.NoError(t, testDB.Model(&model.Booking{}).Count(&count).Error)
		assert.Equal(t, int64(0), count)

		// and the occasion is deletable now
		assert.NoError(t, s.DeleteOccasion(ctx, occasion.ID))
	})

	t.Run("deleting an activity removes its occasions and dates", func(t *testing.T) {
		s, testDB := setupStore(t)

		period := seedPeriod(t, s)
		activity, err := s.AddActivity(ctx, "Pottery", "organizer@example.org")
		assert.NoError(t, err)
		occasion := seedOccasion(t, s, activity.ID, period.ID)

		_, err = s.AddOccasionDate(ctx, occasion.ID,
			mustTime(t, "2024-07-01 10:00"), mustTime(t, "2024-07-01 12:00"), "UTC")
		assert.NoError(t, err)

		assert.NoError(t, s.DeleteActivity(ctx, activity.ID))

		var occasions, dates int64
		assert.NoError(t, testDB.Model(&model.Occasion{}).Count(&occasions).Error)
		assert.NoError(t, testDB.Model(&model.OccasionDate{}).Count(&dates).Error)
		assert.Equal(t, int64(0), occasions)
		assert.Equal(t, int64(0), dates)
	})
}

func TestReassignOccasion(t *testing.T) {
	s, testDB := setupStore(t)
	ctx := context.Background()

	first := seedPeriod(t, s)
	second := seedPeriod(t, s)

	activity, err := s.AddActivity(ctx, "Pottery", "organizer@example.org")
	assert.NoError(t, err)
	occasion := seedOccasion(t, s, activity.ID, first.ID)

	attendee := model.Attendee{
		Username:  "parent@example.org",
		Name:      "Anna",
		BirthDate: mustTime(t, "2014-01-01 00:00"),
	}
	assert.NoError(t, s.AddAttendee(ctx, &attendee))

	booking, err := s.AddBooking(ctx, attendee.Username, attendee.ID, occasion.ID, 0)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, booking.PeriodID)

	assert.NoError(t, s.ReassignOccasion(ctx, occasion.ID, second.ID))

	var movedOccasion model.Occasion
	assert.NoError(t, testDB.First(&movedOccasion, occasion.ID).Error)
	assert.Equal(t, second.ID, movedOccasion.PeriodID)

	// the booking's period follows the occasion
	var movedBooking model.Booking
	assert.NoError(t, testDB.First(&movedBooking, booking.ID).Error)
	assert.Equal(t, second.ID, movedBooking.PeriodID)
}

func TestAddBookingDeadline(t *testing.T) {
	s, testDB := setupStore(t)
	ctx := context.Background()

	period := seedPeriod(t, s)
	activity, err := s.AddActivity(ctx, "Pottery", "organizer@example.org")
	assert.NoError(t, err)
	occasion := seedOccasion(t, s, activity.ID, period.ID)

	_, err = s.AddOccasionDate(ctx, occasion.ID,
		mustTime(t, "2024-07-01 10:00"), mustTime(t, "2024-07-01 12:00"), "UTC")
	assert.NoError(t, err)

	attendee := model.Attendee{
		Username:  "parent@example.org",
		Name:      "Anna",
		BirthDate: mustTime(t, "2014-01-01 00:00"),
	}
	assert.NoError(t, s.AddAttendee(ctx, &attendee))

	// the occasion lies in the past, so the day-based deadline has
	// long passed
	assert.NoError(t, testDB.Model(period).Update("deadline_days", 1).Error)

	_, err = s.AddBooking(ctx, attendee.Username, attendee.ID, occasion.ID, 0)
	assert.ErrorIs(t, err, ErrDeadlinePassed)

	// an occasion without dates has no start to count the deadline
	// back from, so the day count does not apply
	dateless := seedOccasion(t, s, activity.ID, period.ID)

	booking, err := s.AddBooking(ctx, attendee.Username, attendee.ID, dateless.ID, 0)
	assert.NoError(t, err)
	assert.Equal(t, model.BookingOpen, booking.State)

	// without a deadline the booking goes through
	assert.NoError(t, testDB.Model(period).Update("deadline_days", nil).Error)

	booking, err = s.AddBooking(ctx, attendee.Username, attendee.ID, occasion.ID, 0)
	assert.NoError(t, err)
	assert.Equal(t, model.BookingOpen, booking.State)
}

func TestSetBookingFlags(t *testing.T) {
	s, testDB := setupStore(t)
	ctx := context.Background()

	period := seedPeriod(t, s)
	activity, err := s.AddActivity(ctx, "Pottery", "organizer@example.org")
	assert.NoError(t, err)
	occasion := seedOccasion(t, s, activity.ID, period.ID)

	attendee := model.Attendee{
		Username:  "parent@example.org",
		Name:      "Anna",
		BirthDate: mustTime(t, "2014-01-01 00:00"),
	}
	assert.NoError(t, s.AddAttendee(ctx, &attendee))

	booking, err := s.AddBooking(ctx, attendee.Username, attendee.ID, occasion.ID, 0)
	assert.NoError(t, err)
	assert.Equal(t, 0, booking.Priority)

	assert.NoError(t, s.SetBookingFlags(ctx, booking.ID, true, true))

	var got model.Booking
	assert.NoError(t, testDB.First(&got, booking.ID).Error)
	assert.True(t, got.Starred)
	assert.True(t, got.Nobbled)
	assert.Equal(t, 3, got.Priority, "the priority follows the flags")

	assert.NoError(t, s.SetBookingFlags(ctx, booking.ID, false, false))
	assert.NoError(t, testDB.First(&got, booking.ID).Error)
	assert.Equal(t, 0, got.Priority)
}

func TestHappiness(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) (Store, *gorm.DB, *model.Period, *model.Attendee, []*model.Occasion) {
		s, testDB := setupStore(t)

		period := seedPeriod(t, s)
		activity, err := s.AddActivity(ctx, "Pottery", "organizer@example.org")
		assert.NoError(t, err)

		occasions := make([]*model.Occasion, 3)
		for i := range occasions {
			occasions[i] = seedOccasion(t, s, activity.ID, period.ID)
		}

		attendee := model.Attendee{
			Username:  "parent@example.org",
			Name:      "Anna",
			BirthDate: mustTime(t, "2014-01-01 00:00"),
		}
		assert.NoError(t, s.AddAttendee(ctx, &attendee))

		return s, testDB, period, &attendee, occasions
	}

	book := func(t *testing.T, testDB *gorm.DB, a *model.Attendee, o *model.Occasion, state model.BookingState, priority int) {
		t.Helper()

		b := model.Booking{
			AttendeeID: a.ID,
			OccasionID: o.ID,
			PeriodID:   o.PeriodID,
			Username:   a.Username,
			State:      state,
			Starred:    priority&1 != 0,
			Nobbled:    priority&2 != 0,
		}
		assert.NoError(t, testDB.Create(&b).Error)
	}

	t.Run("undefined without bookings", func(t *testing.T) {
		s, _, period, attendee, _ := seed(t)

		_, defined, err := s.Happiness(ctx, attendee.ID, period.ID)
		assert.NoError(t, err)
		assert.False(t, defined)
	})

	t.Run("all accepted means fully happy", func(t *testing.T) {
		s, testDB, period, attendee, occasions := seed(t)

		book(t, testDB, attendee, occasions[0], model.BookingAccepted, 0)
		book(t, testDB, attendee, occasions[1], model.BookingAccepted, 2)

		happiness, defined, err := s.Happiness(ctx, attendee.ID, period.ID)
		assert.NoError(t, err)
		assert.True(t, defined)
		assert.Equal(t, 1.0, happiness)
	})

	t.Run("weights favour high priority wishes", func(t *testing.T) {
		s, testDB, period, attendee, occasions := seed(t)

		// one accepted wish of weight 4 against an open one of
		// weight 1
		book(t, testDB, attendee, occasions[0], model.BookingAccepted, 3)
		book(t, testDB, attendee, occasions[1], model.BookingOpen, 0)

		happiness, defined, err := s.Happiness(ctx, attendee.ID, period.ID)
		assert.NoError(t, err)
		assert.True(t, defined)
		assert.Equal(t, 0.8, happiness)
	})

	t.Run("cancelled bookings do not count", func(t *testing.T) {
		s, testDB, period, attendee, occasions := seed(t)

		book(t, testDB, attendee, occasions[0], model.BookingAccepted, 0)
		book(t, testDB, attendee, occasions[1], model.BookingCancelled, 0)

		happiness, defined, err := s.Happiness(ctx, attendee.ID, period.ID)
		assert.NoError(t, err)
		assert.True(t, defined)
		assert.Equal(t, 1.0, happiness)
	})
}
