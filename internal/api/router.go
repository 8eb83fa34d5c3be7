package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"activity-booking-backend/internal/matching"
	"activity-booking-backend/internal/mw"
	"activity-booking-backend/internal/store"
)

// RouterOptions configures the middleware of the API group.
type RouterOptions struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
	VAPIDPublicKey  string
}

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, engine *matching.Engine, opts RouterOptions) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, engine)

	rateLimiter := mw.RateLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst)

	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/periods", handler.GetPeriods)
		api.POST("/periods", handler.PostPeriod)
		api.POST("/periods/:period_id/activate", handler.ActivatePeriod)
		api.POST("/periods/:period_id/confirm", handler.ConfirmPeriod)
		api.POST("/periods/:period_id/finalize", handler.FinalizePeriod)
		api.POST("/periods/:period_id/archive", handler.ArchivePeriod)

		// the activity listing is the only heavy read, cache it
		api.GET("/activities", caching, handler.GetActivities)
		api.POST("/activities", handler.PostActivity)
		api.POST("/activities/:activity_id/propose", handler.ProposeActivity)
		api.POST("/activities/:activity_id/accept", handler.AcceptActivity)
		api.POST("/activities/:activity_id/deny", handler.DenyActivity)
		api.DELETE("/activities/:activity_id", handler.DeleteActivity)

		api.GET("/occasions/:occasion_id", handler.GetOccasion)
		api.POST("/occasions", handler.PostOccasion)
		api.POST("/occasions/:occasion_id/dates", handler.PostOccasionDate)
		api.POST("/occasions/:occasion_id/reassign", handler.ReassignOccasion)
		api.DELETE("/occasions/:occasion_id", handler.DeleteOccasion)
		api.DELETE("/dates/:date_id", handler.DeleteOccasionDate)

		api.POST("/attendees", handler.PostAttendee)
		api.GET("/attendees/:attendee_id/happiness", handler.GetHappiness)
		api.DELETE("/attendees/:attendee_id", handler.DeleteAttendee)

		api.POST("/bookings", handler.PostBooking)
		api.POST("/bookings/:booking_id/accept", handler.AcceptBooking)
		api.POST("/bookings/:booking_id/cancel", handler.CancelBooking)
		api.POST("/bookings/:booking_id/flags", handler.SetBookingFlags)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey(opts.VAPIDPublicKey))
	}

	return r
}
