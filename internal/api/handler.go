package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"activity-booking-backend/internal/matching"
	"activity-booking-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store  store.Store
	engine *matching.Engine
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, engine *matching.Engine) *Handler {
	return &Handler{
		store:  s,
		engine: engine,
	}
}

// abortWithError maps domain errors onto HTTP status codes. Rejected
// business preconditions become 409s with the sentinel message;
// anything else is a server error.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})

	case errors.Is(err, matching.ErrPeriodNotConfirmed),
		errors.Is(err, matching.ErrInvalidBookingState),
		errors.Is(err, matching.ErrOccasionFull),
		errors.Is(err, matching.ErrSchedulingConflict),
		errors.Is(err, matching.ErrBookingLimitReached),
		errors.Is(err, matching.ErrPeriodNotConfirmable),
		errors.Is(err, matching.ErrPeriodNotFinalized),
		errors.Is(err, store.ErrReferentialIntegrity),
		errors.Is(err, store.ErrDateOverlap),
		errors.Is(err, store.ErrDeadlinePassed):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})

	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
