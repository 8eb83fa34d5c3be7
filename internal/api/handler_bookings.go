package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"activity-booking-backend/internal/model"
)

type postBookingRequest struct {
	Username   string `json:"username" binding:"required"`
	AttendeeID uint   `json:"attendee_id" binding:"required"`
	OccasionID uint   `json:"occasion_id" binding:"required"`
	Starred    bool   `json:"starred"`
	Nobbled    bool   `json:"nobbled"`
}

type bookingFlagsRequest struct {
	Starred bool `json:"starred"`
	Nobbled bool `json:"nobbled"`
}

// BookingResponse represents the API response for a single booking.
type BookingResponse struct {
	ID         uint               `json:"id"`
	AttendeeID uint               `json:"attendee_id"`
	OccasionID uint               `json:"occasion_id"`
	PeriodID   uint               `json:"period_id"`
	Username   string             `json:"username"`
	State      model.BookingState `json:"state"`
	Priority   int                `json:"priority"`
	Starred    bool               `json:"starred"`
	Nobbled    bool               `json:"nobbled"`
	Cost       float64            `json:"cost"`
}

func bookingResponse(b *model.Booking) BookingResponse {
	return BookingResponse{
		ID:         b.ID,
		AttendeeID: b.AttendeeID,
		OccasionID: b.OccasionID,
		PeriodID:   b.PeriodID,
		Username:   b.Username,
		State:      b.State,
		Priority:   b.Priority,
		Starred:    b.Starred,
		Nobbled:    b.Nobbled,
		Cost:       b.Cost,
	}
}

// PostBooking handles the creation of a new wishlist booking.
func (h *Handler) PostBooking(c *gin.Context) {
	var req postBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	priority := 0
	if req.Starred {
		priority |= 1
	}
	if req.Nobbled {
		priority |= 2
	}

	booking, err := h.store.AddBooking(c.Request.Context(), req.Username, req.AttendeeID, req.OccasionID, priority)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bookingResponse(booking))
}

// AcceptBooking reserves a spot for the booking, blocking the sibling
// bookings it now conflicts with.
func (h *Handler) AcceptBooking(c *gin.Context) {
	id, ok := idParam(c, "booking_id")
	if !ok {
		return
	}

	if err := h.engine.AcceptBooking(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CancelBooking frees the booking's spot and promotes blocked sibling
// bookings where possible.
func (h *Handler) CancelBooking(c *gin.Context) {
	id, ok := idParam(c, "booking_id")
	if !ok {
		return
	}

	if err := h.engine.CancelBooking(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetBookingFlags updates the starred/nobbled flags, recomputing the
// booking's priority.
func (h *Handler) SetBookingFlags(c *gin.Context) {
	id, ok := idParam(c, "booking_id")
	if !ok {
		return
	}

	var req bookingFlagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.SetBookingFlags(c.Request.Context(), id, req.Starred, req.Nobbled); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
