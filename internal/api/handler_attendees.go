package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"activity-booking-backend/internal/model"
)

type postAttendeeRequest struct {
	Username  string    `json:"username" binding:"required"`
	Name      string    `json:"name" binding:"required"`
	BirthDate time.Time `json:"birth_date" binding:"required"`
	Gender    string    `json:"gender"`
	Limit     *int      `json:"limit"`
}

// PostAttendee handles the creation of a new attendee.
func (h *Handler) PostAttendee(c *gin.Context) {
	var req postAttendeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	attendee := model.Attendee{
		Username:  req.Username,
		Name:      req.Name,
		BirthDate: req.BirthDate,
		Gender:    req.Gender,
		Limit:     req.Limit,
	}

	if err := h.store.AddAttendee(c.Request.Context(), &attendee); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       attendee.ID,
		"username": attendee.Username,
		"name":     attendee.Name,
	})
}

// DeleteAttendee removes an attendee together with their bookings.
func (h *Handler) DeleteAttendee(c *gin.Context) {
	id, ok := idParam(c, "attendee_id")
	if !ok {
		return
	}

	if err := h.store.DeleteAttendee(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetHappiness reports the priority-weighted fraction of the
// attendee's wishlist that ended up accepted in the given period.
func (h *Handler) GetHappiness(c *gin.Context) {
	id, ok := idParam(c, "attendee_id")
	if !ok {
		return
	}

	periodID, err := strconv.ParseUint(c.Query("period_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period_id must be numeric"})
		return
	}

	happiness, defined, err := h.store.Happiness(c.Request.Context(), id, uint(periodID))
	if err != nil {
		abortWithError(c, err)
		return
	}

	if !defined {
		c.JSON(http.StatusOK, gin.H{"defined": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"defined": true, "happiness": happiness})
}
