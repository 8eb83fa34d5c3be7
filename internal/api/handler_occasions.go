package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"activity-booking-backend/internal/duration"
	"activity-booking-backend/internal/model"
	"activity-booking-backend/internal/store"
)

type postOccasionRequest struct {
	ActivityID uint    `json:"activity_id" binding:"required"`
	PeriodID   uint    `json:"period_id" binding:"required"`
	MinAge     int     `json:"min_age"`
	MaxAge     int     `json:"max_age"`
	MinSpots   int     `json:"min_spots"`
	MaxSpots   int     `json:"max_spots" binding:"required"`
	Cost       float64 `json:"cost"`
	Location   string  `json:"location"`
	Note       string  `json:"note"`
}

type postOccasionDateRequest struct {
	Start    time.Time `json:"start" binding:"required"`
	End      time.Time `json:"end" binding:"required"`
	Timezone string    `json:"timezone" binding:"required"`
}

// OccasionResponse represents the API response for a single occasion.
// Age and spots are reported as the inclusive ranges the client sent.
type OccasionResponse struct {
	ID         uint `json:"id"`
	ActivityID uint `json:"activity_id"`
	PeriodID   uint `json:"period_id"`

	MinAge   int `json:"min_age"`
	MaxAge   int `json:"max_age"`
	MinSpots int `json:"min_spots"`
	MaxSpots int `json:"max_spots"`

	Cost      float64       `json:"cost"`
	Cancelled bool          `json:"cancelled"`
	Duration  duration.Days `json:"duration"`
	Location  string        `json:"location,omitempty"`
	Note      string        `json:"note,omitempty"`

	AvailableSpots int  `json:"available_spots"`
	Operable       bool `json:"operable"`
}

func (h *Handler) occasionResponse(c *gin.Context, o *model.Occasion) (OccasionResponse, error) {
	spots, err := h.store.AvailableSpots(c.Request.Context(), o.ID)
	if err != nil {
		return OccasionResponse{}, err
	}

	operable, err := h.store.Operable(c.Request.Context(), o.ID)
	if err != nil {
		return OccasionResponse{}, err
	}

	return OccasionResponse{
		ID:             o.ID,
		ActivityID:     o.ActivityID,
		PeriodID:       o.PeriodID,
		MinAge:         o.MinAge,
		MaxAge:         o.MaxAge - 1,
		MinSpots:       o.MinSpots,
		MaxSpots:       o.MaxSpots - 1,
		Cost:           o.Cost,
		Cancelled:      o.Cancelled,
		Duration:       o.Duration,
		Location:       o.Location,
		Note:           o.Note,
		AvailableSpots: spots,
		Operable:       operable,
	}, nil
}

// GetOccasion handles the GET /api/occasions/:occasion_id request.
func (h *Handler) GetOccasion(c *gin.Context) {
	id, ok := idParam(c, "occasion_id")
	if !ok {
		return
	}

	var occasion model.Occasion
	err := h.store.DB().WithContext(c.Request.Context()).
		Preload("Dates").
		First(&occasion, id).Error
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp, err := h.occasionResponse(c, &occasion)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PostOccasion handles the creation of a new occasion.
func (h *Handler) PostOccasion(c *gin.Context) {
	var req postOccasionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	occasion, err := h.store.AddOccasion(c.Request.Context(), store.OccasionParams{
		ActivityID: req.ActivityID,
		PeriodID:   req.PeriodID,
		Age:        [2]int{req.MinAge, req.MaxAge},
		Spots:      [2]int{req.MinSpots, req.MaxSpots},
		Cost:       req.Cost,
		Location:   req.Location,
		Note:       req.Note,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp, err := h.occasionResponse(c, occasion)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// PostOccasionDate appends a time range to an occasion.
func (h *Handler) PostOccasionDate(c *gin.Context) {
	id, ok := idParam(c, "occasion_id")
	if !ok {
		return
	}

	var req postOccasionDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := h.store.AddOccasionDate(c.Request.Context(), id, req.Start, req.End, req.Timezone)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":      date.ID,
		"start":   date.Start,
		"end":     date.End,
		"weekday": date.Weekday,
	})
}

// DeleteOccasionDate removes one time range from an occasion.
func (h *Handler) DeleteOccasionDate(c *gin.Context) {
	id, ok := idParam(c, "date_id")
	if !ok {
		return
	}

	if err := h.store.DeleteOccasionDate(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type reassignOccasionRequest struct {
	PeriodID uint `json:"period_id" binding:"required"`
}

// ReassignOccasion moves an occasion into another period, taking its
// bookings along.
func (h *Handler) ReassignOccasion(c *gin.Context) {
	id, ok := idParam(c, "occasion_id")
	if !ok {
		return
	}

	var req reassignOccasionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.ReassignOccasion(c.Request.Context(), id, req.PeriodID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteOccasion removes an occasion without bookings.
func (h *Handler) DeleteOccasion(c *gin.Context) {
	id, ok := idParam(c, "occasion_id")
	if !ok {
		return
	}

	if err := h.store.DeleteOccasion(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
