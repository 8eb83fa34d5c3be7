package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"activity-booking-backend/internal/model"
)

type postPeriodRequest struct {
	Title           string    `json:"title" binding:"required"`
	PrebookingStart time.Time `json:"prebooking_start" binding:"required"`
	PrebookingEnd   time.Time `json:"prebooking_end" binding:"required"`
	ExecutionStart  time.Time `json:"execution_start" binding:"required"`
	ExecutionEnd    time.Time `json:"execution_end" binding:"required"`

	AllInclusive           bool       `json:"all_inclusive"`
	BookingCost            float64    `json:"booking_cost"`
	MaxBookingsPerAttendee *int       `json:"max_bookings_per_attendee"`
	DeadlineDays           *int       `json:"deadline_days"`
	DeadlineDate           *time.Time `json:"deadline_date"`
}

// PeriodResponse represents the API response for a single period.
type PeriodResponse struct {
	ID        uint        `json:"id"`
	Title     string      `json:"title"`
	Phase     model.Phase `json:"phase"`
	Active    bool        `json:"active"`
	Confirmed bool        `json:"confirmed"`
	Finalized bool        `json:"finalized"`
	Archived  bool        `json:"archived"`

	PrebookingStart time.Time `json:"prebooking_start"`
	PrebookingEnd   time.Time `json:"prebooking_end"`
	ExecutionStart  time.Time `json:"execution_start"`
	ExecutionEnd    time.Time `json:"execution_end"`

	AllInclusive bool    `json:"all_inclusive"`
	BookingCost  float64 `json:"booking_cost"`
}

func periodResponse(p *model.Period) PeriodResponse {
	return PeriodResponse{
		ID:              p.ID,
		Title:           p.Title,
		Phase:           p.Phase(),
		Active:          p.Active,
		Confirmed:       p.Confirmed,
		Finalized:       p.Finalized,
		Archived:        p.Archived,
		PrebookingStart: p.PrebookingStart,
		PrebookingEnd:   p.PrebookingEnd,
		ExecutionStart:  p.ExecutionStart,
		ExecutionEnd:    p.ExecutionEnd,
		AllInclusive:    p.AllInclusive,
		BookingCost:     p.BookingCost,
	}
}

// GetPeriods handles the GET /api/periods request.
func (h *Handler) GetPeriods(c *gin.Context) {
	var periods []model.Period
	if err := h.store.DB().WithContext(c.Request.Context()).Order("execution_start").Find(&periods).Error; err != nil {
		abortWithError(c, err)
		return
	}

	responses := make([]PeriodResponse, 0, len(periods))
	for i := range periods {
		responses = append(responses, periodResponse(&periods[i]))
	}
	c.JSON(http.StatusOK, responses)
}

// PostPeriod handles the creation of a new period.
func (h *Handler) PostPeriod(c *gin.Context) {
	var req postPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	period := model.Period{
		Title:                  req.Title,
		PrebookingStart:        req.PrebookingStart,
		PrebookingEnd:          req.PrebookingEnd,
		ExecutionStart:         req.ExecutionStart,
		ExecutionEnd:           req.ExecutionEnd,
		AllInclusive:           req.AllInclusive,
		BookingCost:            req.BookingCost,
		MaxBookingsPerAttendee: req.MaxBookingsPerAttendee,
		DeadlineDays:           req.DeadlineDays,
		DeadlineDate:           req.DeadlineDate,
	}

	if err := h.store.AddPeriod(c.Request.Context(), &period); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, periodResponse(&period))
}

// ActivatePeriod handles activating a period, deactivating all others.
func (h *Handler) ActivatePeriod(c *gin.Context) {
	id, ok := idParam(c, "period_id")
	if !ok {
		return
	}

	if err := h.store.ActivatePeriod(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ConfirmPeriod handles the transition from wishlist to booking phase,
// running the matching over all open bookings.
func (h *Handler) ConfirmPeriod(c *gin.Context) {
	id, ok := idParam(c, "period_id")
	if !ok {
		return
	}

	if err := h.engine.ConfirmPeriod(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// FinalizePeriod handles locking in the bookings of a confirmed period.
func (h *Handler) FinalizePeriod(c *gin.Context) {
	id, ok := idParam(c, "period_id")
	if !ok {
		return
	}

	if err := h.store.FinalizePeriod(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ArchivePeriod handles archiving a finalized period together with the
// activities that are no longer offered anywhere else.
func (h *Handler) ArchivePeriod(c *gin.Context) {
	id, ok := idParam(c, "period_id")
	if !ok {
		return
	}

	if err := h.engine.ArchivePeriod(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// idParam parses a numeric path parameter, answering the request with
// a 400 when it is not a number.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be numeric"})
		return 0, false
	}
	return uint(id), true
}
