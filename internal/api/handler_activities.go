package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"activity-booking-backend/internal/duration"
	"activity-booking-backend/internal/filter"
	"activity-booking-backend/internal/model"
)

type postActivityRequest struct {
	Title    string   `json:"title" binding:"required"`
	Username string   `json:"username" binding:"required"`
	Tags     []string `json:"tags"`
}

// ActivityResponse represents the API response for a single activity.
type ActivityResponse struct {
	ID        uint                `json:"id"`
	Title     string              `json:"title"`
	Username  string              `json:"username"`
	State     model.ActivityState `json:"state"`
	Durations duration.Days       `json:"durations"`
	Tags      []string            `json:"tags"`
}

func activityResponse(a *model.Activity) ActivityResponse {
	tags := make([]string, 0, len(a.Tags))
	for _, tag := range a.Tags {
		tags = append(tags, tag.Name)
	}

	return ActivityResponse{
		ID:        a.ID,
		Title:     a.Title,
		Username:  a.Username,
		State:     a.State,
		Durations: a.Durations,
		Tags:      tags,
	}
}

// GetActivities handles the GET /api/activities request. Repeated
// query parameters toggle filter facet values.
func (h *Handler) GetActivities(c *gin.Context) {
	state, err := filterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := h.store.DB().WithContext(c.Request.Context())

	var activities []model.Activity
	err = state.Apply(db).
		Preload("Tags").
		Order("activities.title").
		Find(&activities).Error
	if err != nil {
		abortWithError(c, err)
		return
	}

	responses := make([]ActivityResponse, 0, len(activities))
	for i := range activities {
		responses = append(responses, activityResponse(&activities[i]))
	}
	c.JSON(http.StatusOK, responses)
}

// PostActivity handles the creation of a new activity in preview state.
func (h *Handler) PostActivity(c *gin.Context) {
	var req postActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activity, err := h.store.AddActivity(c.Request.Context(), req.Title, req.Username, req.Tags...)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, activityResponse(activity))
}

// ProposeActivity submits a previewed activity for review.
func (h *Handler) ProposeActivity(c *gin.Context) {
	h.transitionActivity(c, (*model.Activity).Propose)
}

// AcceptActivity publishes a proposed activity.
func (h *Handler) AcceptActivity(c *gin.Context) {
	h.transitionActivity(c, (*model.Activity).Accept)
}

// DenyActivity rejects a proposed activity.
func (h *Handler) DenyActivity(c *gin.Context) {
	h.transitionActivity(c, (*model.Activity).Deny)
}

// DeleteActivity removes an activity without bookings.
func (h *Handler) DeleteActivity(c *gin.Context) {
	id, ok := idParam(c, "activity_id")
	if !ok {
		return
	}

	if err := h.store.DeleteActivity(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// transitionActivity loads the activity, applies the state transition
// and persists the new state. Invalid transitions answer with a 409.
func (h *Handler) transitionActivity(c *gin.Context, transition func(*model.Activity) error) {
	id, ok := idParam(c, "activity_id")
	if !ok {
		return
	}

	err := h.store.DB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var activity model.Activity
		if err := tx.First(&activity, id).Error; err != nil {
			return err
		}

		if err := transition(&activity); err != nil {
			return err
		}

		return tx.Model(&activity).Update("state", activity.State).Error
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// filterFromQuery toggles a facet value for every occurrence of its
// query parameter, mirroring the toggle links of a faceted browser.
func filterFromQuery(c *gin.Context) (filter.State, error) {
	var state filter.State

	for _, tag := range c.QueryArray("tag") {
		state = state.WithToggledTag(tag)
	}

	for _, s := range c.QueryArray("state") {
		state = state.WithToggledState(model.ActivityState(s))
	}

	for _, d := range c.QueryArray("duration") {
		n, err := strconv.Atoi(d)
		if err != nil {
			return state, err
		}
		state = state.WithToggledDuration(duration.Days(n))
	}

	for _, w := range c.QueryArray("weekday") {
		n, err := strconv.Atoi(w)
		if err != nil {
			return state, err
		}
		state = state.WithToggledWeekday(n)
	}

	for _, owner := range c.QueryArray("owner") {
		state = state.WithToggledOwner(owner)
	}

	for _, p := range c.QueryArray("period") {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return state, err
		}
		state = state.WithToggledPeriod(uint(n))
	}

	for _, t := range c.QueryArray("timeline") {
		state = state.WithToggledTimeline(t)
	}

	for _, a := range c.QueryArray("available") {
		state = state.WithToggledAvailability(a)
	}

	for _, r := range c.QueryArray("age") {
		numRange, err := parseNumRange(r)
		if err != nil {
			return state, err
		}
		state = state.WithToggledAgeRange(numRange)
	}

	for _, r := range c.QueryArray("price") {
		numRange, err := parseNumRange(r)
		if err != nil {
			return state, err
		}
		state = state.WithToggledPriceRange(numRange)
	}

	for _, r := range c.QueryArray("dates") {
		dateRange, err := parseDateRange(r)
		if err != nil {
			return state, err
		}
		state = state.WithToggledDateRange(dateRange)
	}

	return state, nil
}

// parseNumRange parses "min-max" into an inclusive numeric range. A
// single number stands for itself.
func parseNumRange(s string) (filter.NumRange, error) {
	var r filter.NumRange

	minPart, maxPart, found := strings.Cut(s, "-")
	if !found {
		maxPart = minPart
	}

	min, err := strconv.Atoi(minPart)
	if err != nil {
		return r, fmt.Errorf("invalid range %q", s)
	}
	max, err := strconv.Atoi(maxPart)
	if err != nil {
		return r, fmt.Errorf("invalid range %q", s)
	}
	return filter.NumRange{Min: min, Max: max}, nil
}

// parseDateRange parses "2006-01-02..2006-01-02" into a date range
// covering both days fully.
func parseDateRange(s string) (filter.DateRange, error) {
	var r filter.DateRange

	const layout = "2006-01-02"

	fromPart, toPart, found := strings.Cut(s, "..")
	if !found {
		return r, fmt.Errorf("invalid date range %q", s)
	}

	from, err := time.Parse(layout, fromPart)
	if err != nil {
		return r, err
	}
	to, err := time.Parse(layout, toPart)
	if err != nil {
		return r, err
	}
	return filter.DateRange{From: from, To: to.Add(24*time.Hour - time.Nanosecond)}, nil
}
