package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"calendar-booking-backend/internal/availability"
	"calendar-booking-backend/internal/schedule"
)

// GetAvailability handles
// GET /api/calendars/{calendar_id}/availability?date_from&date_to&mode.
func (h *Handler) GetAvailability(c *gin.Context) {
	orgID, _, ok := identity(c)
	if !ok {
		return
	}
	calendarID, ok := pathID(c, "calendar_id")
	if !ok {
		return
	}

	from, err := schedule.ParseDate(c.Query("date_from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_from must be YYYY-MM-DD"})
		return
	}
	to, err := schedule.ParseDate(c.Query("date_to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_to must be YYYY-MM-DD"})
		return
	}

	mode := availability.ModeAvailableOnly
	switch c.Query("mode") {
	case "", string(availability.ModeAvailableOnly):
	case string(availability.ModeAll):
		mode = availability.ModeAll
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be available_only or all"})
		return
	}

	slots, err := h.avail.List(c.Request.Context(), orgID, calendarID, from, to, mode)
	if err != nil {
		writeError(c, err)
		return
	}
	// An empty range is a valid answer, never an error.
	c.JSON(http.StatusOK, slots)
}
