package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"calendar-booking-backend/internal/booking"
)

type createBookingRequest struct {
	SlotID          string `json:"slot_id" binding:"required"`
	PlacesRequested int    `json:"places_requested" binding:"required,min=1"`
	PaymentMethod   string `json:"payment_method"`
	IdempotencyKey  string `json:"idempotency_key"`
}

// CreateBooking handles POST /api/calendars/{calendar_id}/bookings.
func (h *Handler) CreateBooking(c *gin.Context) {
	orgID, userID, ok := identity(c)
	if !ok {
		return
	}
	calendarID, ok := pathID(c, "calendar_id")
	if !ok {
		return
	}

	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.bookings.Create(c.Request.Context(), booking.CreateRequest{
		OrgID:          orgID,
		CalendarID:     calendarID,
		SlotID:         req.SlotID,
		Places:         req.PlacesRequested,
		UserID:         userID,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type cancelBookingRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CancelBooking handles POST /api/bookings/{booking_id}/cancel.
func (h *Handler) CancelBooking(c *gin.Context) {
	orgID, userID, ok := identity(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "booking_id")
	if !ok {
		return
	}

	var req cancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cancelled, err := h.bookings.Cancel(c.Request.Context(), orgID, bookingID, userID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cancelled)
}

// GetBookingHistory handles GET /api/bookings/{booking_id}/history.
func (h *Handler) GetBookingHistory(c *gin.Context) {
	orgID, _, ok := identity(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "booking_id")
	if !ok {
		return
	}

	entries, err := h.bookings.History(c.Request.Context(), orgID, bookingID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
