package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"calendar-booking-backend/internal/model"
)

type paymentCallbackRequest struct {
	BookingReference string `json:"booking_reference" binding:"required"`
	Status           string `json:"status" binding:"required,oneof=pending paid failed refunded"`
	Notes            string `json:"notes"`
}

// PaymentCallback handles POST /api/payments/callback. The payment provider
// reports status transitions here, including refund completion.
func (h *Handler) PaymentCallback(c *gin.Context) {
	var req paymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := h.store.RecordPaymentStatus(c.Request.Context(), req.BookingReference, model.PaymentStatus(req.Status), req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}
