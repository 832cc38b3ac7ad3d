package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"calendar-booking-backend/internal/availability"
	"calendar-booking-backend/internal/booking"
	"calendar-booking-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	avail    *availability.Service
	bookings *booking.Service
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, avail *availability.Service, bookings *booking.Service, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		avail:    avail,
		bookings: bookings,
		webpush:  webpushOptions,
	}
}

// identity extracts the already-authenticated (organization, user) pair the
// gateway forwards in headers. Authentication itself happens upstream.
func identity(c *gin.Context) (orgID, userID int64, ok bool) {
	orgID, err := strconv.ParseInt(c.GetHeader("X-Organization-ID"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-Organization-ID header"})
		return 0, 0, false
	}
	userID, err = strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-User-ID header"})
		return 0, 0, false
	}
	return orgID, userID, true
}

// writeError maps engine errors onto HTTP statuses so the UI can offer the
// correct remedy for each failure.
func writeError(c *gin.Context, err error) {
	switch {
	case store.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrCapacityExceeded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "reason": "capacity_exceeded"})
	case errors.Is(err, store.ErrCancellationWindowClosed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "reason": "cancellation_window_closed"})
	case errors.Is(err, store.ErrStoreUnavailable):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry with backoff"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
