package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"calendar-booking-backend/config"
	"calendar-booking-backend/internal/availability"
	"calendar-booking-backend/internal/booking"
	"calendar-booking-backend/internal/mw"
	"calendar-booking-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, avail *availability.Service, bookings *booking.Service, webpushOptions *webpush.Options, server config.ServerConfig) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, avail, bookings, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(server.RateLimitPerSec), server.RateLimitBurst)

	// Availability is recomputed per request, so even a short response cache
	// absorbs most of the read load.
	cacheTTL := time.Duration(server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Availability
		api.GET("/calendars/:calendar_id/availability", caching, handler.GetAvailability)

		// Bookings
		api.POST("/calendars/:calendar_id/bookings", handler.CreateBooking)
		api.POST("/bookings/:booking_id/cancel", handler.CancelBooking)
		api.GET("/bookings/:booking_id/history", handler.GetBookingHistory)

		// Calendar administration
		api.POST("/calendars", handler.CreateCalendar)
		api.PUT("/calendars/:calendar_id", handler.UpdateCalendar)
		api.DELETE("/calendars/:calendar_id", handler.DeleteCalendar)
		api.POST("/calendars/:calendar_id/schedule-rules", handler.CreateScheduleRule)
		api.POST("/calendars/:calendar_id/slot-configurations", handler.CreateSlotConfiguration)
		api.POST("/calendars/:calendar_id/blocked-periods", handler.CreateBlockedPeriod)

		// Payment provider callback
		api.POST("/payments/callback", handler.PaymentCallback)

		// Reminder push subscriptions
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
