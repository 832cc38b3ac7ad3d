package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"calendar-booking-backend/internal/model"
	"calendar-booking-backend/internal/schedule"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// ReminderWorker periodically finds confirmed bookings whose start time has
// entered their calendar's reminder horizon and pushes a reminder to the
// calendar's subscribers.
type ReminderWorker struct {
	db       *gorm.DB
	webpush  *webpush.Options
	sender   NotificationSender
	interval time.Duration
}

// NewReminderWorker creates a new reminder worker.
func NewReminderWorker(db *gorm.DB, webpushOptions *webpush.Options, interval time.Duration) *ReminderWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReminderWorker{
		db:       db,
		webpush:  webpushOptions,
		sender:   &WebPushSender{},
		interval: interval,
	}
}

// SetSender replaces the push sender, used by tests.
func (w *ReminderWorker) SetSender(s NotificationSender) {
	w.sender = s
}

// Run sweeps on a fixed interval until the context is cancelled.
func (w *ReminderWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Printf("Reminder worker started, sweeping every %s", w.interval)
	for {
		select {
		case <-ticker.C:
			w.SweepOnce(ctx)
		case <-ctx.Done():
			log.Println("Reminder worker shutting down")
			return
		}
	}
}

// SweepOnce processes all currently due reminders.
func (w *ReminderWorker) SweepOnce(ctx context.Context) {
	now := time.Now().UTC()

	var calendars []model.Calendar
	if err := w.db.WithContext(ctx).
		Where("reminders_enabled = ?", true).
		Find(&calendars).Error; err != nil {
		log.Printf("Error fetching reminder-enabled calendars: %v", err)
		return
	}

	for _, cal := range calendars {
		w.sweepCalendar(ctx, cal, now)
	}
}

func (w *ReminderWorker) sweepCalendar(ctx context.Context, cal model.Calendar, now time.Time) {
	horizon := time.Duration(cal.ReminderHoursInAdvance) * time.Hour

	// Candidate dates first; the exact start instant is refined in Go since
	// the clock time lives in a separate column.
	var candidates []model.Booking
	err := w.db.WithContext(ctx).
		Where("calendar_id = ? AND booking_status = ? AND reminder_sent_at IS NULL", cal.ID, model.BookingConfirmed).
		Where("booking_date >= ? AND booking_date <= ?",
			schedule.DateOnly(now), schedule.DateOnly(now.Add(horizon)).AddDate(0, 0, 1)).
		Find(&candidates).Error
	if err != nil {
		log.Printf("Error fetching reminder candidates for calendar %d: %v", cal.ID, err)
		return
	}

	for _, booking := range candidates {
		startAt, err := bookingStart(booking)
		if err != nil {
			log.Printf("Skipping reminder for booking %s: %v", booking.BookingReference, err)
			continue
		}
		if startAt.Before(now) || startAt.After(now.Add(horizon)) {
			continue
		}
		w.remind(ctx, cal, booking, startAt)
	}
}

func (w *ReminderWorker) remind(ctx context.Context, cal model.Calendar, booking model.Booking, startAt time.Time) {
	var subscriptions []model.PushSubscription
	err := w.db.WithContext(ctx).
		Joins("JOIN subscription_calendar_mapping scm ON scm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("scm.calendar_id = ?", cal.ID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for calendar %d: %v", cal.ID, err)
		return
	}

	message := fmt.Sprintf("Reminder: booking %s in %s starts %s at %s.",
		booking.BookingReference, cal.Name,
		startAt.Format(schedule.DateLayout), booking.StartTime)
	for _, sub := range subscriptions {
		w.sendNotification(ctx, sub, []byte(message))
	}

	// Marked even with zero subscribers so the sweep never re-examines it.
	now := time.Now().UTC()
	if err := w.db.WithContext(ctx).Model(&model.Booking{}).
		Where("id = ?", booking.ID).
		Update("reminder_sent_at", now).Error; err != nil {
		log.Printf("Failed to mark reminder sent for booking %s: %v", booking.BookingReference, err)
	}
}

// sendNotification sends a single web push notification.
func (w *ReminderWorker) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := w.sender.Send(payload, wpSub, w.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == 410 {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := w.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}

// bookingStart combines the booking's date and clock columns into a start
// instant.
func bookingStart(b model.Booking) (time.Time, error) {
	minutes, err := schedule.ParseClock(b.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.DateOnly(b.BookingDate).Add(time.Duration(minutes) * time.Minute), nil
}
