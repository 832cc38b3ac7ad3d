package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"calendar-booking-backend/internal/availability"
	"calendar-booking-backend/internal/model"
	"calendar-booking-backend/internal/schedule"
	"calendar-booking-backend/internal/store"
)

// RefundDispatcher hands a refund request off to the payment collaborator.
// Dispatch must not block: refund completion is reported back asynchronously
// and recorded via the payment-status callback.
type RefundDispatcher interface {
	Dispatch(bookingID int64, bookingReference string, amount float64)
}

// CreateRequest is the input for a new booking.
type CreateRequest struct {
	OrgID          int64
	CalendarID     int64
	SlotID         string
	Places         int
	UserID         int64
	PaymentMethod  string
	IdempotencyKey string
}

// Service is the booking lifecycle manager: it creates, cancels and audits
// bookings against the capacity ledger.
type Service struct {
	store   store.Store
	avail   *availability.Service
	refunds RefundDispatcher // nil disables automatic refunds

	// Now is the clock; tests override it to pin the cancellation window.
	Now func() time.Time
}

// NewService creates a new booking service.
func NewService(s store.Store, avail *availability.Service, refunds RefundDispatcher) *Service {
	return &Service{store: s, avail: avail, refunds: refunds, Now: time.Now}
}

// Create books places on a slot instance. The slot is re-resolved through
// the availability pipeline first, because schedule rules and blocks can
// change between listing and booking; the capacity check and the booking
// insert then happen in one store transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*model.Booking, error) {
	slotID, err := schedule.ParseSlotID(req.SlotID)
	if err != nil {
		return nil, store.Validationf("%v", err)
	}
	if req.Places <= 0 {
		return nil, store.Validationf("places_requested must be positive")
	}

	snap, slot, err := s.avail.ResolveSlot(ctx, req.OrgID, req.CalendarID, slotID)
	if err != nil {
		return nil, err
	}

	if req.Places < slot.MinPlacesRequired {
		return nil, fmt.Errorf("%d place(s) requested, configuration requires at least %d: %w",
			req.Places, slot.MinPlacesRequired, store.ErrCapacityExceeded)
	}
	if err := validatePaymentMethod(&snap.Calendar, req.PaymentMethod); err != nil {
		return nil, err
	}

	return s.store.CreateBooking(ctx, store.CreateBookingParams{
		Calendar:       &snap.Calendar,
		Slot:           *slot,
		UserID:         req.UserID,
		Places:         req.Places,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: req.IdempotencyKey,
	})
}

// Cancel moves a confirmed booking to cancelled, releasing its capacity.
// When the calendar refunds automatically, a refund request is dispatched
// fire-and-forget after the transaction commits.
func (s *Service) Cancel(ctx context.Context, orgID, bookingID, actorID int64, reason string) (*model.Booking, error) {
	booking, err := s.store.GetBooking(ctx, orgID, bookingID)
	if err != nil {
		return nil, err
	}

	snap, err := s.store.Snapshot(ctx, orgID, booking.CalendarID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCancellationWindow(&snap.Calendar, booking); err != nil {
		return nil, err
	}

	cancelled, err := s.store.CancelBooking(ctx, store.CancelBookingParams{
		BookingID: bookingID,
		OrgID:     orgID,
		ActorID:   actorID,
		Reason:    reason,
	})
	if err != nil {
		return nil, err
	}

	if snap.Calendar.RefundPaymentAutomatically && s.refunds != nil && cancelled.TotalPrice > 0 {
		s.refunds.Dispatch(cancelled.ID, cancelled.BookingReference, cancelled.TotalPrice)
	}
	return cancelled, nil
}

// History returns the append-only audit trail of a booking.
func (s *Service) History(ctx context.Context, orgID, bookingID int64) ([]model.BookingHistory, error) {
	return s.store.BookingHistory(ctx, orgID, bookingID)
}

// checkCancellationWindow enforces the calendar's cancellation policy: the
// current time must be more than CancelDaysInAdvance days before the
// booking's date.
func (s *Service) checkCancellationWindow(cal *model.Calendar, booking *model.Booking) error {
	if booking.BookingStatus != model.BookingConfirmed {
		return store.Validationf("booking %s is already cancelled", booking.BookingReference)
	}
	if !cal.AllowCancellations {
		return fmt.Errorf("calendar does not allow cancellations: %w", store.ErrCancellationWindowClosed)
	}

	today := schedule.DateOnly(s.Now())
	bookingDay := schedule.DateOnly(booking.BookingDate)
	daysUntil := int(bookingDay.Sub(today).Hours() / 24)
	if daysUntil <= cal.CancelDaysInAdvance {
		return fmt.Errorf("booking on %s is within %d day(s) of its date: %w",
			bookingDay.Format(schedule.DateLayout), cal.CancelDaysInAdvance, store.ErrCancellationWindowClosed)
	}
	return nil
}

// validatePaymentMethod accepts any method when the calendar does not
// restrict them.
func validatePaymentMethod(cal *model.Calendar, method string) error {
	if cal.PaymentMethods == "" || method == "" {
		return nil
	}
	for _, allowed := range strings.Split(cal.PaymentMethods, ",") {
		if strings.EqualFold(strings.TrimSpace(allowed), method) {
			return nil
		}
	}
	return store.Validationf("payment method %q is not accepted by this calendar", method)
}
