package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"calendar-booking-backend/internal/model"
	"calendar-booking-backend/internal/schedule"
)

// CreateBookingParams carries everything the store needs to persist a
// booking atomically with its ledger increment and history row.
type CreateBookingParams struct {
	Calendar       *model.Calendar
	Slot           schedule.SlotInstance
	UserID         int64
	Places         int
	PaymentMethod  string
	IdempotencyKey string
}

// CancelBookingParams carries the cancellation metadata for an already
// window-checked booking.
type CancelBookingParams struct {
	BookingID int64
	OrgID     int64
	ActorID   int64
	Reason    string
}

// CreateBooking reserves capacity, inserts the booking and appends its first
// history row in one transaction, so a failure at any step applies nothing.
// Resubmitting with the same idempotency key returns the original booking.
func (s *gormStore) CreateBooking(ctx context.Context, params CreateBookingParams) (*model.Booking, error) {
	var booking *model.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if params.IdempotencyKey != "" {
			existing, err := findByIdempotencyKey(tx, params.Calendar.ID, params.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				booking = existing
				return nil
			}
		}

		if err := reserve(tx, params.Slot, params.Places); err != nil {
			return err
		}

		now := time.Now().UTC()
		booking = &model.Booking{
			CalendarID:       params.Calendar.ID,
			OrganizationID:   params.Calendar.OrganizationID,
			ConfigurationID:  params.Slot.ConfigurationID,
			DurationOptionID: params.Slot.DurationOptionID,
			BookingDate:      params.Slot.Date,
			StartTime:        params.Slot.StartClock(),
			DurationMinutes:  params.Slot.DurationMinutes,
			BookingReference: newBookingReference(),
			UserID:           params.UserID,
			PlacesBooked:     params.Places,
			PricePerPlace:    params.Slot.Price,
			TotalPrice:       params.Slot.Price * float64(params.Places),
			BookingStatus:    model.BookingConfirmed,
			PaymentStatus:    model.PaymentPending,
			PaymentMethod:    params.PaymentMethod,
			IdempotencyKey:   params.IdempotencyKey,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Create(booking).Error; err != nil {
			return unavailable("insert booking", err)
		}

		entry := model.BookingHistory{
			BookingID: booking.ID,
			Action:    model.HistoryCreated,
			NewValue:  string(model.BookingConfirmed),
			Notes:     fmt.Sprintf("%d place(s) on %s %s", params.Places, booking.BookingDate.Format(schedule.DateLayout), booking.StartTime),
			ActorID:   params.UserID,
			CreatedAt: now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return unavailable("insert booking history", err)
		}
		return nil
	})

	if err != nil {
		// A concurrent retry with the same idempotency key can lose the
		// insert race on the unique index; the winner's row is the answer.
		if params.IdempotencyKey != "" && isDuplicateKey(err) {
			existing, lookupErr := findByIdempotencyKey(s.db.WithContext(ctx), params.Calendar.ID, params.IdempotencyKey)
			if lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return booking, nil
}

// CancelBooking flips the booking to cancelled, releases its capacity and
// appends the audit row, all in one transaction. The status guard on the
// UPDATE makes a concurrent double-cancel release capacity exactly once.
func (s *gormStore) CancelBooking(ctx context.Context, params CancelBookingParams) (*model.Booking, error) {
	var booking model.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND organization_id = ?", params.BookingID, params.OrgID).
			First(&booking).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("booking %d: %w", params.BookingID, ErrNotFound)
		}
		if err != nil {
			return unavailable("load booking", err)
		}

		now := time.Now().UTC()
		res := tx.Model(&model.Booking{}).
			Where("id = ? AND booking_status = ?", booking.ID, model.BookingConfirmed).
			Updates(map[string]any{
				"booking_status":      model.BookingCancelled,
				"cancelled_at":        now,
				"cancelled_by":        params.ActorID,
				"cancellation_reason": params.Reason,
				"updated_at":          now,
			})
		if res.Error != nil {
			return unavailable("cancel booking", res.Error)
		}
		if res.RowsAffected == 0 {
			return Validationf("booking %s is already cancelled", booking.BookingReference)
		}

		if err := release(tx, &booking); err != nil {
			return err
		}

		entry := model.BookingHistory{
			BookingID:     booking.ID,
			Action:        model.HistoryCancelled,
			PreviousValue: string(model.BookingConfirmed),
			NewValue:      string(model.BookingCancelled),
			Notes:         params.Reason,
			ActorID:       params.ActorID,
			CreatedAt:     now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return unavailable("insert booking history", err)
		}

		booking.BookingStatus = model.BookingCancelled
		booking.CancelledAt = &now
		booking.CancelledBy = params.ActorID
		booking.CancellationReason = params.Reason
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (s *gormStore) RecordRefundRequested(ctx context.Context, bookingID int64, amount float64) error {
	entry := model.BookingHistory{
		BookingID: bookingID,
		Action:    model.HistoryRefundRequested,
		Notes:     fmt.Sprintf("refund of %.2f submitted to payment provider", amount),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return unavailable("insert booking history", err)
	}
	return nil
}

// RecordPaymentStatus applies an asynchronous payment-status report from the
// payment collaborator. A "refunded" report also marks the refund processed.
func (s *gormStore) RecordPaymentStatus(ctx context.Context, bookingReference string, status model.PaymentStatus, notes string) (*model.Booking, error) {
	var booking model.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("booking_reference = ?", bookingReference).First(&booking).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("booking %s: %w", bookingReference, ErrNotFound)
		}
		if err != nil {
			return unavailable("load booking", err)
		}

		previous := booking.PaymentStatus
		now := time.Now().UTC()
		updates := map[string]any{
			"payment_status": status,
			"updated_at":     now,
		}
		action := model.HistoryPaymentUpdated
		if status == model.PaymentRefunded {
			updates["refund_processed"] = true
			updates["refunded_at"] = now
			action = model.HistoryRefunded
		}
		if err := tx.Model(&booking).Updates(updates).Error; err != nil {
			return unavailable("update payment status", err)
		}

		entry := model.BookingHistory{
			BookingID:     booking.ID,
			Action:        action,
			PreviousValue: string(previous),
			NewValue:      string(status),
			Notes:         notes,
			CreatedAt:     now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return unavailable("insert booking history", err)
		}

		booking.PaymentStatus = status
		if status == model.PaymentRefunded {
			booking.RefundProcessed = true
			booking.RefundedAt = &now
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func findByIdempotencyKey(tx *gorm.DB, calendarID int64, key string) (*model.Booking, error) {
	var existing model.Booking
	err := tx.Where("calendar_id = ? AND idempotency_key = ?", calendarID, key).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("idempotency lookup", err)
	}
	return &existing, nil
}

func newBookingReference() string {
	return "BK-" + strings.ToUpper(uuid.NewString()[:8]) + "-" + strings.ToUpper(uuid.NewString()[9:13])
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
