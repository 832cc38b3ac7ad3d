package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"calendar-booking-backend/internal/db"
	"calendar-booking-backend/internal/model"
	"calendar-booking-backend/internal/schedule"
)

// newSQLiteStore opens a per-test in-memory database. A single connection
// keeps concurrent transactions serialized the way tests need them to be.
func newSQLiteStore(t *testing.T) (Store, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return NewGormStore(gormDB, time.Minute), gormDB
}

// seedSlot creates a calendar with one Wednesday configuration and returns
// the slot instance for 2026-09-02, which is a Wednesday.
func seedSlot(t *testing.T, gdb *gorm.DB, places int) (*model.Calendar, schedule.SlotInstance) {
	t.Helper()

	cal := &model.Calendar{
		OrganizationID:     1,
		Name:               "Court 1",
		Status:             model.CalendarOpen,
		MaxDaysInAdvance:   365,
		AllowCancellations: true,
	}
	require.NoError(t, gdb.Create(cal).Error)

	cfg := &model.TimeSlotConfiguration{
		CalendarID:         cal.ID,
		DaysOfWeek:         model.NewDaysOfWeek(time.Wednesday),
		StartTime:          "10:00",
		EffectiveDateStart: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		RecurrenceWeeks:    1,
		PlacesAvailable:    places,
		MinPlacesRequired:  1,
		DurationOptions:    []model.DurationOption{{DurationMinutes: 60, Price: 25}},
	}
	require.NoError(t, gdb.Create(cfg).Error)

	return cal, schedule.SlotInstance{
		CalendarID:        cal.ID,
		ConfigurationID:   cfg.ID,
		DurationOptionID:  cfg.DurationOptions[0].ID,
		Date:              time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
		StartMinute:       10 * 60,
		DurationMinutes:   60,
		Price:             25,
		PlacesAvailable:   places,
		MinPlacesRequired: 1,
	}
}

func ledgerFor(t *testing.T, gdb *gorm.DB, slot schedule.SlotInstance) model.SlotLedger {
	t.Helper()
	var row model.SlotLedger
	err := gdb.Where("configuration_id = ? AND duration_option_id = ?",
		slot.ConfigurationID, slot.DurationOptionID).First(&row).Error
	require.NoError(t, err)
	return row
}

func TestCreateBooking_ReservesAndAudits(t *testing.T) {
	s, gdb := newSQLiteStore(t)
	cal, slot := seedSlot(t, gdb, 2)
	ctx := context.Background()

	booking, err := s.CreateBooking(ctx, CreateBookingParams{
		Calendar: cal,
		Slot:     slot,
		UserID:   7,
		Places:   1,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(booking.BookingReference, "BK-"))
	assert.Equal(t, model.BookingConfirmed, booking.BookingStatus)
	assert.Equal(t, model.PaymentPending, booking.PaymentStatus)
	assert.Equal(t, 25.0, booking.PricePerPlace)
	assert.Equal(t, 25.0, booking.TotalPrice)
	assert.Equal(t, "10:00", booking.StartTime)

	assert.Equal(t, 1, ledgerFor(t, gdb, slot).PlacesBooked)

	history, err := s.BookingHistory(ctx, 1, booking.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.HistoryCreated, history[0].Action)
	assert.Equal(t, int64(7), history[0].ActorID)
}

func TestCreateBooking_CapacityExceeded(t *testing.T) {
	s, gdb := newSQLiteStore(t)
	cal, slot := seedSlot(t, gdb, 2)
	ctx := context.Background()

	_, err := s.CreateBooking(ctx, CreateBookingParams{Calendar: cal, Slot: slot, UserID: 7, Places: 2})
	require.NoError(t, err)

	_, err = s.CreateBooking(ctx, CreateBookingParams{Calendar: cal, Slot: slot, UserID: 8, Places: 1})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// The failed attempt must not leave any partial state behind.
	assert.Equal(t, 2, ledgerFor(t, gdb, slot).PlacesBooked)
	var bookings int64
	require.NoError(t, gdb.Model(&model.Booking{}).Count(&bookings).Error)
	assert.Equal(t, int64(1), bookings)
}

func TestCreateBooking_IdempotentRetry(t *testing.T) {
	s, gdb := newSQLiteStore(t)
	cal, slot := seedSlot(t, gdb, 4)
	ctx := context.Background()

	params := CreateBookingParams{
		Calendar:       cal,
		Slot:           slot,
		UserID:         7,
		Places:         2,
		IdempotencyKey: "retry-token-1",
	}

	first, err := s.CreateBooking(ctx, params)
	require.NoError(t, err)
	second, err := s.CreateBooking(ctx, params)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.BookingReference, second.BookingReference)
	assert.Equal(t, 2, ledgerFor(t, gdb, slot).PlacesBooked, "the retry must not double-reserve")
}

func TestCreateBooking_ConcurrentLastPlaces(t *testing.T) {
	s, gdb := newSQLiteStore(t)
	cal, slot := seedSlot(t, gdb, 2)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.CreateBooking(ctx, CreateBookingParams{
				Calendar: cal,
				Slot:     slot,
				UserID:   int64(100 + i),
				Places:   2,
			})
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrCapacityExceeded):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one booking wins the last places")
	assert.Equal(t, 1, losses)
	assert.Equal(t, 2, ledgerFor(t, gdb, slot).PlacesBooked)
}

func TestCancelBooking_ReleasesCapacity(t *testing.T) {
	s, gdb := newSQLiteStore(t)
	cal, slot := seedSlot(t, gdb, 2)
	ctx := context.Background()

	booking, err := s.CreateBooking(ctx, CreateBookingParams{Calendar: cal, Slot: slot, UserID: 7, Places: 2})
	require.NoError(t, err)

	cancelled, err := s.CancelBooking(ctx, CancelBookingParams{
		BookingID: booking.ID,
		OrgID:     1,
		ActorID:   7,
		Reason:    "schedule change",
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.BookingStatus)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, "schedule change", cancelled.CancellationReason)

	assert.Equal(t, 0, ledgerFor(t, gdb, slot).PlacesBooked)

	history, err := s.BookingHistory(ctx, 1, booking.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.HistoryCancelled, history[1].Action)

	// A second cancel is rejected and must not release capacity again.
	_, err = s.CancelBooking(ctx, CancelBookingParams{BookingID: booking.ID, OrgID: 1, ActorID: 7, Reason: "again"})
	assert.True(t, IsValidation(err))
	assert.Equal(t, 0, ledgerFor(t, gdb, slot).PlacesBooked)
}

func TestRecordPaymentStatus_Refunded(t *testing.T) {
	s, gdb := newSQLiteStore(t)
	cal, slot := seedSlot(t, gdb, 2)
	ctx := context.Background()

	booking, err := s.CreateBooking(ctx, CreateBookingParams{Calendar: cal, Slot: slot, UserID: 7, Places: 1})
	require.NoError(t, err)

	updated, err := s.RecordPaymentStatus(ctx, booking.BookingReference, model.PaymentRefunded, "provider ref 42")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentRefunded, updated.PaymentStatus)
	assert.True(t, updated.RefundProcessed)
	assert.NotNil(t, updated.RefundedAt)

	history, err := s.BookingHistory(ctx, 1, booking.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, model.HistoryRefunded, last.Action)
	assert.Equal(t, string(model.PaymentPending), last.PreviousValue)
	assert.Equal(t, string(model.PaymentRefunded), last.NewValue)

	_, err = s.RecordPaymentStatus(ctx, "BK-DOES-NOT-EXIST", model.PaymentPaid, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookedCounts(t *testing.T) {
	s, gdb := newSQLiteStore(t)
	cal, slot := seedSlot(t, gdb, 4)
	ctx := context.Background()

	_, err := s.CreateBooking(ctx, CreateBookingParams{Calendar: cal, Slot: slot, UserID: 7, Places: 3})
	require.NoError(t, err)

	counts, err := s.BookedCounts(ctx, cal.ID, slot.Date, slot.Date)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, 3, counts[slot.ID().Encode()])
}

func TestSnapshot_CachesAndInvalidates(t *testing.T) {
	s, gdb := newSQLiteStore(t)
	cal, _ := seedSlot(t, gdb, 2)
	ctx := context.Background()

	snap, err := s.Snapshot(ctx, 1, cal.ID)
	require.NoError(t, err)
	assert.Empty(t, snap.Rules)

	rule := model.ScheduleRule{CalendarID: cal.ID, Action: model.RuleClose, StartDate: time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, gdb.Create(&rule).Error)

	cached, err := s.Snapshot(ctx, 1, cal.ID)
	require.NoError(t, err)
	assert.Empty(t, cached.Rules, "a cached snapshot does not see uninvalidated writes")

	s.Invalidate(cal.ID)
	fresh, err := s.Snapshot(ctx, 1, cal.ID)
	require.NoError(t, err)
	assert.Len(t, fresh.Rules, 1)
}

func TestSnapshot_ScopedToOrganization(t *testing.T) {
	s, gdb := newSQLiteStore(t)
	cal, _ := seedSlot(t, gdb, 2)
	ctx := context.Background()

	_, err := s.Snapshot(ctx, 2, cal.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The miss must not poison the cache for the owning organization.
	snap, err := s.Snapshot(ctx, 1, cal.ID)
	require.NoError(t, err)
	assert.Equal(t, cal.ID, snap.Calendar.ID)
}
