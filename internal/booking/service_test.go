package booking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"calendar-booking-backend/internal/availability"
	"calendar-booking-backend/internal/db"
	"calendar-booking-backend/internal/model"
	"calendar-booking-backend/internal/store"
)

// Pinned to Monday 2026-08-31. The seeded calendar generates Wednesday
// slots, so 2026-09-02 is two days out and 2026-09-09 nine days out.
var testNow = time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

type refundCall struct {
	bookingID int64
	reference string
	amount    float64
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []refundCall
}

func (f *fakeDispatcher) Dispatch(bookingID int64, bookingReference string, amount float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, refundCall{bookingID: bookingID, reference: bookingReference, amount: amount})
}

type testEnv struct {
	svc      *Service
	store    store.Store
	db       *gorm.DB
	refunds  *fakeDispatcher
	calendar *model.Calendar
}

func newTestEnv(t *testing.T, seed func(cal *model.Calendar, cfg *model.TimeSlotConfiguration)) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))

	cal := &model.Calendar{
		OrganizationID:             1,
		Name:                       "Court 1",
		Status:                     model.CalendarOpen,
		MinDaysInAdvance:           0,
		MaxDaysInAdvance:           30,
		AllowCancellations:         true,
		CancelDaysInAdvance:        3,
		RefundPaymentAutomatically: true,
		PaymentMethods:             "card,invoice",
	}
	cfg := &model.TimeSlotConfiguration{
		DaysOfWeek:         model.NewDaysOfWeek(time.Wednesday),
		StartTime:          "10:00",
		EffectiveDateStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		RecurrenceWeeks:    1,
		PlacesAvailable:    2,
		MinPlacesRequired:  1,
		DurationOptions:    []model.DurationOption{{DurationMinutes: 60, Price: 25}},
	}
	if seed != nil {
		seed(cal, cfg)
	}
	require.NoError(t, gormDB.Create(cal).Error)
	cfg.CalendarID = cal.ID
	require.NoError(t, gormDB.Create(cfg).Error)

	st := store.NewGormStore(gormDB, time.Minute)
	avail := availability.NewService(st)
	avail.Now = func() time.Time { return testNow }

	refunds := &fakeDispatcher{}
	svc := NewService(st, avail, refunds)
	svc.Now = func() time.Time { return testNow }

	return &testEnv{svc: svc, store: st, db: gormDB, refunds: refunds, calendar: cal}
}

// slotID returns the encoded identifier of the configuration's slot on the
// given date.
func (e *testEnv) slotID(t *testing.T, date string) string {
	t.Helper()
	var cfg model.TimeSlotConfiguration
	require.NoError(t, e.db.Preload("DurationOptions").Where("calendar_id = ?", e.calendar.ID).First(&cfg).Error)
	return fmt.Sprintf("%d:%s:%d", cfg.ID, date, cfg.DurationOptions[0].ID)
}

func (e *testEnv) ledgerBooked(t *testing.T) int {
	t.Helper()
	var row model.SlotLedger
	require.NoError(t, e.db.Where("calendar_id = ?", e.calendar.ID).First(&row).Error)
	return row.PlacesBooked
}

func TestCreate_BooksSlot(t *testing.T) {
	env := newTestEnv(t, nil)

	booking, err := env.svc.Create(context.Background(), CreateRequest{
		OrgID:         1,
		CalendarID:    env.calendar.ID,
		SlotID:        env.slotID(t, "2026-09-09"),
		Places:        2,
		UserID:        7,
		PaymentMethod: "card",
	})
	require.NoError(t, err)

	assert.Equal(t, model.BookingConfirmed, booking.BookingStatus)
	assert.Equal(t, 2, booking.PlacesBooked)
	assert.Equal(t, 50.0, booking.TotalPrice)
	assert.Equal(t, 2, env.ledgerBooked(t))
}

func TestCreate_MalformedSlotID(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.svc.Create(context.Background(), CreateRequest{
		OrgID:      1,
		CalendarID: env.calendar.ID,
		SlotID:     "not-a-slot",
		Places:     1,
		UserID:     7,
	})
	assert.True(t, store.IsValidation(err))
}

func TestCreate_RejectedPaymentMethod(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.svc.Create(context.Background(), CreateRequest{
		OrgID:         1,
		CalendarID:    env.calendar.ID,
		SlotID:        env.slotID(t, "2026-09-09"),
		Places:        1,
		UserID:        7,
		PaymentMethod: "bitcoin",
	})
	assert.True(t, store.IsValidation(err))
	var bookings int64
	require.NoError(t, env.db.Model(&model.Booking{}).Count(&bookings).Error)
	assert.Zero(t, bookings)
}

func TestCreate_BelowMinimumPlaces(t *testing.T) {
	env := newTestEnv(t, func(cal *model.Calendar, cfg *model.TimeSlotConfiguration) {
		cfg.PlacesAvailable = 4
		cfg.MinPlacesRequired = 2
	})

	_, err := env.svc.Create(context.Background(), CreateRequest{
		OrgID:      1,
		CalendarID: env.calendar.ID,
		SlotID:     env.slotID(t, "2026-09-09"),
		Places:     1,
		UserID:     7,
	})
	assert.ErrorIs(t, err, store.ErrCapacityExceeded)
}

func TestCreate_SlotOutsideWindow(t *testing.T) {
	env := newTestEnv(t, nil)

	// 2026-11-04 is a Wednesday, but beyond the 30-day advance limit.
	_, err := env.svc.Create(context.Background(), CreateRequest{
		OrgID:      1,
		CalendarID: env.calendar.ID,
		SlotID:     env.slotID(t, "2026-11-04"),
		Places:     1,
		UserID:     7,
	})
	assert.True(t, store.IsValidation(err))
}

func TestCancel_InsideWindowRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// 2026-09-02 is two days out, inside the 3-day cancellation window.
	booking, err := env.svc.Create(ctx, CreateRequest{
		OrgID:      1,
		CalendarID: env.calendar.ID,
		SlotID:     env.slotID(t, "2026-09-02"),
		Places:     1,
		UserID:     7,
	})
	require.NoError(t, err)

	_, err = env.svc.Cancel(ctx, 1, booking.ID, 7, "changed my mind")
	assert.ErrorIs(t, err, store.ErrCancellationWindowClosed)
	assert.Equal(t, 1, env.ledgerBooked(t), "a rejected cancel must not release capacity")
	assert.Empty(t, env.refunds.calls)
}

func TestCancel_OutsideWindowReleasesAndRefunds(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	booking, err := env.svc.Create(ctx, CreateRequest{
		OrgID:      1,
		CalendarID: env.calendar.ID,
		SlotID:     env.slotID(t, "2026-09-09"),
		Places:     2,
		UserID:     7,
	})
	require.NoError(t, err)

	cancelled, err := env.svc.Cancel(ctx, 1, booking.ID, 7, "schedule change")
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.BookingStatus)
	assert.Equal(t, 0, env.ledgerBooked(t))

	require.Len(t, env.refunds.calls, 1)
	assert.Equal(t, booking.ID, env.refunds.calls[0].bookingID)
	assert.Equal(t, booking.BookingReference, env.refunds.calls[0].reference)
	assert.Equal(t, 50.0, env.refunds.calls[0].amount)
}

func TestCancel_DisallowedByCalendar(t *testing.T) {
	env := newTestEnv(t, func(cal *model.Calendar, cfg *model.TimeSlotConfiguration) {
		cal.AllowCancellations = false
	})
	ctx := context.Background()

	booking, err := env.svc.Create(ctx, CreateRequest{
		OrgID:      1,
		CalendarID: env.calendar.ID,
		SlotID:     env.slotID(t, "2026-09-09"),
		Places:     1,
		UserID:     7,
	})
	require.NoError(t, err)

	_, err = env.svc.Cancel(ctx, 1, booking.ID, 7, "please")
	assert.ErrorIs(t, err, store.ErrCancellationWindowClosed)
}

func TestCancel_NoRefundWhenNotAutomatic(t *testing.T) {
	env := newTestEnv(t, func(cal *model.Calendar, cfg *model.TimeSlotConfiguration) {
		cal.RefundPaymentAutomatically = false
	})
	ctx := context.Background()

	booking, err := env.svc.Create(ctx, CreateRequest{
		OrgID:      1,
		CalendarID: env.calendar.ID,
		SlotID:     env.slotID(t, "2026-09-09"),
		Places:     1,
		UserID:     7,
	})
	require.NoError(t, err)

	_, err = env.svc.Cancel(ctx, 1, booking.ID, 7, "schedule change")
	require.NoError(t, err)
	assert.Empty(t, env.refunds.calls)
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	booking, err := env.svc.Create(ctx, CreateRequest{
		OrgID:      1,
		CalendarID: env.calendar.ID,
		SlotID:     env.slotID(t, "2026-09-09"),
		Places:     1,
		UserID:     7,
	})
	require.NoError(t, err)
	_, err = env.svc.Cancel(ctx, 1, booking.ID, 7, "schedule change")
	require.NoError(t, err)

	history, err := env.svc.History(ctx, 1, booking.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.HistoryCreated, history[0].Action)
	assert.Equal(t, model.HistoryCancelled, history[1].Action)

	_, err = env.svc.History(ctx, 2, booking.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "history is scoped to the owning organization")
}
