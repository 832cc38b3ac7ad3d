package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"calendar-booking-backend/internal/model"
)

// Snapshot is the read-mostly scheduling configuration of one calendar.
// Staleness here only affects which slots are offered, never capacity
// correctness, so snapshots are cached with a short TTL and invalidated on
// admin writes.
type Snapshot struct {
	Calendar       model.Calendar
	Rules          []model.ScheduleRule
	Configurations []model.TimeSlotConfiguration
	BlockedPeriods []model.BlockedPeriod
}

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Snapshot loads (or serves from cache) a calendar's scheduling config,
	// scoped to the caller's organization.
	Snapshot(ctx context.Context, orgID, calendarID int64) (*Snapshot, error)
	// Invalidate drops the cached snapshot after an admin write.
	Invalidate(calendarID int64)

	// BookedCounts returns places_booked per slot instance (keyed by the
	// encoded slot id) for a calendar and date range.
	BookedCounts(ctx context.Context, calendarID int64, from, to time.Time) (map[string]int, error)

	CreateBooking(ctx context.Context, params CreateBookingParams) (*model.Booking, error)
	CancelBooking(ctx context.Context, params CancelBookingParams) (*model.Booking, error)

	GetBooking(ctx context.Context, orgID, bookingID int64) (*model.Booking, error)
	BookingHistory(ctx context.Context, orgID, bookingID int64) ([]model.BookingHistory, error)

	// RecordRefundRequested appends the audit row for an outbound refund
	// request accepted by the payment collaborator.
	RecordRefundRequested(ctx context.Context, bookingID int64, amount float64) error
	// RecordPaymentStatus applies an asynchronous payment-status report.
	RecordPaymentStatus(ctx context.Context, bookingReference string, status model.PaymentStatus, notes string) (*model.Booking, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db        *gorm.DB
	snapshots *cache.Cache
	ttl       time.Duration
}

// NewGormStore creates a new GORM-backed store with the given snapshot TTL.
func NewGormStore(db *gorm.DB, snapshotTTL time.Duration) Store {
	if snapshotTTL <= 0 {
		snapshotTTL = 30 * time.Second
	}
	return &gormStore{
		db:        db,
		snapshots: cache.New(snapshotTTL, 2*snapshotTTL),
		ttl:       snapshotTTL,
	}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func snapshotKey(calendarID int64) string {
	return fmt.Sprintf("calendar:%d", calendarID)
}

func (s *gormStore) Snapshot(ctx context.Context, orgID, calendarID int64) (*Snapshot, error) {
	if cached, found := s.snapshots.Get(snapshotKey(calendarID)); found {
		snap := cached.(*Snapshot)
		if snap.Calendar.OrganizationID == orgID {
			return snap, nil
		}
		// Cached under another tenant's lookup; fall through to a scoped load
		// so cross-organization access still fails with not found.
	}

	var cal model.Calendar
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", calendarID, orgID).
		First(&cal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("calendar %d: %w", calendarID, ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("load calendar", err)
	}

	snap := &Snapshot{Calendar: cal}
	if err := s.db.WithContext(ctx).
		Where("calendar_id = ?", calendarID).
		Find(&snap.Rules).Error; err != nil {
		return nil, unavailable("load schedule rules", err)
	}
	if err := s.db.WithContext(ctx).
		Preload("DurationOptions").
		Where("calendar_id = ?", calendarID).
		Find(&snap.Configurations).Error; err != nil {
		return nil, unavailable("load slot configurations", err)
	}
	if err := s.db.WithContext(ctx).
		Where("calendar_id = ?", calendarID).
		Find(&snap.BlockedPeriods).Error; err != nil {
		return nil, unavailable("load blocked periods", err)
	}

	s.snapshots.Set(snapshotKey(calendarID), snap, s.ttl)
	return snap, nil
}

func (s *gormStore) Invalidate(calendarID int64) {
	s.snapshots.Delete(snapshotKey(calendarID))
}

func (s *gormStore) GetBooking(ctx context.Context, orgID, bookingID int64) (*model.Booking, error) {
	var booking model.Booking
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", bookingID, orgID).
		First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("load booking", err)
	}
	return &booking, nil
}

func (s *gormStore) BookingHistory(ctx context.Context, orgID, bookingID int64) ([]model.BookingHistory, error) {
	if _, err := s.GetBooking(ctx, orgID, bookingID); err != nil {
		return nil, err
	}
	var entries []model.BookingHistory
	if err := s.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, unavailable("load booking history", err)
	}
	return entries, nil
}

// unavailable wraps an infrastructure failure so callers can branch on
// ErrStoreUnavailable and retry with backoff.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
