package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_Snapshot_NotFound(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "calendars"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.Snapshot(context.Background(), 1, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Snapshot_StoreUnavailable(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "calendars"`)).
		WillReturnError(errors.New("connection refused"))

	_, err := s.Snapshot(context.Background(), 1, 42)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_BookedCounts_KeyedBySlotID(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, time.Minute)

	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "slot_ledgers" WHERE calendar_id = $1 AND slot_date >= $2 AND slot_date <= $3`)).
		WithArgs(int64(1), day, day).
		WillReturnRows(sqlmock.NewRows([]string{"id", "calendar_id", "configuration_id", "slot_date", "duration_option_id", "places_available", "places_booked"}).
			AddRow(1, 1, 3, day, 9, 4, 2))

	counts, err := s.BookedCounts(context.Background(), 1, day, day)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"3:2026-09-02:9": 2}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
