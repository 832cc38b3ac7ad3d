package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"calendar-booking-backend/internal/model"
	"calendar-booking-backend/internal/schedule"
)

// The capacity ledger is the only mutable shared state in the engine. Every
// reserve is a single conditional UPDATE so that concurrent bookings of the
// last remaining place resolve to exactly one winner, with no in-process
// locks held across store round trips.

// reserve increments places_booked for one slot instance inside tx, creating
// the ledger row on first use. Returns ErrCapacityExceeded when the
// remaining capacity is insufficient.
func reserve(tx *gorm.DB, slot schedule.SlotInstance, quantity int) error {
	row := model.SlotLedger{
		CalendarID:       slot.CalendarID,
		ConfigurationID:  slot.ConfigurationID,
		SlotDate:         slot.Date,
		DurationOptionID: slot.DurationOptionID,
		PlacesAvailable:  slot.PlacesAvailable,
		PlacesBooked:     0,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "configuration_id"}, {Name: "slot_date"}, {Name: "duration_option_id"},
		},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return unavailable("ensure ledger row", err)
	}

	res := tx.Model(&model.SlotLedger{}).
		Where("configuration_id = ? AND slot_date = ? AND duration_option_id = ?",
			slot.ConfigurationID, slot.Date, slot.DurationOptionID).
		Where("places_booked + ? <= places_available", quantity).
		UpdateColumn("places_booked", gorm.Expr("places_booked + ?", quantity))
	if res.Error != nil {
		return unavailable("reserve capacity", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCapacityExceeded
	}
	return nil
}

// release decrements places_booked on cancellation. The guard keeps the
// counter from going below zero even if a release is replayed.
func release(tx *gorm.DB, booking *model.Booking) error {
	res := tx.Model(&model.SlotLedger{}).
		Where("configuration_id = ? AND slot_date = ? AND duration_option_id = ?",
			booking.ConfigurationID, booking.BookingDate, booking.DurationOptionID).
		Where("places_booked >= ?", booking.PlacesBooked).
		UpdateColumn("places_booked", gorm.Expr("places_booked - ?", booking.PlacesBooked))
	if res.Error != nil {
		return unavailable("release capacity", res.Error)
	}
	return nil
}

func (s *gormStore) BookedCounts(ctx context.Context, calendarID int64, from, to time.Time) (map[string]int, error) {
	var rows []model.SlotLedger
	if err := s.db.WithContext(ctx).
		Where("calendar_id = ? AND slot_date >= ? AND slot_date <= ?",
			calendarID, schedule.DateOnly(from), schedule.DateOnly(to)).
		Find(&rows).Error; err != nil {
		return nil, unavailable("load slot ledgers", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		id := schedule.SlotID{
			ConfigurationID:  row.ConfigurationID,
			Date:             schedule.DateOnly(row.SlotDate),
			DurationOptionID: row.DurationOptionID,
		}
		counts[id.Encode()] = row.PlacesBooked
	}
	return counts, nil
}
