package model

import "time"

// SlotLedger is the per-slot-instance capacity counter and the single
// serialization point of the engine. Rows are created lazily on first
// reservation, so recurring templates never produce unbounded row growth.
// All increments go through one conditional UPDATE; PlacesBooked can never
// exceed PlacesAvailable or drop below zero.
type SlotLedger struct {
	ID               int64     `gorm:"primaryKey"`
	CalendarID       int64     `gorm:"index;not null"`
	ConfigurationID  int64     `gorm:"not null;uniqueIndex:idx_slot_ledger_instance"`
	SlotDate         time.Time `gorm:"type:date;not null;uniqueIndex:idx_slot_ledger_instance"`
	DurationOptionID int64     `gorm:"not null;uniqueIndex:idx_slot_ledger_instance"`

	PlacesAvailable int `gorm:"not null"`
	PlacesBooked    int `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
