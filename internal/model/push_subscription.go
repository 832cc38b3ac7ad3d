package model

import "time"

// PushSubscription holds the information for a browser push subscription
// used by the booking-reminder worker.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	UserID    int64     `gorm:"index"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Calendars []*Calendar `gorm:"many2many:subscription_calendar_mapping;"`
}
