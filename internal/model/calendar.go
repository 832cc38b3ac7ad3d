package model

import "time"

// CalendarStatus is the base open/closed state of a calendar, used for any
// date that no schedule rule covers.
type CalendarStatus string

const (
	CalendarOpen   CalendarStatus = "open"
	CalendarClosed CalendarStatus = "closed"
)

// Calendar is the root of a booking subtree. It owns the advance-booking
// window, the cancellation policy and the reminder settings for every
// booking made against it.
type Calendar struct {
	ID             int64          `gorm:"primaryKey" json:"id"`
	OrganizationID int64          `gorm:"index;not null" json:"organization_id"`
	Name           string         `gorm:"size:256;not null" json:"name"`
	Description    string         `gorm:"size:1024" json:"description"`
	Status         CalendarStatus `gorm:"size:16;not null;default:open" json:"status"`

	MinDaysInAdvance int `gorm:"not null;default:0" json:"min_days_in_advance"`
	MaxDaysInAdvance int `gorm:"not null;default:365" json:"max_days_in_advance"`

	AllowCancellations         bool `gorm:"not null;default:true" json:"allow_cancellations"`
	CancelDaysInAdvance        int  `gorm:"not null;default:0" json:"cancel_days_in_advance"`
	RefundPaymentAutomatically bool `gorm:"not null" json:"refund_payment_automatically"`

	RemindersEnabled       bool `gorm:"not null" json:"reminders_enabled"`
	ReminderHoursInAdvance int  `gorm:"not null;default:24" json:"reminder_hours_in_advance"`

	// Comma-separated list of accepted payment methods, e.g. "card,invoice".
	PaymentMethods string `gorm:"size:256" json:"payment_methods"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	// Associations
	ScheduleRules  []ScheduleRule          `gorm:"foreignKey:CalendarID" json:"schedule_rules,omitempty"`
	Configurations []TimeSlotConfiguration `gorm:"foreignKey:CalendarID" json:"configurations,omitempty"`
	BlockedPeriods []BlockedPeriod         `gorm:"foreignKey:CalendarID" json:"blocked_periods,omitempty"`
}
