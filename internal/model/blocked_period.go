package model

import "time"

// BlockedPeriod removes generated slot instances from availability. It is
// either absolute (a date range) or recurring (weekdays plus a daily time
// window). A slot whose duration only partially overlaps a blocked time
// window is still removed entirely.
type BlockedPeriod struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	CalendarID int64  `gorm:"index;not null" json:"calendar_id"`
	Reason     string `gorm:"size:256" json:"reason"`

	// Absolute block: both dates set (EndDate inclusive).
	StartDate *time.Time `gorm:"type:date" json:"start_date"`
	EndDate   *time.Time `gorm:"type:date" json:"end_date"`

	// Recurring block: weekday set plus a half-open [StartTime, EndTime)
	// clock window.
	DaysOfWeek DaysOfWeek `gorm:"size:32" json:"days_of_week"`
	StartTime  string     `gorm:"size:8" json:"start_time"`
	EndTime    string     `gorm:"size:8" json:"end_time"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// IsRecurring reports whether the block is the weekday/time variant.
func (b BlockedPeriod) IsRecurring() bool {
	return b.DaysOfWeek != "" && b.StartTime != "" && b.EndTime != ""
}
