package model

import "time"

// RuleAction says what a schedule rule does to the dates it covers.
type RuleAction string

const (
	RuleOpen         RuleAction = "open"
	RuleClose        RuleAction = "close"
	RuleSpecialHours RuleAction = "special_hours"
)

// ScheduleRule is an ordered open/close override applied to a date range.
// Rules are applied in ascending Order; the last rule whose range contains a
// date wins. Ties on Order are broken by the most recently created rule
// (CreatedAt, then ID).
type ScheduleRule struct {
	ID         int64      `gorm:"primaryKey" json:"id"`
	CalendarID int64      `gorm:"index;not null" json:"calendar_id"`
	Action     RuleAction `gorm:"size:32;not null" json:"action"`
	Order      int        `gorm:"column:rule_order;not null" json:"order"`

	StartDate time.Time  `gorm:"type:date;not null" json:"start_date"`
	EndDate   *time.Time `gorm:"type:date" json:"end_date"` // nil = open-ended

	// Special-hours window, "15:04" clock strings. Only read when Action is
	// RuleSpecialHours.
	OpenTime  string `gorm:"size:8" json:"open_time"`
	CloseTime string `gorm:"size:8" json:"close_time"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// Covers reports whether the rule's date range contains the given day.
func (r ScheduleRule) Covers(day time.Time) bool {
	if day.Before(r.StartDate) {
		return false
	}
	if r.EndDate != nil && day.After(*r.EndDate) {
		return false
	}
	return true
}
