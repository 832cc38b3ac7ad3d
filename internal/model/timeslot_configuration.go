package model

import "time"

// TimeSlotConfiguration is a recurring slot template. Concrete slot
// instances are derived from it on demand and never persisted; the
// (configuration, date, duration option) triple is the bookable unit.
type TimeSlotConfiguration struct {
	ID         int64 `gorm:"primaryKey" json:"id"`
	CalendarID int64 `gorm:"index;not null" json:"calendar_id"`

	DaysOfWeek DaysOfWeek `gorm:"size:32;not null" json:"days_of_week"`
	StartTime  string     `gorm:"size:8;not null" json:"start_time"` // "15:04" clock string

	EffectiveDateStart time.Time  `gorm:"type:date;not null" json:"effective_date_start"`
	EffectiveDateEnd   *time.Time `gorm:"type:date" json:"effective_date_end"` // nil = open-ended

	// Repeat every N weeks counted from EffectiveDateStart aligned to the
	// slot's weekday. 1 means every matching week.
	RecurrenceWeeks int `gorm:"not null;default:1" json:"recurrence_weeks"`

	PlacesAvailable   int `gorm:"not null" json:"places_available"`
	MinPlacesRequired int `gorm:"not null;default:1" json:"min_places_required"`

	// Higher Order wins when two configurations would generate overlapping
	// instances for the same date and time.
	Order int `gorm:"column:config_order;not null" json:"order"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	// Associations
	DurationOptions []DurationOption `gorm:"foreignKey:ConfigurationID" json:"duration_options,omitempty"`
}

// DurationOption is one selectable duration/price pair of a configuration.
type DurationOption struct {
	ID              int64   `gorm:"primaryKey" json:"id"`
	ConfigurationID int64   `gorm:"index;not null" json:"configuration_id"`
	DurationMinutes int     `gorm:"not null" json:"duration_minutes"`
	Price           float64 `gorm:"not null" json:"price"`
	Label           string  `gorm:"size:128" json:"label"`
	Order           int     `gorm:"column:option_order;not null" json:"order"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
