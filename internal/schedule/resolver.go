package schedule

import (
	"sort"
	"time"

	"calendar-booking-backend/internal/model"
)

// ClockWindow is a half-open [StartMinute, EndMinute) daily time window.
type ClockWindow struct {
	StartMinute int
	EndMinute   int
}

// DayAvailability is the resolved day-level signal for one date.
type DayAvailability struct {
	Open bool
	// Window is non-nil when a special-hours rule restricts the day; slots
	// must then fit entirely inside it.
	Window *ClockWindow
}

// ResolveDays merges a calendar's schedule rules into a per-date
// availability map keyed by DateLayout strings. Rules are applied in
// ascending Order and the last rule covering a date wins; ties on Order go
// to the most recently created rule (CreatedAt, then ID). Dates no rule
// covers fall back to the calendar's base status.
func ResolveDays(cal *model.Calendar, rules []model.ScheduleRule, from, to time.Time) map[string]DayAvailability {
	sorted := make([]model.ScheduleRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	base := cal.Status == model.CalendarOpen
	days := make(map[string]DayAvailability)

	for day := DateOnly(from); !day.After(DateOnly(to)); day = day.AddDate(0, 0, 1) {
		avail := DayAvailability{Open: base}
		for _, rule := range sorted {
			if !rule.Covers(day) {
				continue
			}
			switch rule.Action {
			case model.RuleOpen:
				avail = DayAvailability{Open: true}
			case model.RuleClose:
				avail = DayAvailability{Open: false}
			case model.RuleSpecialHours:
				avail = DayAvailability{Open: true, Window: specialWindow(rule)}
			}
		}
		days[day.Format(DateLayout)] = avail
	}
	return days
}

// specialWindow parses a special-hours rule window. A malformed or inverted
// window degrades to plain open hours; admin handlers validate rule input,
// so this only guards legacy rows.
func specialWindow(rule model.ScheduleRule) *ClockWindow {
	start, err := ParseClock(rule.OpenTime)
	if err != nil {
		return nil
	}
	end, err := ParseClock(rule.CloseTime)
	if err != nil || end <= start {
		return nil
	}
	return &ClockWindow{StartMinute: start, EndMinute: end}
}
