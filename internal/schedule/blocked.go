package schedule

import (
	"calendar-booking-backend/internal/model"
)

// FilterBlocked removes every instance that intersects a blocked period.
// Partial overlap of a slot's duration with a blocked time window removes
// the whole slot; there are no partial slots.
func FilterBlocked(instances []SlotInstance, periods []model.BlockedPeriod) []SlotInstance {
	if len(periods) == 0 {
		return instances
	}
	out := instances[:0]
	for _, inst := range instances {
		if !isBlocked(inst, periods) {
			out = append(out, inst)
		}
	}
	return out
}

func isBlocked(inst SlotInstance, periods []model.BlockedPeriod) bool {
	for _, p := range periods {
		if p.IsRecurring() {
			if recurringBlocks(inst, p) {
				return true
			}
			continue
		}
		if absoluteBlocks(inst, p) {
			return true
		}
	}
	return false
}

// absoluteBlocks checks a date-range block. EndDate is inclusive; a nil
// EndDate blocks everything from StartDate onward.
func absoluteBlocks(inst SlotInstance, p model.BlockedPeriod) bool {
	if p.StartDate == nil {
		return false
	}
	if inst.Date.Before(DateOnly(*p.StartDate)) {
		return false
	}
	if p.EndDate != nil && inst.Date.After(DateOnly(*p.EndDate)) {
		return false
	}
	return true
}

// recurringBlocks checks a weekday/time-window block against the slot's
// whole [start, end) interval.
func recurringBlocks(inst SlotInstance, p model.BlockedPeriod) bool {
	if !p.DaysOfWeek.Contains(inst.Date.Weekday()) {
		return false
	}
	blockStart, err := ParseClock(p.StartTime)
	if err != nil {
		return false
	}
	blockEnd, err := ParseClock(p.EndTime)
	if err != nil {
		return false
	}
	return inst.StartMinute < blockEnd && blockStart < inst.EndMinute()
}
