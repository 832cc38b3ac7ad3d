package model

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// DaysOfWeek is a comma-separated set of weekday numbers (0 = Sunday, per
// time.Weekday) stored as a plain string column.
type DaysOfWeek string

// NewDaysOfWeek builds a normalized set from the given weekdays.
func NewDaysOfWeek(days ...time.Weekday) DaysOfWeek {
	seen := make(map[int]bool, len(days))
	var nums []int
	for _, d := range days {
		n := int(d)
		if !seen[n] {
			seen[n] = true
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return DaysOfWeek(strings.Join(parts, ","))
}

// Contains reports whether the set includes the given weekday.
func (d DaysOfWeek) Contains(day time.Weekday) bool {
	for _, w := range d.Weekdays() {
		if w == day {
			return true
		}
	}
	return false
}

// Weekdays returns the set as a slice, skipping malformed entries.
func (d DaysOfWeek) Weekdays() []time.Weekday {
	if d == "" {
		return nil
	}
	var out []time.Weekday
	for _, part := range strings.Split(string(d), ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 6 {
			continue
		}
		out = append(out, time.Weekday(n))
	}
	return out
}
