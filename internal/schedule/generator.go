package schedule

import (
	"log"
	"sort"
	"time"

	"calendar-booking-backend/internal/model"
)

type span struct {
	start int
	end   int
}

func (a span) overlaps(b span) bool {
	return a.start < b.end && b.start < a.end
}

// GenerateSlots expands recurring slot configurations into concrete
// instances for every date in [from, to] whose day-level availability is
// open. When two configurations would generate overlapping instances for the
// same date and time, the one with the higher Order wins and the other's
// instances are suppressed for that date; the conflict is logged, never
// fatal.
func GenerateSlots(configs []model.TimeSlotConfiguration, days map[string]DayAvailability, from, to time.Time) []SlotInstance {
	sorted := make([]model.TimeSlotConfiguration, len(configs))
	copy(sorted, configs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order > sorted[j].Order
		}
		return sorted[i].ID < sorted[j].ID
	})

	claimed := make(map[string][]span)
	var out []SlotInstance

	for _, cfg := range sorted {
		startMinute, err := ParseClock(cfg.StartTime)
		if err != nil {
			log.Printf("skipping configuration %d: %v", cfg.ID, err)
			continue
		}
		options := sortedOptions(cfg.DurationOptions)
		if len(options) == 0 {
			continue
		}
		maxDuration := 0
		for _, opt := range options {
			if opt.DurationMinutes > maxDuration {
				maxDuration = opt.DurationMinutes
			}
		}
		claim := span{start: startMinute, end: startMinute + maxDuration}

		for day := DateOnly(from); !day.After(DateOnly(to)); day = day.AddDate(0, 0, 1) {
			key := day.Format(DateLayout)
			avail, ok := days[key]
			if !ok || !avail.Open {
				continue
			}
			if !cfg.DaysOfWeek.Contains(day.Weekday()) {
				continue
			}
			if !effectiveOn(cfg, day) || !onRecurrence(cfg, day) {
				continue
			}
			if conflict := overlapAny(claimed[key], claim); conflict {
				log.Printf("configuration conflict: configuration %d overlaps a higher-priority configuration on %s at %s, suppressed",
					cfg.ID, key, cfg.StartTime)
				continue
			}
			claimed[key] = append(claimed[key], claim)

			for _, opt := range options {
				if avail.Window != nil {
					fits := startMinute >= avail.Window.StartMinute &&
						startMinute+opt.DurationMinutes <= avail.Window.EndMinute
					if !fits {
						continue
					}
				}
				out = append(out, SlotInstance{
					CalendarID:        cfg.CalendarID,
					ConfigurationID:   cfg.ID,
					DurationOptionID:  opt.ID,
					Date:              day,
					StartMinute:       startMinute,
					DurationMinutes:   opt.DurationMinutes,
					Price:             opt.Price,
					PlacesAvailable:   cfg.PlacesAvailable,
					MinPlacesRequired: cfg.MinPlacesRequired,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].StartMinute != out[j].StartMinute {
			return out[i].StartMinute < out[j].StartMinute
		}
		return out[i].DurationMinutes < out[j].DurationMinutes
	})
	return out
}

// effectiveOn reports whether the date lies within the configuration's
// effective window.
func effectiveOn(cfg model.TimeSlotConfiguration, day time.Time) bool {
	if day.Before(DateOnly(cfg.EffectiveDateStart)) {
		return false
	}
	if cfg.EffectiveDateEnd != nil && day.After(DateOnly(*cfg.EffectiveDateEnd)) {
		return false
	}
	return true
}

// onRecurrence checks the recurrence cadence: the number of whole weeks
// between the effective start (aligned forward to the date's weekday) and
// the date must be a multiple of RecurrenceWeeks.
func onRecurrence(cfg model.TimeSlotConfiguration, day time.Time) bool {
	interval := cfg.RecurrenceWeeks
	if interval <= 1 {
		return true
	}
	start := DateOnly(cfg.EffectiveDateStart)
	offset := (int(day.Weekday()) - int(start.Weekday()) + 7) % 7
	anchor := start.AddDate(0, 0, offset)
	weeks := int(day.Sub(anchor).Hours()) / (24 * 7)
	return weeks%interval == 0
}

func sortedOptions(options []model.DurationOption) []model.DurationOption {
	out := make([]model.DurationOption, len(options))
	copy(out, options)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func overlapAny(spans []span, s span) bool {
	for _, existing := range spans {
		if existing.overlaps(s) {
			return true
		}
	}
	return false
}
