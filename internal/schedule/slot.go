package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SlotInstance is a concrete bookable unit derived on demand from a
// TimeSlotConfiguration and one of its duration options. Instances are value
// types; they are never persisted.
type SlotInstance struct {
	CalendarID       int64
	ConfigurationID  int64
	DurationOptionID int64

	Date            time.Time // UTC midnight
	StartMinute     int       // minutes from midnight
	DurationMinutes int

	Price             float64
	PlacesAvailable   int
	MinPlacesRequired int
}

// EndMinute is the exclusive end of the slot's time interval.
func (s SlotInstance) EndMinute() int {
	return s.StartMinute + s.DurationMinutes
}

// StartClock returns the slot's start as a "15:04" string.
func (s SlotInstance) StartClock() string {
	return FormatClock(s.StartMinute)
}

// ID returns the stable identifier callers use to book the instance.
func (s SlotInstance) ID() SlotID {
	return SlotID{
		ConfigurationID:  s.ConfigurationID,
		Date:             s.Date,
		DurationOptionID: s.DurationOptionID,
	}
}

// SlotID identifies a slot instance across listing and booking. The encoded
// form is "configurationID:date:durationOptionID".
type SlotID struct {
	ConfigurationID  int64
	Date             time.Time
	DurationOptionID int64
}

// Encode renders the identifier for transport.
func (id SlotID) Encode() string {
	return fmt.Sprintf("%d:%s:%d", id.ConfigurationID, id.Date.Format(DateLayout), id.DurationOptionID)
}

// ParseSlotID decodes an identifier produced by Encode.
func ParseSlotID(s string) (SlotID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return SlotID{}, fmt.Errorf("invalid slot id %q", s)
	}
	cfgID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return SlotID{}, fmt.Errorf("invalid configuration id in slot id %q: %w", s, err)
	}
	date, err := ParseDate(parts[1])
	if err != nil {
		return SlotID{}, fmt.Errorf("invalid date in slot id %q: %w", s, err)
	}
	optID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return SlotID{}, fmt.Errorf("invalid duration option id in slot id %q: %w", s, err)
	}
	return SlotID{ConfigurationID: cfgID, Date: date, DurationOptionID: optID}, nil
}
