package availability

import (
	"context"
	"time"

	"calendar-booking-backend/internal/model"
	"calendar-booking-backend/internal/schedule"
	"calendar-booking-backend/internal/store"
)

// Mode selects whether fully-booked slots are included in listings. Admin
// views want to see them; public booking flows do not.
type Mode string

const (
	ModeAvailableOnly Mode = "available_only"
	ModeAll           Mode = "all"
)

// Slot is one bookable instance as returned to callers.
type Slot struct {
	SlotID            string  `json:"slot_id"`
	Date              string  `json:"date"`
	StartTime         string  `json:"start_time"`
	EndTime           string  `json:"end_time"`
	DurationMinutes   int     `json:"duration_minutes"`
	Price             float64 `json:"price"`
	PlacesRemaining   int     `json:"places_remaining"`
	MinPlacesRequired int     `json:"min_places_required"`
}

// Service answers "what slots, with what remaining capacity and price, are
// bookable for this calendar and date range". It composes the rule resolver,
// the slot generator, the blocked-period filter and the capacity ledger.
type Service struct {
	store store.Store

	// Now is the clock; tests override it to pin the advance-booking window.
	Now func() time.Time
}

// NewService creates a new availability service.
func NewService(s store.Store) *Service {
	return &Service{store: s, Now: time.Now}
}

// List returns the bookable slots for a calendar between from and to. The
// requested range is clamped to the calendar's advance-booking window;
// portions outside it yield no slots rather than an error.
func (s *Service) List(ctx context.Context, orgID, calendarID int64, from, to time.Time, mode Mode) ([]Slot, error) {
	if to.Before(from) {
		return nil, store.Validationf("date_to %s is before date_from %s",
			to.Format(schedule.DateLayout), from.Format(schedule.DateLayout))
	}

	snap, err := s.store.Snapshot(ctx, orgID, calendarID)
	if err != nil {
		return nil, err
	}

	from, to, empty := s.clamp(&snap.Calendar, from, to)
	if empty {
		return []Slot{}, nil
	}

	instances := s.generate(snap, from, to)
	counts, err := s.store.BookedCounts(ctx, calendarID, from, to)
	if err != nil {
		return nil, err
	}

	slots := make([]Slot, 0, len(instances))
	for _, inst := range instances {
		remaining := inst.PlacesAvailable - counts[inst.ID().Encode()]
		if mode == ModeAvailableOnly && remaining <= 0 {
			continue
		}
		slots = append(slots, Slot{
			SlotID:            inst.ID().Encode(),
			Date:              inst.Date.Format(schedule.DateLayout),
			StartTime:         inst.StartClock(),
			EndTime:           schedule.FormatClock(inst.EndMinute()),
			DurationMinutes:   inst.DurationMinutes,
			Price:             inst.Price,
			PlacesRemaining:   remaining,
			MinPlacesRequired: inst.MinPlacesRequired,
		})
	}
	return slots, nil
}

// ResolveSlot re-derives a single slot instance from its identifier, going
// through the same resolution pipeline as List. Booking uses this to confirm
// the slot still exists and is not blocked at reservation time.
func (s *Service) ResolveSlot(ctx context.Context, orgID, calendarID int64, id schedule.SlotID) (*store.Snapshot, *schedule.SlotInstance, error) {
	snap, err := s.store.Snapshot(ctx, orgID, calendarID)
	if err != nil {
		return nil, nil, err
	}

	from, to, empty := s.clamp(&snap.Calendar, id.Date, id.Date)
	if empty {
		return nil, nil, store.Validationf("slot %s is outside the calendar's booking window", id.Encode())
	}

	for _, inst := range s.generate(snap, from, to) {
		if inst.ID() == id {
			return snap, &inst, nil
		}
	}
	return nil, nil, store.Validationf("slot %s is no longer available", id.Encode())
}

func (s *Service) generate(snap *store.Snapshot, from, to time.Time) []schedule.SlotInstance {
	days := schedule.ResolveDays(&snap.Calendar, snap.Rules, from, to)
	instances := schedule.GenerateSlots(snap.Configurations, days, from, to)
	return schedule.FilterBlocked(instances, snap.BlockedPeriods)
}

// clamp restricts [from, to] to the calendar's advance-booking window. The
// third return is true when nothing of the requested range survives.
func (s *Service) clamp(cal *model.Calendar, from, to time.Time) (time.Time, time.Time, bool) {
	today := schedule.DateOnly(s.Now())
	earliest := today.AddDate(0, 0, cal.MinDaysInAdvance)
	latest := today.AddDate(0, 0, cal.MaxDaysInAdvance)

	from = schedule.DateOnly(from)
	to = schedule.DateOnly(to)
	if from.Before(earliest) {
		from = earliest
	}
	if to.After(latest) {
		to = latest
	}
	return from, to, from.After(to)
}
