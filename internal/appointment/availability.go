package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Availability answers slot and calendar queries against the current
// repository state. It never mutates anything; every call re-reads the
// store so callers always see the freshest answer available.
type Availability struct {
	repo     Repository
	schedule *Schedule
}

func NewAvailability(repo Repository, schedule *Schedule) *Availability {
	return &Availability{repo: repo, schedule: schedule}
}

// IsSlotAvailable reports whether (date, slot) is free: false only when a
// non-cancelled appointment occupies exactly that pair.
func (av *Availability) IsSlotAvailable(ctx context.Context, date time.Time, slot string) (bool, error) {
	_, err := av.repo.FindActiveBySlot(ctx, DateOf(date), slot)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("check slot: %w", err)
	}
	return false, nil
}

// ListOnDate returns every appointment on the given calendar day, any
// status, ordered by canonical slot time.
func (av *Availability) ListOnDate(ctx context.Context, date time.Time) ([]Appointment, error) {
	appts, err := av.repo.ListByDate(ctx, DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list by date: %w", err)
	}
	sort.Slice(appts, func(i, j int) bool {
		return av.schedule.SlotIndex(appts[i].Time) < av.schedule.SlotIndex(appts[j].Time)
	})
	return appts, nil
}

// FreeSlots returns the canonical slot times on date that are not held by
// an active appointment, in schedule order. One repository read covers
// the whole grid.
func (av *Availability) FreeSlots(ctx context.Context, date time.Time) ([]string, error) {
	appts, err := av.repo.ListByDate(ctx, DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list by date: %w", err)
	}

	taken := make(map[string]bool, len(appts))
	for _, a := range appts {
		if a.Status.Active() {
			taken[a.Time] = true
		}
	}

	free := make([]string, 0, len(av.schedule.slots))
	for _, s := range av.schedule.slots {
		if !taken[s] {
			free = append(free, s)
		}
	}
	return free, nil
}

// BusyDates returns the calendar days in [from, to] inclusive that hold at
// least one active appointment. Appointments are fetched once for the
// whole range and grouped by day, rather than re-scanned per date.
func (av *Availability) BusyDates(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	from, to = DateOf(from), DateOf(to)
	if to.Before(from) {
		return nil, nil
	}

	appts, err := av.repo.ListBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list between: %w", err)
	}

	seen := make(map[time.Time]bool)
	var busy []time.Time
	for _, a := range appts {
		if !a.Status.Active() {
			continue
		}
		day := DateOf(a.Date)
		if !seen[day] {
			seen[day] = true
			busy = append(busy, day)
		}
	}

	sort.Slice(busy, func(i, j int) bool { return busy[i].Before(busy[j]) })
	return busy, nil
}

// Schedule exposes the calendar policy the engine checks against.
func (av *Availability) Schedule() *Schedule {
	return av.schedule
}
