package appointment

import "time"

// DefaultTimeSlots is the practice's canonical booking grid: half-hour
// slots across a morning and an afternoon block.
var DefaultTimeSlots = []string{
	"08:00", "08:30", "09:00", "09:30", "10:00", "10:30",
	"14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
}

// Schedule is the calendar policy the practice books against: the ordered
// list of canonical slot times and the weekday the practice is closed.
// It is configuration, not data, and holds no appointment state.
type Schedule struct {
	slots     []string
	slotIndex map[string]int
	closedDay time.Weekday
}

// NewSchedule builds a Schedule from the configured slot list and closed
// weekday. An empty slot list falls back to DefaultTimeSlots.
func NewSchedule(slots []string, closedDay time.Weekday) *Schedule {
	if len(slots) == 0 {
		slots = DefaultTimeSlots
	}
	idx := make(map[string]int, len(slots))
	for i, s := range slots {
		idx[s] = i
	}
	return &Schedule{
		slots:     append([]string(nil), slots...),
		slotIndex: idx,
		closedDay: closedDay,
	}
}

// Slots returns the canonical slot times in display order.
func (s *Schedule) Slots() []string {
	return append([]string(nil), s.slots...)
}

// ValidTime reports whether t is one of the canonical slot times.
// Anything outside the list is invalid input, never merely "taken".
func (s *Schedule) ValidTime(t string) bool {
	_, ok := s.slotIndex[t]
	return ok
}

// SlotIndex returns the position of t in the canonical ordering, for
// sorting appointments within a day. Unknown times sort last.
func (s *Schedule) SlotIndex(t string) int {
	if i, ok := s.slotIndex[t]; ok {
		return i
	}
	return len(s.slots)
}

// IsDateBookable reports whether patients may request date at all:
// false for any day before today and for the practice's closed weekday.
// Pure calendar policy, independent of existing appointments.
func (s *Schedule) IsDateBookable(date, now time.Time) bool {
	if DateOf(date).Before(DateOf(now)) {
		return false
	}
	return date.Weekday() != s.closedDay
}

// ClosedWeekday returns the weekday on which the practice takes no bookings.
func (s *Schedule) ClosedWeekday() time.Weekday {
	return s.closedDay
}
