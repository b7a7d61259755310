package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleValidTime(t *testing.T) {
	s := NewSchedule(nil, time.Sunday)

	assert.True(t, s.ValidTime("08:00"))
	assert.True(t, s.ValidTime("16:30"))
	assert.False(t, s.ValidTime("11:15"))
	assert.False(t, s.ValidTime("12:00"))
	assert.False(t, s.ValidTime(""))
	assert.False(t, s.ValidTime("9:00")) // must match the canonical spelling
}

func TestScheduleIsDateBookable(t *testing.T) {
	s := NewSchedule(nil, time.Sunday)
	now := testNow // Monday 2025-03-03

	tests := []struct {
		name string
		date string
		want bool
	}{
		{"today is bookable", "2025-03-03", true},
		{"tomorrow is bookable", "2025-03-04", true},
		{"yesterday is not", "2025-03-02", false},
		{"far past is not", "2024-01-01", false},
		{"closed weekday is not", "2025-03-09", false}, // Sunday
		{"next open weekday after closed day", "2025-03-10", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.IsDateBookable(mustDate(tt.date), now))
		})
	}
}

func TestScheduleCustomConfiguration(t *testing.T) {
	s := NewSchedule([]string{"07:00", "07:30"}, time.Monday)

	assert.Equal(t, []string{"07:00", "07:30"}, s.Slots())
	assert.True(t, s.ValidTime("07:00"))
	assert.False(t, s.ValidTime("08:00"))
	assert.Equal(t, time.Monday, s.ClosedWeekday())

	// 2025-03-10 is a Monday.
	assert.False(t, s.IsDateBookable(mustDate("2025-03-10"), testNow))
	// Sundays are open under this configuration.
	assert.True(t, s.IsDateBookable(mustDate("2025-03-09"), testNow))
}

func TestScheduleSlotIndex(t *testing.T) {
	s := NewSchedule(nil, time.Sunday)

	assert.Equal(t, 0, s.SlotIndex("08:00"))
	assert.Equal(t, 6, s.SlotIndex("14:00"))
	// Unknown times sort after every canonical slot.
	assert.Equal(t, len(DefaultTimeSlots), s.SlotIndex("23:45"))
}

func TestDateOf(t *testing.T) {
	stamp := time.Date(2025, 3, 10, 17, 45, 12, 99, time.UTC)
	assert.Equal(t, mustDate("2025-03-10"), DateOf(stamp))
	assert.Equal(t, DateOf(stamp), DateOf(DateOf(stamp)))
}
