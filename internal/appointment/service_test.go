package appointment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAppointment(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending appointment with defaults", func(t *testing.T) {
		svc, repo := newTestService()
		patient := testPatient()

		appt, err := svc.CreateAppointment(ctx, patient, mustDate("2025-03-10"), "09:00", "")
		require.NoError(t, err)

		assert.Equal(t, StatusPending, appt.Status)
		assert.Equal(t, "Maria Lopez", appt.PatientName)
		assert.Equal(t, patient.ID, appt.PatientID)
		assert.Equal(t, DefaultReason, appt.Reason)
		assert.Equal(t, "09:00", appt.Time)
		assert.Equal(t, mustDate("2025-03-10"), appt.Date)
		assert.Equal(t, testNow, appt.CreatedAt)
		assert.Equal(t, testNow, appt.UpdatedAt)

		stored, err := repo.GetByID(ctx, appt.ID)
		require.NoError(t, err)
		assert.Equal(t, appt.ID, stored.ID)

		events := repo.Events()
		require.Len(t, events, 1)
		assert.Equal(t, EventAppointmentRequested, events[0].EventType)
	})

	t.Run("rejects a past date", func(t *testing.T) {
		svc, _ := newTestService()

		_, err := svc.CreateAppointment(ctx, testPatient(), mustDate("2025-03-01"), "09:00", "check-up")
		assert.ErrorIs(t, err, ErrDateNotBookable)
	})

	t.Run("rejects the closed weekday regardless of availability", func(t *testing.T) {
		svc, _ := newTestService()

		// 2025-03-09 is a Sunday.
		_, err := svc.CreateAppointment(ctx, testPatient(), mustDate("2025-03-09"), "09:00", "")
		assert.ErrorIs(t, err, ErrDateNotBookable)
	})

	t.Run("rejects a non-canonical time before any availability check", func(t *testing.T) {
		svc, repo := newTestService()

		_, err := svc.CreateAppointment(ctx, testPatient(), mustDate("2025-03-10"), "11:15", "")
		assert.ErrorIs(t, err, ErrInvalidSlotTime)

		appts, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, appts)
	})

	t.Run("rejects a second booking while one is pending", func(t *testing.T) {
		svc, _ := newTestService()
		patient := testPatient()

		_, err := svc.CreateAppointment(ctx, patient, mustDate("2025-03-10"), "09:00", "")
		require.NoError(t, err)

		// The other slot is free; the pending limit rejects anyway.
		_, err = svc.CreateAppointment(ctx, patient, mustDate("2025-03-12"), "14:00", "")
		assert.ErrorIs(t, err, ErrPendingLimit)
	})

	t.Run("rejects an occupied slot", func(t *testing.T) {
		svc, _ := newTestService()

		_, err := svc.CreateAppointment(ctx, testPatient(), mustDate("2025-03-10"), "09:00", "")
		require.NoError(t, err)

		_, err = svc.CreateAppointment(ctx, testPatient(), mustDate("2025-03-10"), "09:00", "")
		assert.ErrorIs(t, err, ErrSlotTaken)
	})

	t.Run("booking allowed again after confirmation", func(t *testing.T) {
		svc, _ := newTestService()
		patient := testPatient()

		appt, err := svc.CreateAppointment(ctx, patient, mustDate("2025-03-10"), "09:00", "")
		require.NoError(t, err)

		_, err = svc.Confirm(ctx, appt.ID)
		require.NoError(t, err)

		_, err = svc.CreateAppointment(ctx, patient, mustDate("2025-03-12"), "14:00", "")
		assert.NoError(t, err)
	})

	t.Run("maps lock contention to a retryable conflict", func(t *testing.T) {
		repo := NewMemoryRepository()
		avail := NewAvailability(repo, NewSchedule(nil, time.Sunday))
		svc := NewService(repo, avail, contendedLocker{})
		svc.now = func() time.Time { return testNow }

		_, err := svc.CreateAppointment(ctx, testPatient(), mustDate("2025-03-10"), "09:00", "")
		assert.ErrorIs(t, err, ErrSlotBeingBooked)
	})

	t.Run("concurrent bookings for one slot admit exactly one", func(t *testing.T) {
		svc, _ := newTestService()

		const attempts = 16
		var successes, conflicts int64
		var wg sync.WaitGroup

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.CreateAppointment(ctx, testPatient(), mustDate("2025-03-10"), "10:30", "")
				switch {
				case err == nil:
					atomic.AddInt64(&successes, 1)
				case errorIsSlotConflict(err):
					atomic.AddInt64(&conflicts, 1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(1), successes)
		assert.Equal(t, int64(attempts-1), conflicts)
	})
}

func TestListAppointmentsOrdering(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.CreateAppointment(ctx, testPatient(), mustDate("2025-03-12"), "08:30", "")
	require.NoError(t, err)
	_, err = svc.CreateAppointment(ctx, testPatient(), mustDate("2025-03-10"), "14:00", "")
	require.NoError(t, err)
	_, err = svc.CreateAppointment(ctx, testPatient(), mustDate("2025-03-10"), "08:00", "")
	require.NoError(t, err)

	appts, err := svc.ListAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, appts, 3)

	assert.Equal(t, mustDate("2025-03-10"), appts[0].Date)
	assert.Equal(t, "08:00", appts[0].Time)
	assert.Equal(t, "14:00", appts[1].Time)
	assert.Equal(t, mustDate("2025-03-12"), appts[2].Date)
}

func TestListPatientAppointmentsExcludesCancelled(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	patient := testPatient()

	first, err := svc.CreateAppointment(ctx, patient, mustDate("2025-03-10"), "09:00", "")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, first.ID)
	require.NoError(t, err)

	second, err := svc.CreateAppointment(ctx, patient, mustDate("2025-03-11"), "09:30", "")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, second.ID)
	require.NoError(t, err)

	appts, err := svc.ListPatientAppointments(ctx, patient.ID)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, second.ID, appts[0].ID)
}

func errorIsSlotConflict(err error) bool {
	return errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrSlotBeingBooked)
}
