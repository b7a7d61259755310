package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/clinicdesk/appointment-booking/internal/redis"
)

const (
	EventAppointmentRequested = "APPOINTMENT_REQUESTED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentUpdated   = "APPOINTMENT_UPDATED"
	EventAppointmentDeleted   = "APPOINTMENT_DELETED"
)

var (
	ErrDateNotBookable   = errors.New("date is in the past or on a closed day")
	ErrInvalidSlotTime   = errors.New("time is not a canonical slot")
	ErrPendingLimit      = errors.New("patient already has a pending appointment")
	ErrSlotBeingBooked   = errors.New("slot is currently being booked, please retry")
	ErrCancelledTerminal = errors.New("appointment is cancelled and cannot change status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStatus     = errors.New("unknown appointment status")
)

// Service owns every validated mutation of the appointment collection:
// booking, status transitions, field edits, and administrative deletes.
// No caller may write an appointment except through it.
type Service struct {
	repo     Repository
	avail    *Availability
	schedule *Schedule
	locker   redisclient.Locker
	now      func() time.Time
}

func NewService(repo Repository, avail *Availability, locker redisclient.Locker) *Service {
	return &Service{
		repo:     repo,
		avail:    avail,
		schedule: avail.Schedule(),
		locker:   locker,
		now:      time.Now,
	}
}

// CreateAppointment executes the patient booking use case end to end.
// The calendar-policy and pending-limit checks guard business rules; the
// availability re-check runs inside the slot lock because the appointment
// set can change between calendar render and form submit, and the
// repository's conditional insert is the final authority either way.
func (s *Service) CreateAppointment(ctx context.Context, patient PatientIdentity, date time.Time, slot, reason string) (*Appointment, error) {
	date = DateOf(date)

	if !s.schedule.IsDateBookable(date, s.now()) {
		return nil, ErrDateNotBookable
	}
	if !s.schedule.ValidTime(slot) {
		return nil, ErrInvalidSlotTime
	}

	_, err := s.repo.FindPendingByPatient(ctx, patient.ID)
	switch {
	case err == nil:
		return nil, ErrPendingLimit
	case !errors.Is(err, ErrAppointmentNotFound):
		return nil, fmt.Errorf("check pending appointment: %w", err)
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, slotLockKey(date, slot), func(lockCtx context.Context) error {
		free, err := s.avail.IsSlotAvailable(lockCtx, date, slot)
		if err != nil {
			return err
		}
		if !free {
			return ErrSlotTaken
		}

		if reason == "" {
			reason = DefaultReason
		}

		now := s.now()
		appt := &Appointment{
			ID:          uuid.New(),
			PatientID:   patient.ID,
			PatientName: patient.FullName(),
			Email:       patient.Email,
			Phone:       patient.Phone,
			Date:        date,
			Time:        slot,
			Reason:      reason,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := s.repo.Create(lockCtx, appt); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentRequested, map[string]any{
			"patient_id": patient.ID.String(),
			"date":       FormatDate(date),
			"time":       slot,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// GetAppointment returns a single appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// ListAppointments returns every appointment ordered by date ascending,
// then by slot time within the day. Ordering is done here, not in the
// repository, so every backend presents the same view.
func (s *Service) ListAppointments(ctx context.Context) ([]Appointment, error) {
	appts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	s.sortByDate(appts)
	return appts, nil
}

// ListPatientAppointments returns the patient's non-cancelled appointments
// ordered by date ascending.
func (s *Service) ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	appts, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	active := appts[:0]
	for _, a := range appts {
		if a.Status.Active() {
			active = append(active, a)
		}
	}
	s.sortByDate(active)
	return active, nil
}

// Availability exposes the read-side engine backed by the same repository.
func (s *Service) Availability() *Availability {
	return s.avail
}

func (s *Service) sortByDate(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		if !appts[i].Date.Equal(appts[j].Date) {
			return appts[i].Date.Before(appts[j].Date)
		}
		return s.schedule.SlotIndex(appts[i].Time) < s.schedule.SlotIndex(appts[j].Time)
	})
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}

func slotLockKey(date time.Time, slot string) string {
	return FormatDate(date) + "T" + slot
}
