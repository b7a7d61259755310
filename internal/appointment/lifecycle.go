package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	redisclient "github.com/clinicdesk/appointment-booking/internal/redis"
)

// transitionAllowed is the appointment state machine: pending may be
// confirmed or cancelled, confirmed may only be cancelled, cancelled is
// terminal. Self-loops are not transitions.
func transitionAllowed(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled
	}
	return false
}

// SetStatus transitions an appointment to a new status under the state
// machine rules. The write is a compare-and-set on the current status, so
// two racing transitions cannot both apply.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status == StatusCancelled {
		return nil, ErrCancelledTerminal
	}
	if !transitionAllowed(appt.Status, to) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}

	event := EventAppointmentUpdated
	switch to {
	case StatusConfirmed:
		event = EventAppointmentConfirmed
	case StatusCancelled:
		event = EventAppointmentCancelled
	}
	s.logEvent(ctx, updated.ID, event, map[string]any{
		"from": string(appt.Status),
		"to":   string(to),
	})

	return updated, nil
}

// Confirm marks a pending appointment as confirmed (staff action).
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.SetStatus(ctx, id, StatusConfirmed)
}

// Cancel cancels a pending or confirmed appointment. Either the patient
// or staff may cancel; the slot is released immediately.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.SetStatus(ctx, id, StatusCancelled)
}

// UpdateFields applies a typed partial edit. Moving the appointment to a
// new (date, time) re-validates the slot under the slot lock, excluding
// the appointment's own record from the conflict check. Status changes go
// through the same transition rules as SetStatus.
func (s *Service) UpdateFields(ctx context.Context, id uuid.UUID, fields FieldUpdate) (*Appointment, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if fields.Empty() {
		return current, nil
	}

	if fields.Status != nil {
		to := *fields.Status
		if !to.Valid() {
			return nil, ErrInvalidStatus
		}
		if to == current.Status {
			fields.Status = nil
		} else {
			if current.Status == StatusCancelled {
				return nil, ErrCancelledTerminal
			}
			if !transitionAllowed(current.Status, to) {
				return nil, ErrInvalidTransition
			}
		}
	}

	if fields.Time != nil && !s.schedule.ValidTime(*fields.Time) {
		return nil, ErrInvalidSlotTime
	}
	if fields.Date != nil {
		d := DateOf(*fields.Date)
		fields.Date = &d
	}
	if fields.Reason != nil && *fields.Reason == "" {
		r := DefaultReason
		fields.Reason = &r
	}

	if !fields.MovesSlot() {
		return s.applyUpdate(ctx, id, fields)
	}

	targetDate, targetTime := current.Date, current.Time
	if fields.Date != nil {
		targetDate = *fields.Date
	}
	if fields.Time != nil {
		targetTime = *fields.Time
	}

	// Unchanged slot needs no conflict check; the record keeps its place.
	if targetDate.Equal(current.Date) && targetTime == current.Time {
		return s.applyUpdate(ctx, id, fields)
	}

	var updated *Appointment
	err = s.locker.WithSlotLock(ctx, slotLockKey(targetDate, targetTime), func(lockCtx context.Context) error {
		occupant, err := s.repo.FindActiveBySlot(lockCtx, targetDate, targetTime)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check slot: %w", err)
		}
		if occupant != nil && occupant.ID != id {
			return ErrSlotTaken
		}

		updated, err = s.applyUpdate(lockCtx, id, fields)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return updated, nil
}

func (s *Service) applyUpdate(ctx context.Context, id uuid.UUID, fields FieldUpdate) (*Appointment, error) {
	updated, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, updated.ID, EventAppointmentUpdated, map[string]any{
		"date": FormatDate(updated.Date),
		"time": updated.Time,
	})
	return updated, nil
}

// HasPendingAppointment reports whether the patient already has a pending
// request awaiting review. New bookings are gated on this.
func (s *Service) HasPendingAppointment(ctx context.Context, patientID uuid.UUID) (bool, error) {
	_, err := s.GetPendingAppointment(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetPendingAppointment returns the patient's pending appointment, or
// ErrAppointmentNotFound when there is none.
func (s *Service) GetPendingAppointment(ctx context.Context, patientID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.FindPendingByPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find pending appointment: %w", err)
	}
	return appt, nil
}

// Delete removes the record entirely. Cancellation is the normal path;
// delete exists for the admin console only.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logEvent(ctx, id, EventAppointmentDeleted, map[string]any{})
	return nil
}
