package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned by Create and Update when the write would
	// put two active appointments on the same (date, time). It is the
	// storage layer's authoritative uniqueness check, performed as close
	// to the write as the backend allows.
	ErrSlotTaken = errors.New("slot already has an active appointment")
)

// Repository is the durable appointment store. It owns the persisted
// records; every other component works on copies and routes mutations
// back through it.
type Repository interface {
	// Create persists a new appointment. It must refuse the write with
	// ErrSlotTaken if another non-cancelled appointment already occupies
	// the same (date, time).
	Create(ctx context.Context, a *Appointment) error

	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// List returns every stored appointment in no particular order;
	// display ordering is the caller's concern.
	List(ctx context.Context) ([]Appointment, error)
	ListByDate(ctx context.Context, date time.Time) ([]Appointment, error)
	// ListBetween returns appointments on days in [from, to] inclusive.
	ListBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)

	// FindActiveBySlot returns the non-cancelled appointment occupying
	// (date, slot), or ErrAppointmentNotFound.
	FindActiveBySlot(ctx context.Context, date time.Time, slot string) (*Appointment, error)
	// FindPendingByPatient returns the patient's pending appointment,
	// or ErrAppointmentNotFound.
	FindPendingByPatient(ctx context.Context, patientID uuid.UUID) (*Appointment, error)

	// Update applies a partial field update and returns the new record.
	// When the update moves the appointment's slot it must refuse with
	// ErrSlotTaken if another active appointment occupies the target,
	// excluding the record being updated.
	Update(ctx context.Context, id uuid.UUID, fields FieldUpdate) (*Appointment, error)

	// UpdateStatus is a compare-and-set: it transitions id from `from`
	// to `to`, returning ErrAppointmentNotFound when no row matches.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// Delete removes the record entirely, unlike cancellation which
	// keeps it as a terminal record.
	Delete(ctx context.Context, id uuid.UUID) error

	InsertEvent(ctx context.Context, ev EventLog) error
}
