package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-memory Repository. It backs the
// test suites and local development; the conditional-create and
// conditional-update checks run under the same lock as the write, so it
// gives the same uniqueness guarantee as the Postgres implementation.
var _ Repository = (*MemoryRepository)(nil)

type MemoryRepository struct {
	mu     sync.RWMutex
	appts  map[uuid.UUID]Appointment
	events []EventLog
	nextEv int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appts: make(map[uuid.UUID]Appointment),
	}
}

func (r *MemoryRepository) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.appts {
		if existing.Status.Active() && existing.Date.Equal(a.Date) && existing.Time == a.Time {
			return ErrSlotTaken
		}
	}

	r.appts[a.ID] = *a
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) List(_ context.Context) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Appointment, 0, len(r.appts))
	for _, a := range r.appts {
		result = append(result, a)
	}
	return result, nil
}

func (r *MemoryRepository) ListByDate(_ context.Context, date time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	day := DateOf(date)
	var result []Appointment
	for _, a := range r.appts {
		if a.Date.Equal(day) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *MemoryRepository) ListBetween(_ context.Context, from, to time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	from, to = DateOf(from), DateOf(to)
	var result []Appointment
	for _, a := range r.appts {
		if !a.Date.Before(from) && !a.Date.After(to) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appts {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *MemoryRepository) FindActiveBySlot(_ context.Context, date time.Time, slot string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	day := DateOf(date)
	for _, a := range r.appts {
		if a.Status.Active() && a.Date.Equal(day) && a.Time == slot {
			found := a
			return &found, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *MemoryRepository) FindPendingByPatient(_ context.Context, patientID uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.appts {
		if a.PatientID == patientID && a.Status == StatusPending {
			found := a
			return &found, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *MemoryRepository) Update(_ context.Context, id uuid.UUID, fields FieldUpdate) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	targetDate, targetTime := a.Date, a.Time
	if fields.Date != nil {
		targetDate = DateOf(*fields.Date)
	}
	if fields.Time != nil {
		targetTime = *fields.Time
	}
	if fields.MovesSlot() {
		for _, other := range r.appts {
			if other.ID != id && other.Status.Active() && other.Date.Equal(targetDate) && other.Time == targetTime {
				return nil, ErrSlotTaken
			}
		}
	}

	if fields.PatientName != nil {
		a.PatientName = *fields.PatientName
	}
	if fields.Email != nil {
		a.Email = *fields.Email
	}
	if fields.Phone != nil {
		a.Phone = *fields.Phone
	}
	a.Date = targetDate
	a.Time = targetTime
	if fields.Reason != nil {
		a.Reason = *fields.Reason
	}
	if fields.Status != nil {
		a.Status = *fields.Status
	}
	a.UpdatedAt = time.Now()

	r.appts[id] = a
	return &a, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	a.UpdatedAt = time.Now()
	r.appts[id] = a
	return &a, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appts[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appts, id)
	return nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEv++
	ev.ID = r.nextEv
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded event log, oldest first.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventLog(nil), r.events...)
}
