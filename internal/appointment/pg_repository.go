package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const appointmentColumns = `id, patient_id, patient_name, email, phone, date, slot_time, reason, status, created_at, updated_at`

var _ Repository = (*PgRepository)(nil)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientName,
		&a.Email,
		&a.Phone,
		&a.Date,
		&a.Time,
		&a.Reason,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = DateOf(a.Date)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Create inserts the appointment only if no active appointment holds the
// same (date, slot_time). The conditional insert is the authoritative
// uniqueness check: two racing bookings cannot both pass it.
func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		WHERE NOT EXISTS (
			SELECT 1 FROM appointments
			WHERE date = $6 AND slot_time = $7 AND status <> 'cancelled'
		)
		RETURNING id
	`, a.ID, a.PatientID, a.PatientName, a.Email, a.Phone, a.Date, a.Time, a.Reason, a.Status, a.CreatedAt, a.UpdatedAt)

	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSlotTaken
		}
		return err
	}

	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) List(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
	`)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByDate(ctx context.Context, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date = $1
	`, DateOf(date))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date >= $1 AND date <= $2
	`, DateOf(from), DateOf(to))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindActiveBySlot(ctx context.Context, date time.Time, slot string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date = $1 AND slot_time = $2 AND status <> 'cancelled'
		LIMIT 1
	`, DateOf(date), slot)
	return scanAppointment(row)
}

func (r *PgRepository) FindPendingByPatient(ctx context.Context, patientID uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1 AND status = 'pending'
		LIMIT 1
	`, patientID)
	return scanAppointment(row)
}

// Update applies a partial field update. A slot move is guarded by the
// same NOT EXISTS condition as Create, excluding the row being updated,
// so the uniqueness invariant holds at the write itself.
func (r *PgRepository) Update(ctx context.Context, id uuid.UUID, fields FieldUpdate) (*Appointment, error) {
	set := []string{"updated_at = now()"}
	args := []any{id}

	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if fields.PatientName != nil {
		add("patient_name", *fields.PatientName)
	}
	if fields.Email != nil {
		add("email", *fields.Email)
	}
	if fields.Phone != nil {
		add("phone", *fields.Phone)
	}
	if fields.Date != nil {
		add("date", DateOf(*fields.Date))
	}
	if fields.Time != nil {
		add("slot_time", *fields.Time)
	}
	if fields.Reason != nil {
		add("reason", *fields.Reason)
	}
	if fields.Status != nil {
		add("status", *fields.Status)
	}

	query := `
		UPDATE appointments
		SET ` + strings.Join(set, ", ") + `
		WHERE id = $1
	`

	if fields.MovesSlot() {
		var newDate *time.Time
		if fields.Date != nil {
			d := DateOf(*fields.Date)
			newDate = &d
		}
		args = append(args, newDate)
		dateParam := len(args)
		args = append(args, fields.Time)
		timeParam := len(args)

		// Reject the move when another active appointment already holds
		// the target slot; NULL parameters fall back to the row's current
		// date or time, so partial moves are checked against the full pair.
		query += fmt.Sprintf(`
		  AND NOT EXISTS (
			SELECT 1
			FROM appointments o
			JOIN appointments cur ON cur.id = $1
			WHERE o.date = COALESCE($%d, cur.date)
			  AND o.slot_time = COALESCE($%d, cur.slot_time)
			  AND o.status <> 'cancelled'
			  AND o.id <> $1
		  )`, dateParam, timeParam)
	}

	query += `
		RETURNING ` + appointmentColumns

	updated, err := scanAppointment(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Distinguish a missing row from a blocked slot move.
			if _, getErr := r.GetByID(ctx, id); getErr == nil {
				return nil, ErrSlotTaken
			}
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return updated, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
