package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// DefaultReason is used when a booking request leaves the reason blank.
const DefaultReason = "General consultation"

// DateLayout is the wire and storage format for appointment dates.
const DateLayout = "2006-01-02"

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the appointment still occupies its slot.
// Cancelled appointments are kept as records but release the slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// PatientIdentity is the read-only identity supplied by the authentication
// layer for the duration of a booking session.
type PatientIdentity struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

func (p PatientIdentity) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type Appointment struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	PatientName string
	Email       string
	Phone       string
	Date        time.Time // calendar day, midnight UTC
	Time        string    // canonical slot, "HH:MM"
	Reason      string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FieldUpdate is a typed partial update. Nil fields are left untouched.
type FieldUpdate struct {
	PatientName *string
	Email       *string
	Phone       *string
	Date        *time.Time
	Time        *string
	Reason      *string
	Status      *Status
}

// Empty reports whether the update carries no fields at all.
func (u FieldUpdate) Empty() bool {
	return u.PatientName == nil && u.Email == nil && u.Phone == nil &&
		u.Date == nil && u.Time == nil && u.Reason == nil && u.Status == nil
}

// MovesSlot reports whether the update changes the occupied (date, time).
func (u FieldUpdate) MovesSlot() bool {
	return u.Date != nil || u.Time != nil
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar day.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate renders a calendar day as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}
