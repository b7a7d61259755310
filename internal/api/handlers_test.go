package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/appointment-booking/internal/appointment"
)

// localLocker stands in for the Redis slot locker; the in-memory
// repository's conditional writes keep the uniqueness guarantee.
type localLocker struct {
	mu sync.Mutex
}

func (l *localLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	repo := appointment.NewMemoryRepository()
	schedule := appointment.NewSchedule(nil, time.Sunday)
	avail := appointment.NewAvailability(repo, schedule)
	svc := appointment.NewService(repo, avail, &localLocker{})

	return NewRouter(RouterConfig{
		Service:         svc,
		Env:             "test",
		Version:         "test",
		BusyHorizonDays: 90,
	})
}

// futureOpenDate returns a bookable date well past "today" that avoids
// the closed weekday.
func futureOpenDate(daysAhead int) string {
	d := time.Now().AddDate(0, 0, daysAhead)
	if d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return appointment.FormatDate(d)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func bookingRequest(date, slot string) CreateAppointmentRequest {
	return CreateAppointmentRequest{
		PatientID: uuid.NewString(),
		FirstName: "Ana",
		LastName:  "Torres",
		Email:     "ana.torres@example.com",
		Phone:     "+34 600 000 000",
		Date:      date,
		Time:      slot,
		Reason:    "Annual check-up",
	}
}

func decodeAppointment(t *testing.T, rec *httptest.ResponseRecorder) AppointmentResponse {
	t.Helper()
	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateAppointmentEndpoint(t *testing.T) {
	date := futureOpenDate(7)

	t.Run("creates and returns the appointment", func(t *testing.T) {
		router := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/appointments", bookingRequest(date, "09:00"))
		require.Equal(t, http.StatusCreated, rec.Code)

		resp := decodeAppointment(t, rec)
		assert.Equal(t, "pending", resp.Status)
		assert.Equal(t, "Ana Torres", resp.PatientName)
		assert.Equal(t, date, resp.Date)
		assert.NotEqual(t, uuid.Nil, resp.ID)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("invalid body", func(t *testing.T) {
		router := newTestRouter(t)

		req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_request_body", decodeError(t, rec).Error)
	})

	t.Run("non-canonical time", func(t *testing.T) {
		router := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/appointments", bookingRequest(date, "11:15"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "invalid_time_slot", decodeError(t, rec).Error)
	})

	t.Run("past date", func(t *testing.T) {
		router := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/appointments", bookingRequest("2020-01-06", "09:00"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "date_not_bookable", decodeError(t, rec).Error)
	})

	t.Run("occupied slot conflicts", func(t *testing.T) {
		router := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/appointments", bookingRequest(date, "09:00"))
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(t, router, http.MethodPost, "/appointments", bookingRequest(date, "09:00"))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "slot_taken", decodeError(t, rec).Error)
	})

	t.Run("second pending booking conflicts", func(t *testing.T) {
		router := newTestRouter(t)

		req := bookingRequest(date, "09:00")
		rec := doJSON(t, router, http.MethodPost, "/appointments", req)
		require.Equal(t, http.StatusCreated, rec.Code)

		req.Time = "14:00"
		rec = doJSON(t, router, http.MethodPost, "/appointments", req)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "pending_appointment_exists", decodeError(t, rec).Error)
	})
}

func TestStatusEndpoints(t *testing.T) {
	date := futureOpenDate(7)

	t.Run("confirm then cancel", func(t *testing.T) {
		router := newTestRouter(t)

		created := decodeAppointment(t, doJSON(t, router, http.MethodPost, "/appointments", bookingRequest(date, "09:00")))

		rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/appointments/%s/confirm", created.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "confirmed", decodeAppointment(t, rec).Status)

		rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/appointments/%s/cancel", created.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "cancelled", decodeAppointment(t, rec).Status)
	})

	t.Run("cancelled appointment refuses further transitions", func(t *testing.T) {
		router := newTestRouter(t)

		created := decodeAppointment(t, doJSON(t, router, http.MethodPost, "/appointments", bookingRequest(date, "09:00")))

		rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/appointments/%s/cancel", created.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/appointments/%s/confirm", created.ID), nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "appointment_cancelled", decodeError(t, rec).Error)
	})

	t.Run("unknown appointment", func(t *testing.T) {
		router := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/appointments/%s/confirm", uuid.New()), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUpdateAndDeleteEndpoints(t *testing.T) {
	date := futureOpenDate(7)

	t.Run("partial update", func(t *testing.T) {
		router := newTestRouter(t)

		created := decodeAppointment(t, doJSON(t, router, http.MethodPost, "/appointments", bookingRequest(date, "09:00")))

		phone := "+34 600 123 456"
		slot := "15:00"
		rec := doJSON(t, router, http.MethodPatch, "/appointments/"+created.ID.String(), UpdateAppointmentRequest{
			Phone: &phone,
			Time:  &slot,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeAppointment(t, rec)
		assert.Equal(t, phone, resp.Phone)
		assert.Equal(t, "15:00", resp.Time)
		assert.Equal(t, created.Date, resp.Date)
	})

	t.Run("update onto an occupied slot", func(t *testing.T) {
		router := newTestRouter(t)

		created := decodeAppointment(t, doJSON(t, router, http.MethodPost, "/appointments", bookingRequest(date, "09:00")))
		rec := doJSON(t, router, http.MethodPost, "/appointments", bookingRequest(date, "09:30"))
		require.Equal(t, http.StatusCreated, rec.Code)

		slot := "09:30"
		rec = doJSON(t, router, http.MethodPatch, "/appointments/"+created.ID.String(), UpdateAppointmentRequest{Time: &slot})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "slot_taken", decodeError(t, rec).Error)
	})

	t.Run("delete removes the record", func(t *testing.T) {
		router := newTestRouter(t)

		created := decodeAppointment(t, doJSON(t, router, http.MethodPost, "/appointments", bookingRequest(date, "09:00")))

		rec := doJSON(t, router, http.MethodDelete, "/appointments/"+created.ID.String(), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, router, http.MethodGet, "/appointments/"+created.ID.String(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestScheduleEndpoints(t *testing.T) {
	date := futureOpenDate(7)

	t.Run("day slots", func(t *testing.T) {
		router := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/appointments", bookingRequest(date, "09:00"))
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(t, router, http.MethodGet, "/schedule/slots?date="+date, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp DaySlotsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Bookable)
		assert.NotContains(t, resp.FreeSlots, "09:00")
		assert.Contains(t, resp.FreeSlots, "09:30")
	})

	t.Run("day slots requires a date", func(t *testing.T) {
		router := newTestRouter(t)

		rec := doJSON(t, router, http.MethodGet, "/schedule/slots", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("busy dates", func(t *testing.T) {
		router := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/appointments", bookingRequest(date, "09:00"))
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(t, router, http.MethodGet, "/schedule/busy", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp BusyDatesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp.Busy, date)
	})
}

func TestPatientEndpoints(t *testing.T) {
	date := futureOpenDate(7)

	t.Run("pending lookup", func(t *testing.T) {
		router := newTestRouter(t)

		req := bookingRequest(date, "09:00")
		created := decodeAppointment(t, doJSON(t, router, http.MethodPost, "/appointments", req))

		rec := doJSON(t, router, http.MethodGet, "/patients/"+req.PatientID+"/pending", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, created.ID, decodeAppointment(t, rec).ID)
	})

	t.Run("no pending appointment", func(t *testing.T) {
		router := newTestRouter(t)

		rec := doJSON(t, router, http.MethodGet, "/patients/"+uuid.NewString()+"/pending", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "no_pending_appointment", decodeError(t, rec).Error)
	})

	t.Run("patient appointment listing", func(t *testing.T) {
		router := newTestRouter(t)

		req := bookingRequest(date, "09:00")
		created := decodeAppointment(t, doJSON(t, router, http.MethodPost, "/appointments", req))

		rec := doJSON(t, router, http.MethodGet, "/patients/"+req.PatientID+"/appointments", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var appts []AppointmentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appts))
		require.Len(t, appts, 1)
		assert.Equal(t, created.ID, appts[0].ID)
	})
}
