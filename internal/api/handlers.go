package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicdesk/appointment-booking/internal/appointment"
)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		date, err := appointment.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date_format", "date must be YYYY-MM-DD")
			return
		}

		patient := appointment.PatientIdentity{
			ID:        patientID,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
		}

		appt, err := svc.CreateAppointment(r.Context(), patient, date, req.Time, req.Reason)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := svc.ListAppointments(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		fields := appointment.FieldUpdate{
			PatientName: req.PatientName,
			Email:       req.Email,
			Phone:       req.Phone,
			Time:        req.Time,
			Reason:      req.Reason,
		}

		if req.Date != nil {
			date, err := appointment.ParseDate(*req.Date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date_format", "date must be YYYY-MM-DD")
				return
			}
			fields.Date = &date
		}
		if req.Status != nil {
			status := appointment.Status(*req.Status)
			fields.Status = &status
		}

		appt, err := svc.UpdateFields(r.Context(), id, fields)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func confirmAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return setStatusHandler(svc, appointment.StatusConfirmed)
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return setStatusHandler(svc, appointment.StatusCancelled)
}

func setStatusHandler(svc *appointment.Service, to appointment.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.SetStatus(r.Context(), id, to)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func daySlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := appointment.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date_format", "date must be YYYY-MM-DD")
			return
		}

		avail := svc.Availability()
		free, err := avail.FreeSlots(r.Context(), date)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, DaySlotsResponse{
			Date:      appointment.FormatDate(date),
			FreeSlots: free,
			Bookable:  avail.Schedule().IsDateBookable(date, time.Now()),
		})
	}
}

func busyDatesHandler(svc *appointment.Service, defaultHorizonDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		from := appointment.DateOf(time.Now())
		if v := q.Get("from"); v != "" {
			d, err := appointment.ParseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date_format", "from must be YYYY-MM-DD")
				return
			}
			from = d
		}

		to := from.AddDate(0, 0, defaultHorizonDays)
		if v := q.Get("to"); v != "" {
			d, err := appointment.ParseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date_format", "to must be YYYY-MM-DD")
				return
			}
			to = d
		}

		busy, err := svc.Availability().BusyDates(r.Context(), from, to)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		days := make([]string, 0, len(busy))
		for _, d := range busy {
			days = append(days, appointment.FormatDate(d))
		}

		writeJSON(w, http.StatusOK, BusyDatesResponse{
			From: appointment.FormatDate(from),
			To:   appointment.FormatDate(to),
			Busy: days,
		})
	}
}

func patientAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := pathUUID(w, r, "id", "invalid_patient_id", "id must be a valid UUID")
		if !ok {
			return
		}

		appts, err := svc.ListPatientAppointments(r.Context(), patientID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func patientPendingHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := pathUUID(w, r, "id", "invalid_patient_id", "id must be a valid UUID")
		if !ok {
			return
		}

		appt, err := svc.GetPendingAppointment(r.Context(), patientID)
		if err != nil {
			if errors.Is(err, appointment.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "no_pending_appointment", "patient has no pending appointment")
				return
			}
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return pathUUID(w, r, "id", "invalid_appointment_id", "id must be a valid UUID")
}

func pathUUID(w http.ResponseWriter, r *http.Request, param, code, details string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, details)
		return uuid.Nil, false
	}
	return id, true
}

// handleServiceError maps domain failures onto HTTP statuses so the UI
// can tell a policy rejection from a conflict from a missing record.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrDateNotBookable):
		writeError(w, http.StatusUnprocessableEntity, "date_not_bookable", err.Error())
	case errors.Is(err, appointment.ErrInvalidSlotTime):
		writeError(w, http.StatusUnprocessableEntity, "invalid_time_slot", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatus):
		writeError(w, http.StatusUnprocessableEntity, "invalid_status", err.Error())
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, appointment.ErrPendingLimit):
		writeError(w, http.StatusConflict, "pending_appointment_exists", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrCancelledTerminal):
		writeError(w, http.StatusConflict, "appointment_cancelled", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
