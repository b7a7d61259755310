package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/clinicdesk/appointment-booking/internal/appointment"
)

type RouterConfig struct {
	Service         *appointment.Service
	PgPool          *pgxpool.Pool
	Redis           *redis.Client
	Env             string
	Version         string
	BusyHorizonDays int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Booking and admin endpoints
	r.Post("/appointments", createAppointmentHandler(cfg.Service))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Patch("/appointments/{id}", updateAppointmentHandler(cfg.Service))
	r.Delete("/appointments/{id}", deleteAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))

	// Calendar queries for the booking UI
	r.Get("/schedule/slots", daySlotsHandler(cfg.Service))
	r.Get("/schedule/busy", busyDatesHandler(cfg.Service, cfg.BusyHorizonDays))

	// Patient-facing views
	r.Get("/patients/{id}/appointments", patientAppointmentsHandler(cfg.Service))
	r.Get("/patients/{id}/pending", patientPendingHandler(cfg.Service))

	return r
}
