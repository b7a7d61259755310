package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/appointment-booking/internal/appointment"
	"github.com/clinicdesk/appointment-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedAppointments(context.Background(), pool, 28); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

// seedAppointments books demo patients into the slot grid over the next
// `days` calendar days, skipping the closed weekday and keeping the slot
// uniqueness invariant by construction: each (day, slot) is used once.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, days int) error {
	log.Printf("seeding appointments over the next %d days", days)

	reasons := []string{
		"General consultation",
		"Annual check-up",
		"Blood pressure review",
		"Lab results follow-up",
		"Vaccination",
		"Prescription renewal",
		"Skin examination",
		"Back pain",
	}

	schedule := appointment.NewSchedule(nil, time.Sunday)
	statuses := []appointment.Status{
		appointment.StatusPending,
		appointment.StatusConfirmed,
		appointment.StatusConfirmed,
		appointment.StatusCancelled,
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	total := 0
	day := appointment.DateOf(time.Now())

	for i := 0; i < days; i++ {
		day = day.AddDate(0, 0, 1)
		if day.Weekday() == schedule.ClosedWeekday() {
			continue
		}

		for _, slot := range schedule.Slots() {
			// Leave most of the grid open so the booking UI has choices.
			if gofakeit.Number(0, 99) >= 30 {
				continue
			}

			status := statuses[gofakeit.Number(0, len(statuses)-1)]
			reason := reasons[gofakeit.Number(0, len(reasons)-1)]
			first := gofakeit.FirstName()
			last := gofakeit.LastName()

			_, err := tx.Exec(ctx, `
				INSERT INTO appointments (id, patient_id, patient_name, email, phone, date, slot_time, reason, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			`, uuid.New(), uuid.New(), first+" "+last, gofakeit.Email(), gofakeit.Phone(), day, slot, reason, status)
			if err != nil {
				return err
			}
			total++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("appointments seeded: %d", total)
	return nil
}
