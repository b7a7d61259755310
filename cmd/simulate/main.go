package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/clinicdesk/appointment-booking/internal/appointment"
)

// The simulator drives concurrent booking sessions against a running
// api-server: many patients racing for slots in the near-term grid, staff
// confirming and cancelling behind them. Slot contention is deliberate so
// the commit-time re-check gets exercised, not just the happy path.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	HorizonDays  int
	ConfirmRatio float64
	CancelRatio  float64
}

type DataPool struct {
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) Add(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) Random() (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rand.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Rejected  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case status == http.StatusUnprocessableEntity:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]
	max = latencies[len(latencies)-1]
	return avg, p50, p95, max
}

type Metrics struct {
	Booking  OperationMetrics
	Confirm  OperationMetrics
	Cancel   OperationMetrics
	ReadDay  OperationMetrics
	BusyDays OperationMetrics
}

type Simulator struct {
	cfg      SimConfig
	pool     *DataPool
	client   *http.Client
	schedule *appointment.Schedule
	metrics  Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	gofakeit.Seed(time.Now().UnixNano())

	sim := &Simulator{
		cfg:      cfg,
		pool:     &DataPool{},
		client:   &http.Client{Timeout: 10 * time.Second},
		schedule: appointment.NewSchedule(nil, time.Sunday),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	log.Printf("running %d workers for %s against %s", cfg.Workers, cfg.Duration, cfg.APIBaseURL)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sim.worker(ctx)
		}()
	}
	wg.Wait()

	sim.report()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   envOr("SIM_API_URL", "http://127.0.0.1:8080"),
		Duration:     envDuration("SIM_DURATION", 30*time.Second),
		Workers:      envInt("SIM_WORKERS", 16),
		HorizonDays:  envInt("SIM_HORIZON_DAYS", 7),
		ConfirmRatio: 0.25,
		CancelRatio:  0.10,
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return cfg
}

func (s *Simulator) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		roll := rand.Float64()
		switch {
		case roll < s.cfg.ConfirmRatio:
			s.confirmRandom(ctx)
		case roll < s.cfg.ConfirmRatio+s.cfg.CancelRatio:
			s.cancelRandom(ctx)
		case roll < 0.55:
			s.readDay(ctx)
		case roll < 0.65:
			s.readBusyDays(ctx)
		default:
			s.book(ctx)
		}
	}
}

// book picks a random day and slot inside a small horizon. The narrow
// horizon keeps several workers fighting over the same slots.
func (s *Simulator) book(ctx context.Context) {
	date := s.randomDate()
	slots := s.schedule.Slots()
	slot := slots[rand.Intn(len(slots))]

	body, _ := json.Marshal(map[string]string{
		"patient_id": uuid.NewString(),
		"first_name": gofakeit.FirstName(),
		"last_name":  gofakeit.LastName(),
		"email":      gofakeit.Email(),
		"phone":      gofakeit.Phone(),
		"date":       appointment.FormatDate(date),
		"time":       slot,
		"reason":     "Simulated booking",
	})

	start := time.Now()
	status, respBody := s.post(ctx, "/appointments", body)
	s.metrics.Booking.Record(time.Since(start), status)

	if status == http.StatusCreated {
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.Unmarshal(respBody, &created); err == nil && created.ID != uuid.Nil {
			s.pool.Add(created.ID)
		}
	}
}

func (s *Simulator) confirmRandom(ctx context.Context) {
	id, ok := s.pool.Random()
	if !ok {
		return
	}
	start := time.Now()
	status, _ := s.post(ctx, fmt.Sprintf("/appointments/%s/confirm", id), nil)
	s.metrics.Confirm.Record(time.Since(start), status)
}

func (s *Simulator) cancelRandom(ctx context.Context) {
	id, ok := s.pool.Random()
	if !ok {
		return
	}
	start := time.Now()
	status, _ := s.post(ctx, fmt.Sprintf("/appointments/%s/cancel", id), nil)
	s.metrics.Cancel.Record(time.Since(start), status)
}

func (s *Simulator) readDay(ctx context.Context) {
	date := s.randomDate()
	start := time.Now()
	status := s.get(ctx, "/schedule/slots?date="+appointment.FormatDate(date))
	s.metrics.ReadDay.Record(time.Since(start), status)
}

func (s *Simulator) readBusyDays(ctx context.Context) {
	start := time.Now()
	status := s.get(ctx, "/schedule/busy")
	s.metrics.BusyDays.Record(time.Since(start), status)
}

func (s *Simulator) randomDate() time.Time {
	day := appointment.DateOf(time.Now()).AddDate(0, 0, 1+rand.Intn(s.cfg.HorizonDays))
	if day.Weekday() == s.schedule.ClosedWeekday() {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

func (s *Simulator) post(ctx context.Context, path string, body []byte) (int, []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func (s *Simulator) get(ctx context.Context, path string) int {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.APIBaseURL+path, nil)
	if err != nil {
		return 0
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func (s *Simulator) report() {
	printOp := func(name string, om *OperationMetrics) {
		avg, p50, p95, max := om.Stats()
		log.Printf("%-10s total=%d success=%d conflict=%d rejected=%d error=%d avg=%s p50=%s p95=%s max=%s",
			name, om.Total, om.Success, om.Conflict, om.Rejected, om.Error, avg, p50, p95, max)
	}

	log.Println("simulation finished")
	printOp("booking", &s.metrics.Booking)
	printOp("confirm", &s.metrics.Confirm)
	printOp("cancel", &s.metrics.Cancel)
	printOp("day-slots", &s.metrics.ReadDay)
	printOp("busy-days", &s.metrics.BusyDays)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
