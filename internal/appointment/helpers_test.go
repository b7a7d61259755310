package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/clinicdesk/appointment-booking/internal/redis"
)

// testNow is the fixed "today" for the suite: Monday 2025-03-03, 12:00 UTC.
var testNow = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

func mustDate(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// localLocker serializes critical sections per slot key in-process, the
// same contract the Redis locker provides across processes.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLocalLocker() *localLocker {
	return &localLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *localLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[slotKey]
	if !ok {
		m = &sync.Mutex{}
		l.locks[slotKey] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

// contendedLocker always reports the lock as held by someone else.
type contendedLocker struct{}

func (contendedLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func newTestService() (*Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	schedule := NewSchedule(nil, time.Sunday)
	avail := NewAvailability(repo, schedule)
	svc := NewService(repo, avail, newLocalLocker())
	svc.now = func() time.Time { return testNow }
	return svc, repo
}

func testPatient() PatientIdentity {
	return PatientIdentity{
		ID:        uuid.New(),
		FirstName: "Maria",
		LastName:  "Lopez",
		Email:     "maria.lopez@example.com",
		Phone:     "+34 600 111 222",
	}
}
