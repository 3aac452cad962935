package devicesessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/playgate/internal/policy"
)

// MemoryLedger keeps sessions in process. Each rental has its own mutex so
// admissions for different rentals never contend.
type MemoryLedger struct {
	mu      sync.Mutex
	rentals map[uuid.UUID]*memoryRental
	ttl     time.Duration
	now     func() time.Time
}

type memoryRental struct {
	mu       sync.Mutex
	sessions map[string]time.Time
	// dead is set under mu once ReapExpired has dropped the entry from the map.
	dead bool
}

// NewMemoryLedger builds an in-process ledger.
func NewMemoryLedger(ttl time.Duration, now func() time.Time) *MemoryLedger {
	if now == nil {
		now = time.Now
	}
	return &MemoryLedger{
		rentals: make(map[uuid.UUID]*memoryRental),
		ttl:     ttlOrDefault(ttl),
		now:     now,
	}
}

func (l *MemoryLedger) Name() string { return "memory" }

func (l *MemoryLedger) entry(rentalID uuid.UUID) *memoryRental {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.rentals[rentalID]
	if !ok {
		e = &memoryRental{sessions: make(map[string]time.Time)}
		l.rentals[rentalID] = e
	}
	return e
}

// lock returns the rental's live entry with its mutex held. An entry reaped
// between lookup and locking is dead, so the lookup is repeated.
func (l *MemoryLedger) lock(rentalID uuid.UUID) *memoryRental {
	for {
		e := l.entry(rentalID)
		e.mu.Lock()
		if !e.dead {
			return e
		}
		e.mu.Unlock()
	}
}

func (l *MemoryLedger) Admit(ctx context.Context, rental policy.RentalRecord, sessionID string) (bool, error) {
	if err := validateSessionID(sessionID); err != nil {
		return false, err
	}
	e := l.lock(rental.ID)
	defer e.mu.Unlock()

	now := l.now()
	e.prune(now)
	if _, ok := e.sessions[sessionID]; ok {
		e.sessions[sessionID] = now.Add(l.ttl)
		return false, nil
	}
	if len(e.sessions) >= capOf(rental) {
		return false, errDeviceLimit(rental)
	}
	e.sessions[sessionID] = now.Add(l.ttl)
	return true, nil
}

func (l *MemoryLedger) Release(ctx context.Context, rental policy.RentalRecord, sessionID string) error {
	e := l.lock(rental.ID)
	defer e.mu.Unlock()
	delete(e.sessions, sessionID)
	return nil
}

func (l *MemoryLedger) Active(ctx context.Context, rental policy.RentalRecord) (int, error) {
	e := l.lock(rental.ID)
	defer e.mu.Unlock()
	e.prune(l.now())
	return len(e.sessions), nil
}

// ReapExpired drops expired sessions and forgets rentals with none left.
func (l *MemoryLedger) ReapExpired(ctx context.Context) (int, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	reaped := 0
	for id, e := range l.rentals {
		e.mu.Lock()
		reaped += e.prune(now)
		if len(e.sessions) == 0 {
			e.dead = true
			delete(l.rentals, id)
		}
		e.mu.Unlock()
	}
	return reaped, nil
}

func (e *memoryRental) prune(now time.Time) int {
	removed := 0
	for id, expiresAt := range e.sessions {
		if !expiresAt.After(now) {
			delete(e.sessions, id)
			removed++
		}
	}
	return removed
}
