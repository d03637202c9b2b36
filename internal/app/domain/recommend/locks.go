package recommend

import (
	"sync"

	"github.com/google/uuid"
)

// UserLocks serializes queue access per user so an in-flight remainder
// write is observed by the next feed read for the same user. Locks are
// created on demand and never evicted; the map is bounded by the active
// user population.
type UserLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock acquires the per-user lock and returns its release func.
func (l *UserLocks) Lock(userID uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
