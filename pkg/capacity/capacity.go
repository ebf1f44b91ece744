// Package capacity caps the number of simultaneously live VM instances with a
// fixed slot pool. Requests beyond capacity are rejected, never queued.
package capacity

import (
	"sync"

	"golang.org/x/sync/semaphore"

	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/ports"
)

type Limiter struct {
	limit int
	sem   *semaphore.Weighted
}

func New(limit int) *Limiter {
	return &Limiter{
		limit: limit,
		sem:   semaphore.NewWeighted(int64(limit)),
	}
}

// Acquire claims a slot without blocking. The returned slot must be released
// exactly once, after the owning instance reaches a terminal state.
func (l *Limiter) Acquire() (ports.Slot, error) {
	if !l.sem.TryAcquire(1) {
		return nil, errors.CapacityExceededError{Limit: l.limit}
	}

	return &slot{sem: l.sem}, nil
}

func (l *Limiter) Limit() int {
	return l.limit
}

type slot struct {
	sem  *semaphore.Weighted
	once sync.Once
}

// Release returns the slot to the pool. Releasing twice is a no-op.
func (s *slot) Release() {
	s.once.Do(func() { s.sem.Release(1) })
}
