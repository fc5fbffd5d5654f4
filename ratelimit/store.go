// api/ratelimit/store.go

// Package ratelimit provides the retry controller wrapped around every
// outbound provider call, backed by a process-wide keyed backoff store so
// concurrent callers sharing an identifier converge on one cool-down window
// instead of retrying independently.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store holds the "retry-until" deadline per operation identifier. The
// lifetime of a slot is the process (or, for the Redis store, the fleet);
// deadlines only ever move forward.
type Store interface {
	// Deadline returns the current retry-until deadline for the identifier,
	// or the zero time when none is set.
	Deadline(ctx context.Context, identifier string) (time.Time, error)
	// Extend raises the identifier's deadline to until. A later existing
	// deadline is kept; deadlines never move backward.
	Extend(ctx context.Context, identifier string, until time.Time) error
}

// MemoryStore is the default in-process Store. One instance is created at
// startup and shared by every invoker.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[string]time.Time
}

// NewMemoryStore creates an empty backoff store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]time.Time)}
}

func (s *MemoryStore) Deadline(ctx context.Context, identifier string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[identifier], nil
}

func (s *MemoryStore) Extend(ctx context.Context, identifier string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.slots[identifier]; ok && existing.After(until) {
		return nil
	}
	s.slots[identifier] = until
	return nil
}
