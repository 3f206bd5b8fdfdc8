package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryWindow struct {
	start  time.Time
	window time.Duration
	count  int64
}

// MemoryStore is an in-process CounterStore for tests and single-node setups.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

// WithClock replaces the time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Take(_ context.Context, key string, limit int64, window time.Duration) (Counter, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w := s.windows[key]
	if w == nil || !now.Before(w.start.Add(w.window)) {
		w = &memoryWindow{start: now, window: window}
		s.windows[key] = w
	}

	resetIn := w.start.Add(w.window).Sub(now)
	if w.count >= limit {
		return Counter{Count: w.count, ResetIn: resetIn}, false, nil
	}
	w.count++
	return Counter{Count: w.count, ResetIn: resetIn}, true, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w := s.windows[key]
	if w == nil || !now.Before(w.start.Add(w.window)) {
		return Counter{}, nil
	}
	return Counter{Count: w.count, ResetIn: w.start.Add(w.window).Sub(now)}, nil
}

var _ CounterStore = (*MemoryStore)(nil)
