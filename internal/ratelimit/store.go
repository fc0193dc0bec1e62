package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Entry is the counter for one key in one window.
type Entry struct {
	Key           string
	Count         int
	WindowResetAt time.Time
}

// Store persists limiter counters.
type Store interface {
	// Increment adds one to key's counter and returns the updated entry. A
	// missing entry, or one whose window ended at or before now, restarts at
	// zero in the window ending at windowResetAt before the increment.
	Increment(ctx context.Context, key string, windowResetAt, now time.Time) (Entry, error)

	// Sweep deletes entries whose window ended at or before now.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore keeps counters in process memory. Each process has its own
// view; use the SQL or redis store when limits must hold across replicas.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Increment(_ context.Context, key string, windowResetAt, now time.Time) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok || !now.Before(entry.WindowResetAt) {
		entry = Entry{Key: key, WindowResetAt: windowResetAt}
	}
	entry.Count++
	m.entries[key] = entry
	return entry, nil
}

func (m *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, entry := range m.entries {
		if !now.Before(entry.WindowResetAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
