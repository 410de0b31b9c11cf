package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/listing-recon/internal/model"
)

type memoryEntry struct {
	pc      *model.PropertyComparison
	expires time.Time // zero means no expiry
}

// Memory is an in-process cache.
type Memory struct {
	mu      sync.Mutex
	entries map[Key]memoryEntry
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[Key]memoryEntry), now: time.Now}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key Key) (*model.PropertyComparison, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.pc, true, nil
}

// Set implements Cache. A non-positive ttl never expires.
func (m *Memory) Set(_ context.Context, key Key, pc *model.PropertyComparison, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{pc: pc}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close implements Cache.
func (m *Memory) Close() error { return nil }
