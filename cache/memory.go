package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/fetchops/clock"
)

// Memory is an in-memory Store implementation.
type Memory struct {
	clock   clock.Clock
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemory creates a new in-memory store. A nil clk uses the system clock.
func NewMemory(clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.System()
	}
	return &Memory{
		clock:   clk,
		entries: make(map[string]*memoryEntry),
	}
}

// Get retrieves a value from the store. Returns (nil, false) on miss or expiry.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if m.clock.Now().After(entry.expiresAt) {
		// Expired - clean up lazily
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}

	return entry.value, true
}

// Set stores a value with the given TTL. TTL=0 means immediate expiry (no caching).
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	m.entries[key] = &memoryEntry{
		value:     value,
		expiresAt: m.clock.Now().Add(ttl),
	}
	m.mu.Unlock()

	return nil
}

// Delete removes a value from the store. Idempotent - no error on miss.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Ensure Memory implements Store
var _ Store = (*Memory)(nil)
