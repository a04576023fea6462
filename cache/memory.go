package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is the in-process fallback store, used when no Redis URL is
// configured or the connection fails at boot.
type Memory struct {
	mtx     sync.RWMutex
	entries map[string]memoryEntry
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mtx.RLock()
	entry, ok := m.entries[key]
	m.mtx.RUnlock()

	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mtx.Lock()
		delete(m.entries, key)
		m.mtx.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}

	// Opportunistic sweep keeps the map from growing unbounded without a
	// background goroutine.
	if len(m.entries) > 1024 {
		now := time.Now()
		for k, e := range m.entries {
			if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
				delete(m.entries, k)
			}
		}
	}

	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Ping(_ context.Context) error {
	return nil
}
