package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in a map; entries idle for longer than ttl expire.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Settings
	ttl   time.Duration
	now   func() time.Time
}

// Ensure interface conformance
var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{items: make(map[string]Settings), ttl: ttl, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, id string) (Settings, error) {
	m.mu.RLock()
	s, ok := m.items[id]
	m.mu.RUnlock()
	if !ok || m.expired(s) {
		return Settings{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s Settings) error {
	s = s.Clone()
	s.UpdatedAt = m.now()
	m.mu.Lock()
	m.items[s.ID] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.items, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) CleanExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.items {
		if m.expired(s) {
			delete(m.items, id)
			n++
		}
	}
	return n
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) expired(s Settings) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}
