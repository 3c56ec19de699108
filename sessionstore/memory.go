package sessionstore

import (
	"sync"
	"time"
)

// MemoryBackend keeps values for the life of the process (one browser tab).
type MemoryBackend struct {
	mu      sync.Mutex
	values  map[string]memoryEntry
	now     func() time.Time
	Disable bool
}

type memoryEntry struct {
	value   string
	expires time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Get(key string) (string, bool, error) {
	if m.Disable {
		return "", false, errBackendDisabled
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.values[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expires.IsZero() && m.now().After(entry.expires) {
		delete(m.values, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryBackend) Set(key, value string, ttl time.Duration) error {
	if m.Disable {
		return errBackendDisabled
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expires = m.now().Add(ttl)
	}
	m.values[key] = entry
	return nil
}

func (m *MemoryBackend) Delete(key string) error {
	if m.Disable {
		return errBackendDisabled
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
