package cache

import (
	"context"
	"sync"
	"time"

	"github.com/unrepo/devportal/internal/monitoring"
)

type memoryEntry struct {
	secret    string
	expiresAt time.Time
}

// Memory is a process-local Store
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an in-memory store; ttl <= 0 keeps entries forever
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (m *Memory) Put(_ context.Context, namespace, slot, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[namespace+"/"+slot] = memoryEntry{secret: secret, expiresAt: expiry(m.now(), m.ttl)}
	monitoring.RecordCacheWrite("memory", nil)
	return nil
}

func (m *Memory) Get(_ context.Context, namespace, slot string) (string, bool, error) {
	key := namespace + "/" + slot
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if ok && !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		ok = false
	}
	if !ok {
		monitoring.RecordCacheMiss("memory")
		return "", false, nil
	}
	monitoring.RecordCacheHit("memory")
	return e.secret, true, nil
}

func (m *Memory) Close() error { return nil }
