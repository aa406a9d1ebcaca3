package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value []byte
	count int64
	exp   time.Time
}

// MemoryCache is the in-process fallback used when REDIS_URL is not set.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: map[string]entry{}, now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok || e.value == nil {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.exp = m.now().Add(ttl)
	}
	m.items[key] = e
	return nil
}

func (m *MemoryCache) IncrWithExpiry(_ context.Context, key string, expiry time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _ := m.live(key)
	e.count++
	e.value = nil
	if expiry > 0 {
		e.exp = m.now().Add(expiry)
	}
	m.items[key] = e
	return e.count, nil
}

func (m *MemoryCache) Ping(context.Context) error { return nil }

// live must be called with mu held.
func (m *MemoryCache) live(key string) (entry, bool) {
	e, ok := m.items[key]
	if !ok {
		return entry{}, false
	}
	if !e.exp.IsZero() && !m.now().Before(e.exp) {
		delete(m.items, key)
		return entry{}, false
	}
	return e, true
}
