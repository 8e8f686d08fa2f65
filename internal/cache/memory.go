package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Memory is a bounded in-process cache. When full, the least recently used
// entry is evicted. The LRU drops anything older than maxTTL on its own; each
// entry also carries the shorter deadline it was stored with.
type Memory struct {
	// mu makes SetNX's check-then-add atomic.
	mu  sync.Mutex
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

func NewMemory(maxEntries int, maxTTL time.Duration) *Memory {
	return &Memory{
		lru: expirable.NewLRU[string, entry](maxEntries, nil, maxTTL),
		now: time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lru.Get(key)
	if !ok {
		return "", ErrMiss
	}
	if !m.now().Before(e.expiresAt) {
		m.lru.Remove(key)
		return "", ErrMiss
	}
	return e.value, nil
}

func (m *Memory) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.lru.Peek(key); ok && now.Before(e.expiresAt) {
		return false, nil
	}
	m.lru.Add(key, entry{value: value, expiresAt: now.Add(ttl)})
	return true, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// Sweep drops entries whose own deadline has passed and returns how many were
// removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for _, key := range m.lru.Keys() {
		if e, ok := m.lru.Peek(key); ok && !now.Before(e.expiresAt) {
			m.lru.Remove(key)
			removed++
		}
	}
	return removed
}

func (m *Memory) Len() int {
	return m.lru.Len()
}
