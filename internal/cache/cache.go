// internal/cache/cache.go
package cache

import (
	"context"
	"sync"
	"time"
)

// Entry is a cached value with the instant it stops being valid.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Expired reports whether the entry is no longer valid at now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Cache is an explicit-expiry key/value cache. Writers that change the
// underlying data call Invalidate; readers never see an entry past ExpiresAt.
//
// Every key carries a generation that Invalidate bumps. A reader fills the
// cache by taking Generation before loading from the source and passing it
// to SetIfGeneration, which drops the write if an Invalidate came between.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	Generation(ctx context.Context, key string) (int64, error)
	SetIfGeneration(ctx context.Context, key string, gen int64, value []byte, expiresAt time.Time) (bool, error)
	Invalidate(ctx context.Context, keys ...string) error
}

// Memory is an in-process Cache.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
	gens    map[string]int64
	now     func() time.Time
}

// NewMemory returns an empty Memory cache. A nil clock means time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{entries: make(map[string]Entry), gens: make(map[string]int64), now: now}
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	if e.Expired(m.now()) {
		delete(m.entries, key)
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, value, expiresAt)
	return nil
}

func (m *Memory) setLocked(key string, value []byte, expiresAt time.Time) {
	v := make([]byte, len(value))
	copy(v, value)
	m.entries[key] = Entry{Value: v, ExpiresAt: expiresAt}
}

func (m *Memory) Generation(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[key], nil
}

func (m *Memory) SetIfGeneration(_ context.Context, key string, gen int64, value []byte, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[key] != gen {
		return false, nil
	}
	m.setLocked(key, value, expiresAt)
	return true, nil
}

func (m *Memory) Invalidate(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
		m.gens[k]++
	}
	return nil
}
