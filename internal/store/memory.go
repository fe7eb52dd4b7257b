package store

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-process Store backed by mutex-guarded maps. Used by tests
// and ephemeral runs where nothing needs to survive the process.
type Memory struct {
	mu      sync.Mutex
	scalars map[string]memoryEntry
	lists   map[string][]memoryEntry
	listExp map[string]time.Time
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		scalars: make(map[string]memoryEntry),
		lists:   make(map[string][]memoryEntry),
		listExp: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scalars[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: m.expiry(ttl),
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.scalars[key]
	if !ok || e.expired(m.now()) {
		delete(m.scalars, key)
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scalars, key)
	delete(m.lists, key)
	delete(m.listExp, key)
	return nil
}

func (m *Memory) AppendToList(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeListLocked(key)
	m.lists[key] = append(m.lists[key], memoryEntry{value: append([]byte(nil), value...)})
	m.listExp[key] = m.expiry(ttl)
	return nil
}

func (m *Memory) RangeOfList(_ context.Context, key string, start, end int) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeListLocked(key)
	list := m.lists[key]
	lo, hi, ok := rangeBounds(start, end, len(list))
	if !ok {
		return nil, nil
	}
	out := make([][]byte, 0, hi-lo+1)
	for _, e := range list[lo : hi+1] {
		out = append(out, append([]byte(nil), e.value...))
	}
	return out, nil
}

func (m *Memory) ScanKeysByPrefix(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var keys []string
	for k, e := range m.scalars {
		if e.expired(now) {
			delete(m.scalars, k)
			continue
		}
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) CompareAndSwap(_ context.Context, key string, old, new []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.scalars[key]
	if !ok || e.expired(m.now()) {
		delete(m.scalars, key)
		return false, nil
	}
	if !bytes.Equal(e.value, old) {
		return false, nil
	}
	m.scalars[key] = memoryEntry{
		value:     append([]byte(nil), new...),
		expiresAt: m.expiry(ttl),
	}
	return true, nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

// purgeListLocked drops a whole list once its retention window has passed.
func (m *Memory) purgeListLocked(key string) {
	exp, ok := m.listExp[key]
	if ok && !exp.IsZero() && m.now().After(exp) {
		delete(m.lists, key)
		delete(m.listExp, key)
	}
}
