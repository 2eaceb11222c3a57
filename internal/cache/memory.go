package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

const (
	// DefaultMaxEntries bounds a Memory cache unless overridden.
	DefaultMaxEntries = 300

	// cullFraction is the share (1/n) of entries evicted when the cache is full.
	cullFraction = 3

	sweepInterval = time.Minute
)

// Memory is a process-local Cache. Expired entries are dropped on Get and
// swept on Set at most once per sweepInterval. When MaxEntries is reached a
// third of the entries are evicted.
type Memory struct {
	MaxEntries int

	mu        sync.Mutex
	entries   map[string]memoryEntry
	now       func() time.Time
	nextSweep time.Time
}

var _ Cache = (*Memory)(nil)

// NewMemory returns an empty cache. A nil clock means time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		MaxEntries: DefaultMaxEntries,
		entries:    make(map[string]memoryEntry),
		now:        now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !now.Before(m.nextSweep) {
		m.dropExpired(now)
		m.nextSweep = now.Add(sweepInterval)
	}
	if _, ok := m.entries[key]; !ok && m.MaxEntries > 0 && len(m.entries) >= m.MaxEntries {
		m.dropExpired(now)
		if len(m.entries) >= m.MaxEntries {
			m.cull()
		}
	}

	m.entries[key] = memoryEntry{
		value:   append([]byte(nil), value...),
		expires: now.Add(ttl),
	}
	return nil
}

func (m *Memory) dropExpired(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}

// cull evicts an arbitrary third of the entries, at least one.
func (m *Memory) cull() {
	n := max(len(m.entries)/cullFraction, 1)
	for k := range m.entries {
		if n == 0 {
			break
		}
		delete(m.entries, k)
		n--
	}
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]memoryEntry)
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Close() {}
