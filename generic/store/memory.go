// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/caja-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps values in a map. With a quota it behaves like browser local
// storage: a write that would push the total size past the quota fails and
// the previous value stays.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
	size   int
	quota  int // bytes, 0 = unlimited
}

// Option configures a Memory store.
type Option func(*Memory)

// WithQuota limits the total bytes (keys + values) the store may hold.
func WithQuota(bytes int) Option {
	return func(m *Memory) { m.quota = bytes }
}

func NewMemory(opts ...Option) *Memory {
	m := &Memory{values: make(map[string][]byte)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ generic.Store = (*Memory)(nil)

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newSize := m.size - m.entrySize(key) + len(key) + len(value)
	if m.quota > 0 && newSize > m.quota {
		return generic.ErrQuotaExceeded
	}

	v := make([]byte, len(value))
	copy(v, value)
	m.values[key] = v
	m.size = newSize
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.size -= m.entrySize(key)
	delete(m.values, key)
	return nil
}

// SetQuota changes the quota at runtime. Tests use it to make the next
// write fail without touching existing data.
func (m *Memory) SetQuota(bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quota = bytes
}

// Size returns the bytes currently held.
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *Memory) entrySize(key string) int {
	v, ok := m.values[key]
	if !ok {
		return 0
	}
	return len(key) + len(v)
}
