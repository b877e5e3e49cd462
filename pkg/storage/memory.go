package storage

import (
	"context"
	"maps"
	"sync"
)

// Memory keeps values in process memory. It is the default when nothing is configured.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns an empty store, optionally seeded with initial values.
func NewMemory(initial map[string]string) *Memory {
	values := make(map[string]string, len(initial))
	maps.Copy(values, initial)
	return &Memory{values: values}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, value *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if value == nil {
		delete(m.values, key)
		return nil
	}
	m.values[key] = *value
	return nil
}

// Snapshot returns a copy of every stored value.
func (m *Memory) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.values)
}
