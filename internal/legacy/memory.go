package legacy

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
)

// MemorySource is an in-process Source, used by tests and dry runs.
type MemorySource struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemorySource creates a source holding a copy of data.
func NewMemorySource(data map[string]string) *MemorySource {
	m := &MemorySource{data: make(map[string]string, len(data))}
	maps.Copy(m.data, data)
	return m
}

// Get implements Source.
func (m *MemorySource) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Keys implements Source.
func (m *MemorySource) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Remove implements Source.
func (m *MemorySource) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Set stores a value.
func (m *MemorySource) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Len returns the number of stored keys.
func (m *MemorySource) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
