package kv

import (
	"context"
	"slices"
	"sync"
)

// Memory is a process-local Store.
type Memory struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{sets: make(map[string]map[string]struct{})}
}

// Add implements Store.
func (m *Memory) Add(_ context.Context, set, member string) (bool, error) {
	if set == "" || member == "" {
		return false, ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[set]
	if !ok {
		s = make(map[string]struct{})
		m.sets[set] = s
	}
	if _, ok := s[member]; ok {
		return false, nil
	}
	s[member] = struct{}{}
	return true, nil
}

// Remove implements Store.
func (m *Memory) Remove(_ context.Context, set, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sets[set]; ok {
		delete(s, member)
		if len(s) == 0 {
			delete(m.sets, set)
		}
	}
	return nil
}

// Members implements Store.
func (m *Memory) Members(_ context.Context, set string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sets[set]))
	for member := range m.sets[set] {
		out = append(out, member)
	}
	slices.Sort(out)
	return out, nil
}

// Contains implements Store.
func (m *Memory) Contains(_ context.Context, set, member string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sets[set][member]
	return ok, nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
