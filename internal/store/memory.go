package store

import (
	"context"
	"sort"
	"sync"

	"github.com/inamate/projmap/internal/surface"
)

// Memory is an in-process Store.
type Memory struct {
	mu       sync.RWMutex
	versions map[string]Version
}

func NewMemory() *Memory {
	return &Memory{versions: make(map[string]Version)}
}

func (m *Memory) Save(_ context.Context, v Version) error {
	v.Shapes = surface.CloneAll(v.Shapes)
	m.mu.Lock()
	m.versions[v.ID] = v
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context) ([]Version, error) {
	m.mu.RLock()
	out := make([]Version, 0, len(m.versions))
	for _, v := range m.versions {
		v.Shapes = surface.CloneAll(v.Shapes)
		out = append(out, v)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (m *Memory) Get(_ context.Context, id string) (Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[id]
	if !ok {
		return Version{}, ErrNotFound
	}
	v.Shapes = surface.CloneAll(v.Shapes)
	return v, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.versions[id]; !ok {
		return ErrNotFound
	}
	delete(m.versions, id)
	return nil
}

func (m *Memory) Close() error { return nil }
