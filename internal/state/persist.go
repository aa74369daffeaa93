package state

import (
	"context"
	"net/url"
	"sync"
)

// Keys of the persisted entries.
const (
	LastViewKey        = "gsa.last.filters.v1"
	PresetsKey         = "gsa.presets.v1"
	StatusOverridesKey = "gsa.status.overrides.v1"
)

// Persister is the best-effort key-value store behind a session. Get
// reports ok=false for a missing key.
type Persister interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
}

// Location is the address bar of a session.
type Location interface {
	Query() url.Values
	Replace(v url.Values)
}

// MemoryPersister keeps entries in process memory.
type MemoryPersister struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{entries: make(map[string][]byte)}
}

func (m *MemoryPersister) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryPersister) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = append([]byte(nil), value...)
	return nil
}

// MemoryLocation holds a query string in memory. Replace overwrites the
// whole query; there is no history.
type MemoryLocation struct {
	mu    sync.RWMutex
	query url.Values
}

func NewMemoryLocation(initial url.Values) *MemoryLocation {
	return &MemoryLocation{query: cloneValues(initial)}
}

func (l *MemoryLocation) Query() url.Values {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneValues(l.query)
}

func (l *MemoryLocation) Replace(v url.Values) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.query = cloneValues(v)
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
