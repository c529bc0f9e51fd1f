package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory store backed by a sync.RWMutex-protected map.
// Records are deep-copied on save and load to prevent external mutation.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
	}
}

// Save persists a record by deep-copying it into the store.
func (m *MemoryStore) Save(_ context.Context, r *Record) error {
	if r == nil {
		return errNilRecord
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[r.ID] = r.Clone()
	return nil
}

// Load retrieves a record by ID as a deep copy.
func (m *MemoryStore) Load(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return nil, notFound(id)
	}
	return r.Clone(), nil
}

// Delete removes a record by ID.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return notFound(id)
	}
	delete(m.records, id)
	return nil
}

// List returns all records ordered by creation time.
func (m *MemoryStore) List(_ context.Context) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Record, 0, len(m.records))
	for _, r := range m.records {
		result = append(result, r.Clone())
	}
	sortRecords(result)
	return result, nil
}
