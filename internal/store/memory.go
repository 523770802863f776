package store

import (
	"context"
	"sync"

	"github.com/jonathan/transcript-pipeline/internal/types"
)

// MemoryStore keeps snapshots in memory. Every Persist is recorded so
// callers can inspect the sequence of saved states.
type MemoryStore struct {
	mu        sync.Mutex
	current   types.Index
	snapshots []types.Index

	// PersistErr, when set, is returned by Persist.
	PersistErr error
	// LoadErr, when set, is returned by Load.
	LoadErr error
}

// NewMemoryStore creates a MemoryStore seeded with a copy of idx.
func NewMemoryStore(idx types.Index) *MemoryStore {
	if idx == nil {
		idx = types.NewIndex()
	}
	return &MemoryStore{current: idx.Clone()}
}

// Load returns a copy of the last persisted index.
func (m *MemoryStore) Load(ctx context.Context) (types.Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return m.current.Clone(), nil
}

// Persist stores a copy of idx.
func (m *MemoryStore) Persist(ctx context.Context, idx types.Index) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PersistErr != nil {
		return m.PersistErr
	}
	m.current = idx.Clone()
	m.snapshots = append(m.snapshots, idx.Clone())
	return nil
}

// Snapshots returns every persisted index in order.
func (m *MemoryStore) Snapshots() []types.Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Index, len(m.snapshots))
	copy(out, m.snapshots)
	return out
}

// Current returns a copy of the last persisted index.
func (m *MemoryStore) Current() types.Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}
