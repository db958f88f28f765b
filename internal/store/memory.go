// internal/store/memory.go
//
// In-memory implementation of game.StateStore.
// Used in tests and when STATE_BACKEND=memory; state is lost on restart.
//
// Characteristics:
//   - Stores encoded game.State keyed by client key.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Values are copied on the way in and out, so callers never share slices.

package store

import (
	"context"
	"sync"

	"github.com/robalobadob/busdle/internal/game"
)

// memory is an in-memory map-based StateStore implementation.
type memory struct {
	mu     sync.RWMutex      // guards states map
	states map[string][]byte // keyed by client key
}

// NewMemoryStore constructs a new in-memory StateStore.
func NewMemoryStore() game.StateStore {
	return &memory{states: make(map[string][]byte)}
}

// Save replaces the stored state for key.
func (m *memory) Save(ctx context.Context, key string, s game.State) error {
	b, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = b
	return nil
}

// Load returns the state for key, or (nil, nil) if none is stored.
func (m *memory) Load(ctx context.Context, key string) (*game.State, error) {
	m.mu.RLock()
	b, ok := m.states[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decode(b)
}
