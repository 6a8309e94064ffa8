// internal/store/memory.go
//
// In-memory implementation of the session Store interface.
// This is a lightweight persistence layer for ephemeral game sessions;
// decks never outlive the process (only history/stats go to the DB).
//
// Characteristics:
//   - Stores *game.Session objects keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.
//   - Errors are returned for missing session IDs on Get().

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/StevenLuque2003/Memory-Game/internal/game"
)

// Store defines the persistence interface for game sessions.
// Implementations may be backed by memory (this package), Redis, SQL, etc.
type Store interface {
	// Save persists or updates a session.
	Save(ctx context.Context, s *game.Session) error

	// Get retrieves a session by ID.
	// Returns an error if the session is not found.
	Get(ctx context.Context, id string) (*game.Session, error)
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex             // guards sessions map
	sessions map[string]*game.Session // keyed by Session.ID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*game.Session)}
}

// Save adds or updates the session in the map.
func (m *memory) Save(ctx context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

// Get looks up a session by ID.
// Returns a pointer to the stored *game.Session or an error if missing.
func (m *memory) Get(ctx context.Context, id string) (*game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, errors.New("not found")
}
