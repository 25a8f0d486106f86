// internal/store/memory.go
//
// In-memory registry of live game sessions.
// Sessions hold running timers, so they only ever live in memory; the registry
// closes a session (stopping its timers) when it is removed or pruned.
//
// Characteristics:
//   - Entries keyed by session ID (UUID).
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/pairs/apps/go-server/internal/game"
)

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("game not found")

// Entry is a live session plus who it belongs to.
type Entry struct {
	Session   *game.Session
	PlayerID  string // user id or anonymous cookie id
	Username  string // empty for guests
	DailyDate string // non-empty for daily boards
	CreatedAt time.Time
}

// ID is shorthand for e.Session.ID().
func (e *Entry) ID() string { return e.Session.ID() }

// Store defines the registry interface for live sessions.
type Store interface {
	// Save adds or replaces an entry.
	Save(ctx context.Context, e *Entry) error

	// Get retrieves an entry by session ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Entry, error)

	// Delete removes and closes an entry. Unknown IDs are ignored.
	Delete(ctx context.Context, id string) error

	// Prune removes and closes entries created before cutoff; returns how many.
	Prune(ctx context.Context, cutoff time.Time) int
}

// NewID returns a fresh session identifier.
func NewID() string { return uuid.NewString() }

type memory struct {
	mu      sync.RWMutex      // guards entries
	entries map[string]*Entry // keyed by session ID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{entries: make(map[string]*Entry)}
}

func (m *memory) Save(_ context.Context, e *Entry) error {
	if e == nil || e.Session == nil {
		return errors.New("store: nil session")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.mu.Lock()
	prev, ok := m.entries[e.ID()]
	m.entries[e.ID()] = e
	m.mu.Unlock()
	if ok && prev.Session != e.Session {
		prev.Session.Close()
	}
	return nil
}

func (m *memory) Get(_ context.Context, id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok {
		return e, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	delete(m.entries, id)
	m.mu.Unlock()
	if ok {
		e.Session.Close()
	}
	return nil
}

func (m *memory) Prune(_ context.Context, cutoff time.Time) int {
	var stale []*Entry
	m.mu.Lock()
	for id, e := range m.entries {
		if e.CreatedAt.Before(cutoff) {
			stale = append(stale, e)
			delete(m.entries, id)
		}
	}
	m.mu.Unlock()
	for _, e := range stale {
		e.Session.Close()
	}
	return len(stale)
}
