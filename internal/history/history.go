// Package history keeps a bounded per-user conversation transcript.
package history

import (
	"sync"

	"github.com/lumebot/lume/internal/chat"
)

// MaxTurns caps the stored turns per user; oldest turns are dropped first.
const MaxTurns = 20

// Store holds ordered per-user dialogue turns. The system directive is
// configuration and never enters the store. Nothing is persisted across
// restarts.
type Store struct {
	mu    sync.RWMutex
	users map[string]*userHistory
}

type userHistory struct {
	mu    sync.Mutex
	turns []chat.Message
}

func NewStore() *Store {
	return &Store{users: make(map[string]*userHistory)}
}

func (s *Store) user(id string) *userHistory {
	s.mu.RLock()
	h, ok := s.users[id]
	s.mu.RUnlock()
	if ok {
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.users[id]; ok {
		return h
	}
	h = &userHistory{}
	s.users[id] = h
	return h
}

// Append records a turn. The cap is enforced synchronously on every write so
// memory stays bounded regardless of call volume.
func (s *Store) Append(userID string, msg chat.Message) {
	h := s.user(userID)
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, msg)
	if len(h.turns) > MaxTurns {
		excess := len(h.turns) - MaxTurns
		h.turns = append(h.turns[:0], h.turns[excess:]...)
	}
}

// Snapshot returns the user's turns in insertion order. The returned slice is
// a copy and safe to hold across later appends.
func (s *Store) Snapshot(userID string) []chat.Message {
	h := s.user(userID)
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]chat.Message, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len reports the user's stored turn count.
func (s *Store) Len(userID string) int {
	h := s.user(userID)
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Clear drops the user's history and reports whether anything was removed.
// Clearing an empty or nonexistent history succeeds silently.
func (s *Store) Clear(userID string) bool {
	h := s.user(userID)
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := len(h.turns) > 0
	h.turns = nil
	return removed
}
