package world

import (
	"github.com/tradegate/server/internal/net"
)

// State is the connection registry: userId → session for every
// authenticated connection. Accessed only under the coordinator lock —
// no internal locking needed.
type State struct {
	users map[string]*net.Session
}

func NewState() *State {
	return &State{
		users: make(map[string]*net.Session),
	}
}

// Add registers an authenticated session under its user id.
func (s *State) Add(userID string, sess *net.Session) {
	s.users[userID] = sess
}

// Remove drops the registry entry for a user. The entry is only removed if
// it still points at the given session, so a stale disconnect cannot evict
// a fresh login.
func (s *State) Remove(userID string, sess *net.Session) {
	if cur, ok := s.users[userID]; ok && cur == sess {
		delete(s.users, userID)
	}
}

// Get returns the session for a connected user, or nil.
func (s *State) Get(userID string) *net.Session {
	return s.users[userID]
}

// Count returns the number of authenticated connections.
func (s *State) Count() int {
	return len(s.users)
}
