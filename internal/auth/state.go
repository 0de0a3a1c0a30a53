// Package auth holds the process-wide authentication and tier state.
//
// The State cell is created by the application root and passed by reference
// to the pricing resolver (which writes the resolved tier key on success)
// and to anything that needs to know who, if anyone, is signed in.
package auth

import (
	"log/slog"
	"sync"

	"github.com/closetiq/closetiq/internal/models"
)

// User describes the signed-in account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// State is the shared mutable authentication/tier cell. Only the pricing
// resolver's success paths write the tier key.
type State struct {
	mu   sync.RWMutex
	user *User
	tier models.TierKey
}

// NewState creates an empty, signed-out state.
func NewState() *State {
	return &State{}
}

// SetUser records the signed-in user. A nil user signs out and clears the
// resolved tier.
func (s *State) SetUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
	if u == nil {
		s.tier = ""
		slog.Debug("auth.State.SetUser: signed out")
		return
	}
	slog.Debug("auth.State.SetUser: signed in", "userID", u.ID)
}

// CurrentUser returns a copy of the signed-in user, if any.
func (s *State) CurrentUser() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// Authenticated reports whether a user is signed in.
func (s *State) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// SetTierKey publishes the resolved tier key into the shared cell.
func (s *State) SetTierKey(key models.TierKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tier = key
	slog.Debug("auth.State.SetTierKey", "tier", key)
}

// TierKey returns the resolved tier key. The second return value is false
// when no tier has been published yet.
func (s *State) TierKey() (models.TierKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tier, s.tier != ""
}
