package session

import (
	"sync"

	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/models"
)

// Fixed storage keys. Earlier releases stored the session client-side
// under these names; keeping them makes migrations a non-event.
const (
	tokenKey = "lc_token"
	userKey  = "lc_user"
)

// Session pairs the backend bearer token with the cached LINE profile.
// A session never exists with only one of the two.
type Session struct {
	Token string
	User  models.LineUser
}

// Store is the session repository read by every authenticated request.
// Read returns (nil, nil) when no session is present. Save persists token
// and user atomically. The store enforces no expiry; token validity is the
// backend's call.
type Store interface {
	Read() (*Session, error)
	Save(token string, user models.LineUser) error
	Clear() error
}

// MemoryStore keeps the session in process memory. Used in tests and as a
// drop-in when persistence across restarts is not wanted.
type MemoryStore struct {
	mu      sync.RWMutex
	session *Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Read() (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, nil
	}
	copied := *s.session
	return &copied, nil
}

func (s *MemoryStore) Save(token string, user models.LineUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &Session{Token: token, User: user}
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
