package auth

import (
	"sync"
	"time"
)

// tokenStore holds provider access tokens in memory, keyed by session id, so
// the session cookie stays small. Tokens are lost on restart and their
// sessions have to log in again.
type tokenStore struct {
	mu   sync.Mutex
	byID map[string]heldToken
	now  func() time.Time
}

type heldToken struct {
	value  string
	expiry time.Time
}

func newTokenStore(now func() time.Time) *tokenStore {
	return &tokenStore{byID: map[string]heldToken{}, now: now}
}

// put stores the token and drops every expired one.
func (s *tokenStore) put(sessionID, token string, expiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, t := range s.byID {
		if t.expiry.Before(now) {
			delete(s.byID, id)
		}
	}
	s.byID[sessionID] = heldToken{value: token, expiry: expiry}
}

func (s *tokenStore) get(sessionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[sessionID]
	if !ok || t.expiry.Before(s.now()) {
		return "", false
	}
	return t.value, true
}

func (s *tokenStore) drop(sessionID string) {
	s.mu.Lock()
	delete(s.byID, sessionID)
	s.mu.Unlock()
}
