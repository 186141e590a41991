package grid

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"chaszcze-site/internal/models"
)

type storeEntry struct {
	editor *Editor
	expiry time.Time
}

// Store keeps one editor per dashboard session so unsaved edits survive
// between requests of the same operator. Editors of expired sessions are
// dropped whenever a new session's editor is created.
type Store struct {
	mu       sync.RWMutex
	editors  map[string]storeEntry
	api      ResultsAPI
	announce Announcer
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewStore(api ResultsAPI, announce Announcer, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		editors:  make(map[string]storeEntry),
		api:      api,
		announce: announce,
		log:      log,
		now:      time.Now,
	}
}

// Get returns the editor for the session, creating it on first use.
func (s *Store) Get(sess models.Session) *Editor {
	s.mu.RLock()
	entry, ok := s.editors[sess.ID]
	s.mu.RUnlock()
	if ok && entry.expiry.Equal(sess.Expiry) {
		return entry.editor
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.editors[sess.ID]; ok {
		entry.expiry = sess.Expiry
		s.editors[sess.ID] = entry
		return entry.editor
	}
	s.sweepLocked()
	ed := NewEditor(s.api, s.announce, s.log.WithField("session", sess.ID))
	s.editors[sess.ID] = storeEntry{editor: ed, expiry: sess.Expiry}
	return ed
}

// sweepLocked removes editors whose session has expired. A zero expiry never
// expires.
func (s *Store) sweepLocked() {
	now := s.now()
	removed := 0
	for id, entry := range s.editors {
		if !entry.expiry.IsZero() && entry.expiry.Before(now) {
			delete(s.editors, id)
			removed++
		}
	}
	if removed > 0 {
		s.log.WithFields(logrus.Fields{"removed": removed, "editors": len(s.editors)}).
			Debug("expired results editors dropped")
	}
}

// Drop forgets the session's editor, discarding unsaved edits.
func (s *Store) Drop(sessionID string) {
	s.mu.Lock()
	delete(s.editors, sessionID)
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{"session": sessionID, "editors": s.Len()}).Debug("results editor dropped")
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.editors)
}
