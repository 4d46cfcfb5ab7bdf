package cart

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for an unknown thread id
var ErrSessionNotFound = errors.New("session not found")

type session struct {
	mu      sync.Mutex
	cart    *Cart
	updated time.Time
	// expired is set under mu when Expire drops the session
	expired bool
}

// Sessions isolates carts by conversation thread id. Turns on the same
// session run one at a time; different sessions never block each other.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// NewSessions creates an empty session store
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*session)}
}

// Create starts a new session with an empty cart and returns its id
func (s *Sessions) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &session{cart: New(), updated: time.Now()}
	s.mu.Unlock()
	return id
}

// Open returns the id unchanged, creating an empty session for it if needed.
// An empty id starts a new session.
func (s *Sessions) Open(id string) string {
	if id == "" {
		return s.Create()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = &session{cart: New(), updated: time.Now()}
	}
	return id
}

// Snapshot returns a copy of the session's cart
func (s *Sessions) Snapshot(id string) (*Cart, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.expired {
		return nil, ErrSessionNotFound
	}
	return sess.cart.Clone(), nil
}

// Update runs fn with exclusive access to the session's cart. The cart is
// pruned after fn returns, whatever fn did.
func (s *Sessions) Update(id string, fn func(*Cart) error) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.expired {
		return ErrSessionNotFound
	}
	err = fn(sess.cart)
	sess.cart.Prune()
	sess.updated = time.Now()
	return err
}

// Delete forgets a session
func (s *Sessions) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Expire drops sessions idle for longer than ttl and returns how many were
// removed. Sessions with a turn in progress are skipped, and the store lock is
// never held while waiting on a session.
func (s *Sessions) Expire(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.RLock()
	candidates := make(map[string]*session, len(s.sessions))
	for id, sess := range s.sessions {
		candidates[id] = sess
	}
	s.mu.RUnlock()

	removed := 0
	for id, sess := range candidates {
		if !sess.mu.TryLock() {
			continue
		}
		if sess.updated.Before(cutoff) {
			s.mu.Lock()
			if s.sessions[id] == sess {
				delete(s.sessions, id)
				sess.expired = true
				removed++
			}
			s.mu.Unlock()
		}
		sess.mu.Unlock()
	}
	return removed
}

func (s *Sessions) get(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}
