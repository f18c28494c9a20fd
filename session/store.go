package session

import (
	"errors"
	"sync"
)

// ErrInconsistentSession is returned by [Store.Write] when the patches would
// leave an identity without a credential or a credential without an identity.
var ErrInconsistentSession = errors.New("session: user and access token must be set together")

// Store holds the current [Session] and publishes every change to subscribers.
//
// Reads are synchronous and never block on I/O, so they are safe to call from
// inside an http.RoundTripper. A write and its publication happen under the
// same lock, so subscribers observe writes in the order they were applied.
type Store struct {
	mu      sync.RWMutex
	current Session
	version uint64

	subs   map[uint64]chan Session
	nextID uint64
}

// NewStore returns a store whose session is unauthenticated and bootstrapping.
func NewStore() *Store {
	return &Store{
		current: Session{Roles: []string{}, Bootstrapping: true},
		subs:    make(map[uint64]chan Session),
	}
}

// Read returns a copy of the current session.
func (s *Store) Read() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// AccessToken returns the current credential, or "" when signed out.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.AccessToken
}

// Version returns the number of successful writes applied so far.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Write applies patches in order as one atomic update and publishes the result.
// When the result would break the identity/credential pairing nothing is
// stored and ErrInconsistentSession is returned with the unchanged session.
func (s *Store) Write(patches ...Patch) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	for _, p := range patches {
		if p != nil {
			p(&next)
		}
	}
	if (next.User == nil) != (next.AccessToken == "") {
		return s.current.Clone(), ErrInconsistentSession
	}
	if next.Roles == nil {
		next.Roles = []string{}
	}

	s.current = next
	s.version++
	for _, ch := range s.subs {
		publish(ch, next.Clone())
	}
	return next.Clone(), nil
}

// Subscribe returns a channel that receives every session published after the
// call, starting with the current one. When a subscriber falls behind, the
// oldest undelivered value is discarded so the newest always arrives.
// The returned function unsubscribes and closes the channel.
func (s *Store) Subscribe(buffer int) (<-chan Session, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Session, buffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.current.Clone()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
}

// publish never blocks; it is only called with s.mu held, so it is the sole sender.
func publish(ch chan Session, v Session) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
