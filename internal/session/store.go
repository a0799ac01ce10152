// Package session keeps one compacted transcript per analysis session.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pocketomega/repolens/internal/compact"
)

// minCleanupInterval is the smallest allowed TTL to prevent degenerate ticker intervals.
const minCleanupInterval = time.Millisecond

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session: not found")

// Factory builds the Compactor for a new session.
type Factory func(id string) (*compact.Compactor, error)

// Session holds the transcript of one repository analysis.
type Session struct {
	ID        string
	Compactor *compact.Compactor
	Created   time.Time
	LastUsed  time.Time
}

// NewID returns a random session ID.
func NewID() string {
	return uuid.NewString()
}

// Store is a thread-safe in-memory session registry with TTL eviction.
// Single-process only; sessions do not survive a restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration // inactivity TTL, e.g. 30 minutes
	factory  Factory
	logger   *zap.Logger
	done     chan struct{} // closed by Close() to stop the cleanup goroutine
	now      func() time.Time
}

// NewStore creates a new Store with the given TTL.
// A background goroutine is started to periodically evict expired sessions.
// Call Close() when the store is no longer needed to stop the goroutine.
func NewStore(ttl time.Duration, factory Factory, logger *zap.Logger) *Store {
	if ttl < minCleanupInterval {
		ttl = minCleanupInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		factory:  factory,
		logger:   logger.With(zap.String("component", "session")),
		done:     make(chan struct{}),
		now:      time.Now,
	}
	go s.cleanupLoop()
	return s
}

// Create starts a new session with a fresh transcript.
func (s *Store) Create() (*Session, error) {
	id := NewID()
	c, err := s.factory(id)
	if err != nil {
		return nil, fmt.Errorf("session: create %s: %w", id, err)
	}
	now := s.now()
	sess := &Session{ID: id, Compactor: c, Created: now, LastUsed: now}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	s.logger.Debug("session created", zap.String("session", id))
	return sess, nil
}

// Get returns the session and marks it as used.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.LastUsed = s.now()
	return sess, nil
}

// Stats returns the context statistics of a session.
func (s *Store) Stats(id string) (compact.Stats, error) {
	sess, err := s.Get(id)
	if err != nil {
		return compact.Stats{}, err
	}
	return sess.Compactor.Stats(), nil
}

// Delete explicitly removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Count returns the number of active sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		// already closed
	default:
		close(s.done)
	}
}

// cleanupLoop periodically removes sessions that have exceeded the TTL.
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *Store) evictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	evicted := 0
	for id, sess := range s.sessions {
		if sess.LastUsed.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debug("expired sessions evicted", zap.Int("count", evicted))
	}
	return evicted
}
