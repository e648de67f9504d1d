// Package memory implements in-process stores for study sessions, progress
// records and the flashcard catalog. Sessions live here in single-instance
// deployments; progress and catalog stores back tests and local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studyassist/flashcard-hub/internal/domain/study"
	"github.com/studyassist/flashcard-hub/pkg/logger"
)

// sessionEntry guards one session. Holding the entry lock serializes every
// mutation of that session without blocking other sessions.
type sessionEntry struct {
	mu      sync.Mutex
	session *study.Session
	removed bool
}

// SessionStore is a concurrency-safe in-memory study.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	maxSessions int
	idleTTL     time.Duration
	now         func() time.Time
	newID       func() string
	log         *logger.Logger
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithMaxSessions bounds the number of live sessions. 0 means unbounded.
func WithMaxSessions(n int) SessionStoreOption {
	return func(s *SessionStore) { s.maxSessions = n }
}

// WithIdleTTL sets how long a session may sit untouched before the janitor
// evicts it. 0 disables eviction.
func WithIdleTTL(d time.Duration) SessionStoreOption {
	return func(s *SessionStore) { s.idleTTL = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) { s.now = now }
}

// WithIDGenerator overrides session identifier generation.
func WithIDGenerator(fn func() string) SessionStoreOption {
	return func(s *SessionStore) { s.newID = fn }
}

// WithLogger sets the logger used by the janitor.
func WithLogger(log *logger.Logger) SessionStoreOption {
	return func(s *SessionStore) { s.log = log }
}

// NewSessionStore creates an empty store.
func NewSessionStore(opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements study.SessionStore.
func (s *SessionStore) Create(ctx context.Context, userID, topicID int64, flashcardIDs []int64) (*study.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		return nil, study.ErrTooManySessions
	}

	id := s.newID()
	for _, taken := s.sessions[id]; taken; _, taken = s.sessions[id] {
		id = s.newID()
	}

	session := study.NewSession(id, userID, topicID, flashcardIDs, s.now())
	s.sessions[id] = &sessionEntry{session: session}
	return session.Clone(), nil
}

// Get implements study.SessionStore.
func (s *SessionStore) Get(ctx context.Context, id string) (*study.Session, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed {
		return nil, study.ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

// Update implements study.SessionStore. fn works on a copy; the copy
// replaces the stored session only when fn succeeds.
func (s *SessionStore) Update(ctx context.Context, id string, fn func(*study.Session) error) (*study.Session, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed {
		return nil, study.ErrSessionNotFound
	}

	working := entry.session.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	entry.session = working
	return working.Clone(), nil
}

// Remove implements study.SessionStore.
func (s *SessionStore) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	entry, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		entry.mu.Lock()
		entry.removed = true
		entry.mu.Unlock()
	}
	return nil
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) entry(ctx context.Context, id string) (*sessionEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, study.ErrSessionNotFound
	}
	return entry, nil
}

// EvictExpired removes sessions idle for longer than the configured TTL and
// returns how many were removed. Sessions being summarized are kept.
func (s *SessionStore) EvictExpired() int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.RLock()
	candidates := make(map[string]*sessionEntry, len(s.sessions))
	for id, entry := range s.sessions {
		candidates[id] = entry
	}
	s.mu.RUnlock()

	evicted := 0
	for id, entry := range candidates {
		entry.mu.Lock()
		expired := !entry.removed && !entry.session.Closing && entry.session.LastActivityAt.Before(cutoff)
		if expired {
			entry.removed = true
		}
		entry.mu.Unlock()

		if !expired {
			continue
		}
		s.mu.Lock()
		if s.sessions[id] == entry {
			delete(s.sessions, id)
		}
		s.mu.Unlock()
		evicted++
	}
	return evicted
}

// StartJanitor runs EvictExpired every interval until ctx is done.
func (s *SessionStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if s.idleTTL <= 0 || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.EvictExpired(); n > 0 {
					s.log.Info("evicted idle study sessions",
						logger.Component("session_janitor"),
						logger.Int("evicted", n),
						logger.Int("remaining", s.Len()),
					)
				}
			}
		}
	}()
}

var _ study.SessionStore = (*SessionStore)(nil)
