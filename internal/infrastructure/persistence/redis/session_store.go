package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/studyassist/flashcard-hub/internal/domain/shared"
	"github.com/studyassist/flashcard-hub/internal/domain/study"
	"github.com/studyassist/flashcard-hub/pkg/circuitbreaker"
)

// maxWatchRetries bounds how often Update restarts after another writer
// touched the same session between WATCH and EXEC.
const maxWatchRetries = 16

var errSessionContended = shared.NewDomainError("study", "UpdateSession", shared.ErrConflict,
	"session is being modified concurrently")

// SessionStore is a study.SessionStore keeping each session as JSON under
// session:<id>. Every write refreshes the idle TTL.
type SessionStore struct {
	client  *Client
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	now     func() time.Time
	newID   func() string
}

// StoreOption configures a SessionStore.
type StoreOption func(*SessionStore)

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) StoreOption {
	return func(s *SessionStore) { s.breaker = cb }
}

// NewSessionStore creates a store. A non-positive ttl falls back to
// TTLSessionData.
func NewSessionStore(client *Client, ttl time.Duration, opts ...StoreOption) *SessionStore {
	if ttl <= 0 {
		ttl = TTLSessionData
	}
	s := &SessionStore{
		client:  client,
		ttl:     ttl,
		breaker: NewBreaker(nil),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewBreaker returns the circuit breaker used for session traffic. Only
// Redis failures trip it; domain outcomes such as a missing session do not.
func NewBreaker(onStateChange func(name string, from, to circuitbreaker.State)) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New("redis-sessions",
		circuitbreaker.WithFailureThreshold(5),
		circuitbreaker.WithSuccessThreshold(1),
		circuitbreaker.WithTimeout(10*time.Second),
		circuitbreaker.WithIsFailure(IsBackendFailure),
		circuitbreaker.WithOnStateChange(onStateChange),
	)
}

// IsBackendFailure reports whether err came from Redis itself rather than
// from session semantics or the caller giving up.
func IsBackendFailure(err error) bool {
	if err == nil || shared.Kind(err) != nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// guard runs fn through the breaker. An open circuit surfaces as an
// upstream failure.
func (s *SessionStore) guard(ctx context.Context, op string, fn func(context.Context) error) error {
	err := s.breaker.Execute(ctx, fn)
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return shared.WrapError("study", op, shared.ErrUpstreamUnavailable, "session store unavailable", err)
	}
	return err
}

// Create implements study.SessionStore.
func (s *SessionStore) Create(ctx context.Context, userID, topicID int64, flashcardIDs []int64) (*study.Session, error) {
	var created *study.Session
	err := s.guard(ctx, "CreateSession", func(ctx context.Context) error {
		var err error
		created, err = s.create(ctx, userID, topicID, flashcardIDs)
		return err
	})
	return created, err
}

func (s *SessionStore) create(ctx context.Context, userID, topicID int64, flashcardIDs []int64) (*study.Session, error) {
	for attempt := 0; attempt < 3; attempt++ {
		session := study.NewSession(s.newID(), userID, topicID, flashcardIDs, s.now())
		data, err := json.Marshal(session)
		if err != nil {
			return nil, fmt.Errorf("redis: encode session: %w", err)
		}

		ok, err := s.client.rdb.SetNX(ctx, SessionKey(session.ID), data, s.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: create session: %w", err)
		}
		if ok {
			return session, nil
		}
	}
	return nil, fmt.Errorf("redis: create session: identifier collisions")
}

// Get implements study.SessionStore.
func (s *SessionStore) Get(ctx context.Context, id string) (*study.Session, error) {
	var session *study.Session
	err := s.guard(ctx, "FindSession", func(ctx context.Context) error {
		var err error
		session, err = s.load(ctx, s.client.rdb, id)
		return err
	})
	return session, err
}

// Update implements study.SessionStore with WATCH/MULTI. If the key changes
// between read and write the whole read-modify-write is retried.
func (s *SessionStore) Update(ctx context.Context, id string, fn func(*study.Session) error) (*study.Session, error) {
	var updated *study.Session
	err := s.guard(ctx, "UpdateSession", func(ctx context.Context) error {
		var err error
		updated, err = s.update(ctx, id, fn)
		return err
	})
	return updated, err
}

func (s *SessionStore) update(ctx context.Context, id string, fn func(*study.Session) error) (*study.Session, error) {
	key := SessionKey(id)

	var updated *study.Session
	txf := func(tx *redis.Tx) error {
		session, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(session); err != nil {
			return err
		}

		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("redis: encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = session
		return nil
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, errSessionContended
}

// Remove implements study.SessionStore.
func (s *SessionStore) Remove(ctx context.Context, id string) error {
	return s.guard(ctx, "RemoveSession", func(ctx context.Context) error {
		if err := s.client.rdb.Del(ctx, SessionKey(id)).Err(); err != nil {
			return fmt.Errorf("redis: remove session: %w", err)
		}
		return nil
	})
}

func (s *SessionStore) load(ctx context.Context, r getter, id string) (*study.Session, error) {
	data, err := r.Get(ctx, SessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, study.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis: get session: %w", err)
	}

	var session study.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("redis: decode session: %w", err)
	}
	if session.Results == nil {
		session.Results = []study.Result{}
	}
	return &session, nil
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

var _ study.SessionStore = (*SessionStore)(nil)
