package redis

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyassist/flashcard-hub/internal/domain/shared"
	"github.com/studyassist/flashcard-hub/internal/domain/study"
	"github.com/studyassist/flashcard-hub/pkg/circuitbreaker"
)

// Requires a throwaway Redis, e.g. TEST_REDIS_ADDR=localhost:6379.
func newStore(t *testing.T) *SessionStore {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() {
		_ = rdb.FlushDB(context.Background()).Err()
		_ = rdb.Close()
	})

	return NewSessionStore(NewClientFrom(rdb), time.Minute)
}

func TestSessionStore_Lifecycle(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	s, err := store.Create(ctx, 1, 2, []int64{5, 6})
	require.NoError(t, err)

	ttl, err := store.client.Redis().TTL(ctx, SessionKey(s.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, got.FlashcardIDs)
	assert.Empty(t, got.Results)

	updated, err := store.Update(ctx, s.ID, func(sess *study.Session) error {
		return sess.RecordAnswer(5, true, time.Now())
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Cursor)

	_, err = store.Update(ctx, s.ID, func(sess *study.Session) error {
		sess.Cursor = 2
		return study.ErrSessionClosing
	})
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	got, err = store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Cursor)

	require.NoError(t, store.Remove(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, study.ErrSessionNotFound)
	_, err = store.Update(ctx, s.ID, func(*study.Session) error { return nil })
	assert.ErrorIs(t, err, study.ErrSessionNotFound)
}

func TestSessionStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	ids := make([]int64, 10)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	s, err := store.Create(ctx, 1, 2, ids)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, s.ID, func(sess *study.Session) error {
				id, _, err := sess.Current()
				if err != nil {
					return err
				}
				return sess.RecordAnswer(id, true, time.Now())
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Cursor)
	assert.Len(t, got.Results, 10)
}

func TestSessionStore_BreakerOpensOnUnreachableRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	cb := circuitbreaker.New("test",
		circuitbreaker.WithFailureThreshold(2),
		circuitbreaker.WithTimeout(time.Hour),
		circuitbreaker.WithIsFailure(IsBackendFailure),
	)
	store := NewSessionStore(NewClientFrom(rdb), time.Minute, WithBreaker(cb))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.Get(ctx, "abc")
		require.Error(t, err)
		assert.NotErrorIs(t, err, shared.ErrUpstreamUnavailable)
	}
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())

	_, err := store.Get(ctx, "abc")
	assert.ErrorIs(t, err, shared.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}

func TestIsBackendFailure(t *testing.T) {
	assert.False(t, IsBackendFailure(nil))
	assert.False(t, IsBackendFailure(study.ErrSessionNotFound))
	assert.False(t, IsBackendFailure(errSessionContended))
	assert.False(t, IsBackendFailure(context.Canceled))
	assert.True(t, IsBackendFailure(errors.New("dial tcp: connection refused")))
}
