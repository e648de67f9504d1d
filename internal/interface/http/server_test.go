package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyassist/flashcard-hub/internal/application/aggregator"
	"github.com/studyassist/flashcard-hub/internal/application/command"
	"github.com/studyassist/flashcard-hub/internal/application/orchestrator"
	"github.com/studyassist/flashcard-hub/internal/application/query"
	"github.com/studyassist/flashcard-hub/internal/domain/study"
	"github.com/studyassist/flashcard-hub/internal/infrastructure/auth"
	"github.com/studyassist/flashcard-hub/internal/infrastructure/persistence/memory"
	"github.com/studyassist/flashcard-hub/internal/interface/http/handlers"
	"github.com/studyassist/flashcard-hub/pkg/logger"
)

const (
	alice int64 = 1
	bob   int64 = 2
)

type apiFixture struct {
	t       *testing.T
	handler http.Handler
	tokens  *auth.JWTVerifier
	health  *handlers.CompositeHealthChecker
	topic   study.Topic
	cards   []study.Flashcard
	other   study.Flashcard
}

func newAPIFixture(t *testing.T, cfg Config) *apiFixture {
	t.Helper()

	catalog := memory.NewCatalog()
	repo := memory.NewProgressRepository()

	f := &apiFixture{t: t}
	f.topic = catalog.AddTopic(alice, "Networking", "")
	for i := 1; i <= 3; i++ {
		f.cards = append(f.cards, catalog.AddFlashcard(f.topic.ID, fmt.Sprintf("Q%d", i), fmt.Sprintf("A%d", i), ""))
	}
	elsewhere := catalog.AddTopic(alice, "Databases", "")
	f.other = catalog.AddFlashcard(elsewhere.ID, "Q", "A", "")

	var err error
	f.tokens, err = auth.NewJWTVerifier(auth.Config{Secret: "test-secret"})
	require.NoError(t, err)
	f.health = handlers.NewCompositeHealthChecker("test")

	agg := aggregator.New(repo, aggregator.DefaultConfig(), logger.Nop())
	srv := NewServer(cfg, Dependencies{
		Study: orchestrator.New(memory.NewSessionStore(), catalog, agg,
			orchestrator.WithShuffle(func([]int64) {}),
			orchestrator.WithLogger(logger.Nop()),
		),
		RecordStudySession: command.NewRecordStudySessionHandler(catalog, agg, logger.Nop()),
		GetProgress:        query.NewGetProgressHandler(repo, catalog),
		Tokens:             f.tokens,
		HealthChecker:      f.health,
		Logger:             logger.Nop(),
	})
	f.handler = srv.Handler()
	return f
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Meta      *ResponseMeta   `json:"meta"`
	RequestID string          `json:"request_id"`
}

func (f *apiFixture) do(method, path string, userID int64, body any) (*httptest.ResponseRecorder, envelope) {
	f.t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(f.t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	if userID != 0 {
		token, err := f.tokens.Sign(userID, time.Hour)
		require.NoError(f.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestAPI_StudySessionFlow(t *testing.T) {
	f := newAPIFixture(t, DefaultConfig())

	rec, env := f.do(http.MethodPost, fmt.Sprintf("/study/topics/%d/start", f.topic.ID), alice, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)
	assert.Equal(t, env.RequestID, rec.Header().Get("X-Request-Id"))

	started := decodeData[orchestrator.SessionView](t, env)
	assert.Equal(t, "Networking", started.TopicName)
	assert.Equal(t, 3, started.TotalFlashcards)
	assert.Equal(t, 1, started.CurrentIndex)
	assert.Equal(t, f.cards[0].ID, started.Flashcard.ID)

	answer := func(cardID int64, correct bool) orchestrator.AnswerResult {
		rec, env := f.do(http.MethodPost, "/study/answer", alice, map[string]any{
			"session_id":   started.SessionID,
			"flashcard_id": cardID,
			"is_correct":   correct,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decodeData[orchestrator.AnswerResult](t, env)
	}

	first := answer(f.cards[0].ID, true)
	assert.Equal(t, "A1", first.CorrectAnswer)
	assert.True(t, first.HasNext)
	assert.Equal(t, orchestrator.ProgressView{Answered: 1, Correct: 1, Accuracy: 100, Remaining: 2}, first.Progress)

	rec, env = f.do(http.MethodGet, "/study/next/"+started.SessionID, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	next := decodeData[orchestrator.SessionView](t, env)
	assert.Equal(t, 2, next.CurrentIndex)
	assert.Equal(t, f.cards[1].ID, next.Flashcard.ID)

	second := answer(f.cards[1].ID, false)
	assert.Equal(t, 50.0, second.Progress.Accuracy)

	rec, env = f.do(http.MethodGet, "/study/summary/"+started.SessionID, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeData[orchestrator.Summary](t, env)
	assert.Equal(t, 2, summary.TotalReviewed)
	assert.Equal(t, 1, summary.CorrectCount)
	assert.Equal(t, 50.0, summary.Accuracy)
	assert.Equal(t, 1, summary.StreakDays)

	rec, env = f.do(http.MethodGet, "/study/summary/"+started.SessionID, alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)

	rec, env = f.do(http.MethodGet, "/progress", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeData[[]query.ProgressDTO](t, env)
	require.Len(t, list, 1)
	assert.Equal(t, f.topic.ID, list[0].TopicID)
	assert.Equal(t, 2, list[0].FlashcardsReviewed)
	assert.Equal(t, 1, env.Meta.TotalCount)

	rec, env = f.do(http.MethodGet, fmt.Sprintf("/progress/topics/%d", f.topic.ID), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	one := decodeData[query.ProgressDTO](t, env)
	assert.Equal(t, 50.0, one.Accuracy)
	assert.NotNil(t, one.LastStudyDate)
}

func TestAPI_StudyErrors(t *testing.T) {
	f := newAPIFixture(t, DefaultConfig())

	_, env := f.do(http.MethodPost, fmt.Sprintf("/study/topics/%d/start", f.topic.ID), alice, nil)
	sessionID := decodeData[orchestrator.SessionView](t, env).SessionID

	tests := []struct {
		name   string
		method string
		path   string
		user   int64
		body   any
		status int
		code   string
	}{
		{"topic of another user", http.MethodPost, fmt.Sprintf("/study/topics/%d/start", f.topic.ID), bob, nil, http.StatusNotFound, "not_found"},
		{"non numeric topic", http.MethodPost, "/study/topics/abc/start", alice, nil, http.StatusBadRequest, "invalid_input"},
		{"unknown session", http.MethodGet, "/study/next/nope", alice, nil, http.StatusNotFound, "not_found"},
		{"session of another user", http.MethodGet, "/study/next/" + sessionID, bob, nil, http.StatusForbidden, "forbidden"},
		{"malformed json", http.MethodPost, "/study/answer", alice, "{", http.StatusBadRequest, "invalid_json"},
		{"unknown field", http.MethodPost, "/study/answer", alice, `{"session_id":"x","flashcard_id":1,"is_correct":true,"extra":1}`, http.StatusBadRequest, "invalid_json"},
		{"missing is_correct", http.MethodPost, "/study/answer", alice, map[string]any{"session_id": sessionID, "flashcard_id": f.cards[0].ID}, http.StatusBadRequest, "invalid_input"},
		{"flashcard outside session", http.MethodPost, "/study/answer", alice, map[string]any{"session_id": sessionID, "flashcard_id": f.other.ID, "is_correct": true}, http.StatusNotFound, "not_found"},
		{"unknown route", http.MethodGet, "/nowhere", alice, nil, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := f.do(tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestAPI_RequiresBearerToken(t *testing.T) {
	f := newAPIFixture(t, DefaultConfig())
	path := fmt.Sprintf("/study/topics/%d/start", f.topic.ID)

	rec, env := f.do(http.MethodPost, path, 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", env.Error.Code)

	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	out := httptest.NewRecorder()
	f.handler.ServeHTTP(out, req)
	assert.Equal(t, http.StatusUnauthorized, out.Code)

	rec, _ = f.do(http.MethodGet, "/live", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_RecordStudySession(t *testing.T) {
	f := newAPIFixture(t, DefaultConfig())

	rec, env := f.do(http.MethodPost, "/progress/study-session", alice, map[string]any{
		"topic_id": f.topic.ID,
		"results": []map[string]any{
			{"flashcard_id": f.cards[0].ID, "is_correct": true},
			{"flashcard_id": f.cards[1].ID, "is_correct": true},
			{"flashcard_id": f.cards[2].ID, "is_correct": false},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decodeData[command.RecordStudySessionResult](t, env)
	assert.Equal(t, 3, out.FlashcardsReviewed)
	assert.Equal(t, 2, out.CorrectAnswers)
	assert.Equal(t, 66.67, out.Accuracy)
	assert.Equal(t, 1, out.StreakDays)

	rec, env = f.do(http.MethodPost, "/progress/study-session", alice, map[string]any{
		"topic_id": f.topic.ID,
		"results":  []map[string]any{{"flashcard_id": f.other.ID, "is_correct": true}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", env.Error.Code)

	rec, _ = f.do(http.MethodPost, "/progress/study-session", bob, map[string]any{
		"topic_id": f.topic.ID,
		"results":  []map[string]any{},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_TopicProgressNeverStudied(t *testing.T) {
	f := newAPIFixture(t, DefaultConfig())

	rec, env := f.do(http.MethodGet, fmt.Sprintf("/progress/topics/%d", f.topic.ID), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeData[query.ProgressDTO](t, env)
	assert.Equal(t, "Networking", dto.TopicName)
	assert.Zero(t, dto.FlashcardsReviewed)
	assert.Nil(t, dto.LastStudyDate)

	rec, _ = f.do(http.MethodGet, fmt.Sprintf("/progress/topics/%d", f.topic.ID), bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t, DefaultConfig())
	f.health.AddCheck("postgres", func(context.Context) error { return nil })

	rec, env := f.do(http.MethodGet, "/health", 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeData[handlers.HealthStatus](t, env)
	assert.True(t, status.Healthy)
	assert.True(t, status.Checks["postgres"].Healthy)

	f.health.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	rec, env = f.do(http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	status = decodeData[handlers.HealthStatus](t, env)
	assert.False(t, status.Healthy)
	assert.Equal(t, "Some checks failed: redis", status.Message)

	rec, _ = f.do(http.MethodGet, "/ready", 0, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPI_CORSPreflight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://app.example"}
	f := newAPIFixture(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/study/answer", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Less(t, rec.Code, 300)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{study.ErrSessionNotFound, http.StatusNotFound},
		{study.ErrSessionExhausted, http.StatusBadRequest},
		{study.ErrTooManySessions, http.StatusServiceUnavailable},
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
