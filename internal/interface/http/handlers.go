package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/studyassist/flashcard-hub/internal/application/command"
	"github.com/studyassist/flashcard-hub/internal/domain/study"
	"github.com/studyassist/flashcard-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports every registered dependency check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]string{
			"status": "healthy",
			"uptime": s.Uptime().String(),
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady is the readiness probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		if status := s.deps.HealthChecker.Check(r.Context()); !status.Healthy {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive is the liveness probe.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDY SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type submitAnswerRequest struct {
	SessionID   string `json:"session_id"`
	FlashcardID int64  `json:"flashcard_id"`
	IsCorrect   *bool  `json:"is_correct"`
}

// handleStartSession handles POST /study/topics/{topic_id}/start
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	topicID, ok := pathInt64(w, r, "topic_id")
	if !ok {
		return
	}

	view, err := s.deps.Study.Start(r.Context(), userIDFrom(r.Context()), topicID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, view)
}

// handleSubmitAnswer handles POST /study/answer
func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.SessionID == "" || req.FlashcardID <= 0 || req.IsCorrect == nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_input",
			"session_id, flashcard_id and is_correct are required")
		return
	}

	result, err := s.deps.Study.SubmitAnswer(r.Context(), userIDFrom(r.Context()),
		req.SessionID, req.FlashcardID, *req.IsCorrect)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result)
}

// handleNextFlashcard handles GET /study/next/{session_id}
func (s *Server) handleNextFlashcard(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Study.PeekNext(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "session_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// handleSessionSummary handles GET /study/summary/{session_id}
func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Study.Summarize(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "session_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type recordStudySessionRequest struct {
	TopicID int64 `json:"topic_id"`
	Results []struct {
		FlashcardID int64 `json:"flashcard_id"`
		IsCorrect   bool  `json:"is_correct"`
	} `json:"results"`
}

// handleRecordStudySession handles POST /progress/study-session
func (s *Server) handleRecordStudySession(w http.ResponseWriter, r *http.Request) {
	var req recordStudySessionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	results := make([]study.Result, 0, len(req.Results))
	for _, res := range req.Results {
		results = append(results, study.Result{FlashcardID: res.FlashcardID, Correct: res.IsCorrect})
	}

	out, err := s.deps.RecordStudySession.Handle(r.Context(), command.RecordStudySessionCommand{
		UserID:  userIDFrom(r.Context()),
		TopicID: req.TopicID,
		Results: results,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, out)
}

// handleListProgress handles GET /progress
func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.GetProgress.List(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, list, &ResponseMeta{TotalCount: len(list)})
}

// handleTopicProgress handles GET /progress/topics/{topic_id}
func (s *Server) handleTopicProgress(w http.ResponseWriter, r *http.Request) {
	topicID, ok := pathInt64(w, r, "topic_id")
	if !ok {
		return
	}

	dto, err := s.deps.GetProgress.ForTopic(r.Context(), userIDFrom(r.Context()), topicID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeJSON reads a single JSON object into dst and writes a 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
			return false
		}
		logger.FromContext(r.Context()).Debug("malformed request body", logger.Err(err))
		writeJSONError(w, r, http.StatusBadRequest, "invalid_json", "Request body must be a valid JSON object")
		return false
	}
	return true
}

// pathInt64 parses a positive integer URL parameter and writes a 400 on failure.
func pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_input", name+" must be a positive integer")
		return 0, false
	}
	return v, true
}
