// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"github.com/studyassist/flashcard-hub/internal/domain/progress"
	"github.com/studyassist/flashcard-hub/internal/domain/shared"
	"github.com/studyassist/flashcard-hub/internal/domain/study"
	"github.com/studyassist/flashcard-hub/pkg/logger"
	"github.com/studyassist/flashcard-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD STUDY SESSION COMMAND
// Records a whole study session in one call, for clients that run the
// session locally and only report the results.
// ══════════════════════════════════════════════════════════════════════════════

// RecordStudySessionCommand contains the results of a client-side session.
type RecordStudySessionCommand struct {
	UserID  int64
	TopicID int64
	Results []study.Result

	// Timestamp defaults to now when zero.
	Timestamp time.Time
}

// Validate validates the command.
func (c RecordStudySessionCommand) Validate() error {
	if c.UserID <= 0 {
		return shared.NewDomainError("progress", "RecordStudySession", shared.ErrInvalidInput, "user_id is required")
	}
	if c.TopicID <= 0 {
		return shared.NewDomainError("progress", "RecordStudySession", shared.ErrInvalidInput, "topic_id is required")
	}
	return nil
}

// RecordStudySessionResult reports the session's own counts alongside the
// cumulative accuracy and streak after the merge.
type RecordStudySessionResult struct {
	TopicID            int64   `json:"topic_id"`
	FlashcardsReviewed int     `json:"flashcards_reviewed"`
	CorrectAnswers     int     `json:"correct_answers"`
	Accuracy           float64 `json:"accuracy"`
	StreakDays         int     `json:"streak_days"`
}

// ErrForeignFlashcard is returned when a result references a flashcard
// outside the topic.
var ErrForeignFlashcard = shared.NewDomainError("progress", "RecordStudySession", shared.ErrInvalidInput,
	"some flashcards do not belong to this topic")

// ProgressMerger commits session results to durable progress.
type ProgressMerger interface {
	Merge(ctx context.Context, userID, topicID int64, results []study.Result, now time.Time) (*progress.Record, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordStudySessionHandler handles the RecordStudySessionCommand.
type RecordStudySessionHandler struct {
	catalog study.Catalog
	merger  ProgressMerger
	log     *logger.Logger
}

// NewRecordStudySessionHandler creates a new RecordStudySessionHandler.
func NewRecordStudySessionHandler(catalog study.Catalog, merger ProgressMerger, log *logger.Logger) *RecordStudySessionHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RecordStudySessionHandler{
		catalog: catalog,
		merger:  merger,
		log:     log.With(logger.Component("record_study_session")),
	}
}

// Handle executes the command.
func (h *RecordStudySessionHandler) Handle(ctx context.Context, cmd RecordStudySessionCommand) (*RecordStudySessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = timeutil.Now()
	}

	topic, err := h.catalog.TopicForOwner(ctx, cmd.TopicID, cmd.UserID)
	if err != nil {
		return nil, shared.Upstream("progress", "RecordStudySession", err)
	}

	cards, err := h.catalog.Flashcards(ctx, topic.ID)
	if err != nil {
		return nil, shared.Upstream("progress", "RecordStudySession", err)
	}
	inTopic := make(map[int64]struct{}, len(cards))
	for _, c := range cards {
		inTopic[c.ID] = struct{}{}
	}

	correct := 0
	for _, r := range cmd.Results {
		if _, ok := inTopic[r.FlashcardID]; !ok {
			return nil, ErrForeignFlashcard
		}
		if r.Correct {
			correct++
		}
	}

	rec, err := h.merger.Merge(ctx, cmd.UserID, topic.ID, cmd.Results, timestamp)
	if err != nil {
		return nil, err
	}

	h.log.Info("study session recorded",
		logger.UserID(cmd.UserID),
		logger.TopicID(topic.ID),
		logger.Int("answers", len(cmd.Results)),
	)

	return &RecordStudySessionResult{
		TopicID:            topic.ID,
		FlashcardsReviewed: len(cmd.Results),
		CorrectAnswers:     correct,
		Accuracy:           rec.Accuracy(),
		StreakDays:         rec.StreakDays,
	}, nil
}
