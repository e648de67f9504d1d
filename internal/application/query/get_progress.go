// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/studyassist/flashcard-hub/internal/domain/progress"
	"github.com/studyassist/flashcard-hub/internal/domain/shared"
	"github.com/studyassist/flashcard-hub/internal/domain/study"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressDTO is the read model of one progress record.
type ProgressDTO struct {
	TopicID            int64      `json:"topic_id"`
	TopicName          string     `json:"topic_name"`
	FlashcardsReviewed int        `json:"flashcards_reviewed"`
	Accuracy           float64    `json:"accuracy"`
	StreakDays         int        `json:"streak_days"`
	LastStudyDate      *time.Time `json:"last_study_date"`
}

// GetProgressHandler serves progress reads.
type GetProgressHandler struct {
	repo    progress.Repository
	catalog study.Catalog
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(repo progress.Repository, catalog study.Catalog) *GetProgressHandler {
	return &GetProgressHandler{repo: repo, catalog: catalog}
}

// List returns the user's progress on every topic studied so far. Records
// whose topic has since been deleted are skipped.
func (h *GetProgressHandler) List(ctx context.Context, userID int64) ([]ProgressDTO, error) {
	records, err := h.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, shared.Upstream("progress", "List", err)
	}

	out := make([]ProgressDTO, 0, len(records))
	for _, rec := range records {
		topic, err := h.catalog.Topic(ctx, rec.TopicID)
		if shared.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, shared.Upstream("progress", "List", err)
		}
		out = append(out, toDTO(rec, topic))
	}
	return out, nil
}

// ForTopic returns the user's progress on one topic they own. A topic that
// was never studied yields zero counters and no last study date.
func (h *GetProgressHandler) ForTopic(ctx context.Context, userID, topicID int64) (*ProgressDTO, error) {
	topic, err := h.catalog.TopicForOwner(ctx, topicID, userID)
	if err != nil {
		return nil, shared.Upstream("progress", "ForTopic", err)
	}

	rec, err := h.repo.Get(ctx, userID, topicID)
	switch {
	case err == nil:
	case shared.IsNotFound(err):
		rec = progress.NewRecord(userID, topicID)
	default:
		return nil, shared.Upstream("progress", "ForTopic", err)
	}

	dto := toDTO(rec, topic)
	return &dto, nil
}

func toDTO(rec *progress.Record, topic *study.Topic) ProgressDTO {
	return ProgressDTO{
		TopicID:            rec.TopicID,
		TopicName:          topic.Name,
		FlashcardsReviewed: rec.FlashcardsReviewed,
		Accuracy:           rec.Accuracy(),
		StreakDays:         rec.StreakDays,
		LastStudyDate:      rec.LastStudyDate,
	}
}
