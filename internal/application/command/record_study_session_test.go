package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyassist/flashcard-hub/internal/application/aggregator"
	"github.com/studyassist/flashcard-hub/internal/domain/shared"
	"github.com/studyassist/flashcard-hub/internal/domain/study"
	"github.com/studyassist/flashcard-hub/internal/infrastructure/persistence/memory"
)

func TestRecordStudySession(t *testing.T) {
	ctx := context.Background()
	catalog := memory.NewCatalog()
	repo := memory.NewProgressRepository()
	h := NewRecordStudySessionHandler(catalog, aggregator.New(repo, aggregator.DefaultConfig(), nil), nil)

	topic := catalog.AddTopic(1, "Go", "")
	a := catalog.AddFlashcard(topic.ID, "q1", "a1", "")
	b := catalog.AddFlashcard(topic.ID, "q2", "a2", "")
	other := catalog.AddTopic(1, "Other", "")
	foreign := catalog.AddFlashcard(other.ID, "q3", "a3", "")

	day := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)

	res, err := h.Handle(ctx, RecordStudySessionCommand{
		UserID:    1,
		TopicID:   topic.ID,
		Results:   []study.Result{{FlashcardID: a.ID, Correct: true}, {FlashcardID: b.ID, Correct: true}},
		Timestamp: day,
	})
	require.NoError(t, err)
	assert.Equal(t, &RecordStudySessionResult{
		TopicID:            topic.ID,
		FlashcardsReviewed: 2,
		CorrectAnswers:     2,
		Accuracy:           100,
		StreakDays:         1,
	}, res)

	// Session counts are per call; accuracy is cumulative.
	res, err = h.Handle(ctx, RecordStudySessionCommand{
		UserID:    1,
		TopicID:   topic.ID,
		Results:   []study.Result{{FlashcardID: a.ID, Correct: false}, {FlashcardID: a.ID, Correct: true}},
		Timestamp: day.AddDate(0, 0, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.FlashcardsReviewed)
	assert.Equal(t, 1, res.CorrectAnswers)
	assert.Equal(t, 75.0, res.Accuracy)
	assert.Equal(t, 2, res.StreakDays)

	_, err = h.Handle(ctx, RecordStudySessionCommand{
		UserID:  1,
		TopicID: topic.ID,
		Results: []study.Result{{FlashcardID: foreign.ID, Correct: true}},
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = h.Handle(ctx, RecordStudySessionCommand{UserID: 2, TopicID: topic.ID})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.Handle(ctx, RecordStudySessionCommand{UserID: 1})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	rec, err := repo.Get(ctx, 1, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, rec.TotalAnswers)
}
