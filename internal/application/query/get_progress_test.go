package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyassist/flashcard-hub/internal/domain/progress"
	"github.com/studyassist/flashcard-hub/internal/domain/shared"
	"github.com/studyassist/flashcard-hub/internal/domain/study"
	"github.com/studyassist/flashcard-hub/internal/infrastructure/persistence/memory"
)

func TestGetProgress(t *testing.T) {
	ctx := context.Background()
	catalog := memory.NewCatalog()
	repo := memory.NewProgressRepository()
	h := NewGetProgressHandler(repo, catalog)

	goTopic := catalog.AddTopic(1, "Go", "")
	sqlTopic := catalog.AddTopic(1, "SQL", "")
	day := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)

	rec := progress.NewRecord(1, goTopic.ID)
	rec.Apply([]study.Result{{FlashcardID: 1, Correct: true}, {FlashcardID: 2}, {FlashcardID: 3, Correct: true}}, day)
	require.NoError(t, repo.Save(ctx, rec))

	// Progress on a topic that no longer exists in the catalog.
	require.NoError(t, repo.Save(ctx, progress.NewRecord(1, 999)))

	list, err := h.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Go", list[0].TopicName)
	assert.Equal(t, 3, list[0].FlashcardsReviewed)
	assert.Equal(t, 66.67, list[0].Accuracy)
	assert.Equal(t, 1, list[0].StreakDays)
	assert.Equal(t, day, *list[0].LastStudyDate)

	fresh, err := h.ForTopic(ctx, 1, sqlTopic.ID)
	require.NoError(t, err)
	assert.Equal(t, "SQL", fresh.TopicName)
	assert.Zero(t, fresh.FlashcardsReviewed)
	assert.Nil(t, fresh.LastStudyDate)

	_, err = h.ForTopic(ctx, 2, goTopic.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	empty, err := h.List(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
