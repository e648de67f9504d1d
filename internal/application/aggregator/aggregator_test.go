package aggregator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyassist/flashcard-hub/internal/domain/progress"
	"github.com/studyassist/flashcard-hub/internal/domain/shared"
	"github.com/studyassist/flashcard-hub/internal/domain/study"
	"github.com/studyassist/flashcard-hub/internal/infrastructure/persistence/memory"
)

// conflictingRepo loses the first n Save races.
type conflictingRepo struct {
	*memory.ProgressRepository
	mu        sync.Mutex
	conflicts int
	saves     int
}

func (r *conflictingRepo) Save(ctx context.Context, rec *progress.Record) error {
	r.mu.Lock()
	r.saves++
	if r.conflicts > 0 {
		r.conflicts--
		r.mu.Unlock()
		return progress.ErrVersionConflict
	}
	r.mu.Unlock()
	return r.ProgressRepository.Save(ctx, rec)
}

type brokenRepo struct{ *memory.ProgressRepository }

var errDown = errors.New("connection refused")

func (brokenRepo) Get(context.Context, int64, int64) (*progress.Record, error) { return nil, errDown }

func results(correct ...bool) []study.Result {
	out := make([]study.Result, len(correct))
	for i, c := range correct {
		out[i] = study.Result{FlashcardID: int64(i + 1), Correct: c}
	}
	return out
}

func TestMerge_FirstSessionCreatesRecord(t *testing.T) {
	repo := memory.NewProgressRepository()
	agg := New(repo, DefaultConfig(), nil)
	now := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)

	rec, err := agg.Merge(context.Background(), 1, 2, results(true, false, true), now)
	require.NoError(t, err)

	assert.Equal(t, 3, rec.FlashcardsReviewed)
	assert.Equal(t, 2, rec.CorrectAnswers)
	assert.Equal(t, 3, rec.TotalAnswers)
	assert.Equal(t, 1, rec.StreakDays)
	assert.Equal(t, 66.67, rec.Accuracy())
	assert.Equal(t, int64(1), rec.Version)

	stored, err := repo.Get(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, rec.TotalAnswers, stored.TotalAnswers)
}

func TestMerge_AccumulatesAcrossDays(t *testing.T) {
	repo := memory.NewProgressRepository()
	agg := New(repo, DefaultConfig(), nil)
	ctx := context.Background()
	day1 := time.Date(2025, 5, 20, 22, 0, 0, 0, time.UTC)

	_, err := agg.Merge(ctx, 1, 2, results(true, true), day1)
	require.NoError(t, err)

	sameDay, err := agg.Merge(ctx, 1, 2, results(false), day1.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, sameDay.StreakDays)

	nextDay, err := agg.Merge(ctx, 1, 2, results(true), day1.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, nextDay.TotalAnswers)
	assert.Equal(t, 3, nextDay.CorrectAnswers)
	assert.Equal(t, 2, nextDay.StreakDays)

	gap, err := agg.Merge(ctx, 1, 2, results(true), day1.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, gap.TotalAnswers)
	assert.Equal(t, 1, gap.StreakDays)
}

func TestMerge_CountsDaysInReferenceZone(t *testing.T) {
	repo := memory.NewProgressRepository()
	plus5 := time.FixedZone("UTC+5", 5*60*60)
	agg := New(repo, Config{Location: plus5}, nil)
	ctx := context.Background()

	// Same UTC day, but 20:00 UTC is the next day in UTC+5.
	_, err := agg.Merge(ctx, 1, 2, results(true), time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	rec, err := agg.Merge(ctx, 1, 2, results(true), time.Date(2025, 5, 20, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 2, rec.StreakDays)
	assert.Equal(t, plus5, rec.LastStudyDate.Location())
}

func TestMerge_RetriesConflicts(t *testing.T) {
	repo := &conflictingRepo{ProgressRepository: memory.NewProgressRepository(), conflicts: 2}
	agg := New(repo, Config{MaxAttempts: 3}, nil)

	rec, err := agg.Merge(context.Background(), 1, 2, results(true), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TotalAnswers)
	assert.Equal(t, 3, repo.saves)
}

func TestMerge_SurfacesConflictAfterMaxAttempts(t *testing.T) {
	repo := &conflictingRepo{ProgressRepository: memory.NewProgressRepository(), conflicts: 10}
	agg := New(repo, Config{MaxAttempts: 3}, nil)

	_, err := agg.Merge(context.Background(), 1, 2, results(true), time.Now())
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, 3, repo.saves)

	_, err = repo.Get(context.Background(), 1, 2)
	assert.ErrorIs(t, err, progress.ErrRecordNotFound)
}

func TestMerge_RepositoryFailureIsUpstream(t *testing.T) {
	agg := New(brokenRepo{memory.NewProgressRepository()}, DefaultConfig(), nil)

	_, err := agg.Merge(context.Background(), 1, 2, results(true), time.Now())
	assert.ErrorIs(t, err, shared.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, errDown)
}

func TestMerge_ConcurrentMergesLoseNothing(t *testing.T) {
	repo := memory.NewProgressRepository()
	agg := New(repo, Config{MaxAttempts: 50}, nil)
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := agg.Merge(context.Background(), 1, 2, results(true, false), now)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := repo.Get(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 16, rec.TotalAnswers)
	assert.Equal(t, 8, rec.CorrectAnswers)
	assert.Equal(t, 1, rec.StreakDays)
}
