package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/studyassist/flashcard-hub/internal/domain/study"
)

func ptr(t time.Time) *time.Time { return &t }

func TestComputeStreak(t *testing.T) {
	now := time.Date(2025, 5, 20, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		last    *time.Time
		current int
		want    int
	}{
		{"first ever session", nil, 0, 1},
		{"first ever ignores current", nil, 7, 1},
		{"same day keeps streak", ptr(now), 5, 5},
		{"same day earlier hour", ptr(time.Date(2025, 5, 20, 0, 1, 0, 0, time.UTC)), 5, 5},
		{"yesterday extends", ptr(now.AddDate(0, 0, -1)), 5, 6},
		{"yesterday late evening", ptr(time.Date(2025, 5, 19, 23, 59, 0, 0, time.UTC)), 2, 3},
		{"three days ago resets", ptr(now.AddDate(0, 0, -3)), 5, 1},
		{"two days ago resets", ptr(now.AddDate(0, 0, -2)), 5, 1},
		{"future date resets", ptr(now.AddDate(0, 0, 2)), 5, 1},
		{"zero time treated as absent", ptr(time.Time{}), 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStreak(tt.last, tt.current, now))
		})
	}
}

func TestComputeStreak_UsesSuppliedZone(t *testing.T) {
	plus5 := time.FixedZone("UTC+5", 5*60*60)

	// 18:00 UTC and 20:00 UTC are the same UTC day but different days in UTC+5.
	last := time.Date(2025, 5, 20, 18, 0, 0, 0, time.UTC)
	now := time.Date(2025, 5, 20, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, 3, ComputeStreak(&last, 3, now))

	lastLocal := last.In(plus5)
	assert.Equal(t, 4, ComputeStreak(&lastLocal, 3, now.In(plus5)))
}

func TestRecord_ApplyAccumulates(t *testing.T) {
	day1 := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	r := NewRecord(1, 2)
	assert.True(t, r.IsNew())
	assert.Equal(t, 0.0, r.Accuracy())

	r.Apply([]study.Result{{FlashcardID: 1, Correct: true}, {FlashcardID: 2, Correct: false}}, day1)
	assert.Equal(t, 2, r.FlashcardsReviewed)
	assert.Equal(t, 1, r.CorrectAnswers)
	assert.Equal(t, 2, r.TotalAnswers)
	assert.Equal(t, 1, r.StreakDays)
	assert.Equal(t, day1, *r.LastStudyDate)
	assert.Equal(t, day1, r.CreatedAt)

	r.Apply([]study.Result{{FlashcardID: 1, Correct: true}}, day2)
	assert.Equal(t, 3, r.FlashcardsReviewed)
	assert.Equal(t, 2, r.CorrectAnswers)
	assert.Equal(t, 3, r.TotalAnswers)
	assert.Equal(t, 2, r.StreakDays)
	assert.Equal(t, 66.67, r.Accuracy())
	assert.Equal(t, day1, r.CreatedAt)
	assert.LessOrEqual(t, r.CorrectAnswers, r.TotalAnswers)
}

func TestRecord_ApplyEmptySessionStillCountsAsStudyDay(t *testing.T) {
	day := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
	r := NewRecord(1, 2)

	r.Apply(nil, day)
	assert.Equal(t, 0, r.TotalAnswers)
	assert.Equal(t, 1, r.StreakDays)
	assert.NotNil(t, r.LastStudyDate)
}

func TestRecord_CloneDetachesDate(t *testing.T) {
	day := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
	r := NewRecord(1, 2)
	r.Apply(nil, day)

	c := r.Clone()
	*c.LastStudyDate = day.AddDate(1, 0, 0)
	assert.Equal(t, day, *r.LastStudyDate)
}
