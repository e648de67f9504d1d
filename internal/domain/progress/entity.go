// Package progress contains the durable per-(user, topic) study statistics
// and the streak policy applied when a session completes.
package progress

import (
	"time"

	"github.com/studyassist/flashcard-hub/internal/domain/shared"
	"github.com/studyassist/flashcard-hub/internal/domain/study"
)

// Key identifies a progress record.
type Key struct {
	UserID  int64
	TopicID int64
}

// Record is the cumulative study aggregate of one user on one topic.
// Counters only grow; CorrectAnswers never exceeds TotalAnswers.
type Record struct {
	UserID             int64
	TopicID            int64
	FlashcardsReviewed int
	CorrectAnswers     int
	TotalAnswers       int
	LastStudyDate      *time.Time
	StreakDays         int

	// Version is the optimistic lock counter; 0 means not yet persisted.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord creates an empty record for a first-ever session.
func NewRecord(userID, topicID int64) *Record {
	return &Record{
		UserID:  userID,
		TopicID: topicID,
	}
}

// Key returns the record's key.
func (r *Record) Key() Key {
	return Key{UserID: r.UserID, TopicID: r.TopicID}
}

// IsNew reports whether the record has never been persisted.
func (r *Record) IsNew() bool {
	return r.Version == 0
}

// Accuracy is derived on read, never stored.
func (r *Record) Accuracy() float64 {
	return study.Accuracy(r.CorrectAnswers, r.TotalAnswers)
}

// Clone returns a copy that shares no pointers with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.LastStudyDate != nil {
		last := *r.LastStudyDate
		c.LastStudyDate = &last
	}
	return &c
}

// Apply merges one session's results into the record. now must already be
// expressed in the reference zone, and so must LastStudyDate.
func (r *Record) Apply(results []study.Result, now time.Time) {
	correct := 0
	for _, res := range results {
		if res.Correct {
			correct++
		}
	}

	r.FlashcardsReviewed += len(results)
	r.CorrectAnswers += correct
	r.TotalAnswers += len(results)
	r.StreakDays = ComputeStreak(r.LastStudyDate, r.StreakDays, now)

	last := now
	r.LastStudyDate = &last
	r.UpdatedAt = now
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
}

// Progress domain errors
var (
	ErrRecordNotFound  = shared.NewDomainError("progress", "Find", shared.ErrNotFound, "progress record not found")
	ErrVersionConflict = shared.NewDomainError("progress", "Save", shared.ErrConflict, "progress record was modified concurrently")
)
