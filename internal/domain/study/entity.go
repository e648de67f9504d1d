// Package study contains the study session domain: the session entity, its
// state machine and the contracts of the stores and lookups it depends on.
package study

import (
	"math"
	"slices"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG ENTITIES (read-only for this domain)
// ══════════════════════════════════════════════════════════════════════════════

// DefaultDifficulty is assigned to flashcards created without a difficulty.
const DefaultDifficulty = "medium"

// Topic is a user-owned group of flashcards.
type Topic struct {
	ID          int64
	OwnerID     int64
	Name        string
	Description string
}

// Flashcard is a single question/answer pair belonging to a topic.
type Flashcard struct {
	ID         int64
	TopicID    int64
	Question   string
	Answer     string
	Difficulty string
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

// State is the lifecycle state of a session, derived from its cursor.
type State string

const (
	// StateCreated - cursor at 0, nothing answered yet.
	StateCreated State = "created"

	// StateInProgress - at least one answer recorded, flashcards remain.
	StateInProgress State = "in_progress"

	// StateExhausted - every flashcard answered, summary not yet taken.
	StateExhausted State = "exhausted"

	// StateCompleted - terminal; the session has been summarized and removed.
	StateCompleted State = "completed"
)

// Result is one recorded answer.
type Result struct {
	FlashcardID int64 `json:"flashcard_id"`
	Correct     bool  `json:"correct"`
}

// Session is one user's pass through a topic's flashcards.
//
// FlashcardIDs is shuffled once at creation and never reordered afterwards.
// Results is append-only. Cursor stays within [0, len(FlashcardIDs)] and
// len(Results) never exceeds Cursor.
type Session struct {
	ID             string    `json:"id"`
	UserID         int64     `json:"user_id"`
	TopicID        int64     `json:"topic_id"`
	FlashcardIDs   []int64   `json:"flashcard_ids"`
	Cursor         int       `json:"cursor"`
	Results        []Result  `json:"results"`
	Closing        bool      `json:"closing"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// NewSession builds a session in the Created state. The identifier is
// assigned by the store.
func NewSession(id string, userID, topicID int64, flashcardIDs []int64, now time.Time) *Session {
	return &Session{
		ID:             id,
		UserID:         userID,
		TopicID:        topicID,
		FlashcardIDs:   slices.Clone(flashcardIDs),
		Cursor:         0,
		Results:        []Result{},
		StartedAt:      now,
		LastActivityAt: now,
	}
}

// Clone returns a deep copy so stores never hand out shared slices.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.FlashcardIDs = slices.Clone(s.FlashcardIDs)
	c.Results = slices.Clone(s.Results)
	if c.Results == nil {
		c.Results = []Result{}
	}
	return &c
}

// Total returns the number of flashcards in the session.
func (s *Session) Total() int {
	return len(s.FlashcardIDs)
}

// Remaining returns how many flashcards have not been answered.
func (s *Session) Remaining() int {
	return s.Total() - len(s.Results)
}

// HasNext reports whether a flashcard is available at the cursor.
func (s *Session) HasNext() bool {
	return s.Cursor < s.Total()
}

// State derives the lifecycle state from the cursor.
func (s *Session) State() State {
	switch {
	case s.Cursor == 0:
		return StateCreated
	case s.Cursor < s.Total():
		return StateInProgress
	default:
		return StateExhausted
	}
}

// OwnedBy checks the owning user.
func (s *Session) OwnedBy(userID int64) bool {
	return s.UserID == userID
}

// Contains reports whether the flashcard is part of the session's sequence.
func (s *Session) Contains(flashcardID int64) bool {
	return slices.Contains(s.FlashcardIDs, flashcardID)
}

// Current returns the flashcard identifier at the cursor together with its
// 1-based position.
func (s *Session) Current() (flashcardID int64, position int, err error) {
	if s.Closing {
		return 0, 0, ErrSessionClosing
	}
	if !s.HasNext() {
		return 0, 0, ErrSessionExhausted
	}
	return s.FlashcardIDs[s.Cursor], s.Cursor + 1, nil
}

// RecordAnswer appends a result and advances the cursor. On error the
// session is left untouched.
func (s *Session) RecordAnswer(flashcardID int64, correct bool, now time.Time) error {
	if s.Closing {
		return ErrSessionClosing
	}
	if !s.HasNext() {
		return ErrSessionExhausted
	}
	if !s.Contains(flashcardID) {
		return ErrFlashcardNotInSession
	}

	s.Results = append(s.Results, Result{FlashcardID: flashcardID, Correct: correct})
	s.Cursor++
	s.LastActivityAt = now
	return nil
}

// Claim marks the session as being summarized. A session can be claimed once.
func (s *Session) Claim() error {
	if s.Closing {
		return ErrSessionNotFound
	}
	s.Closing = true
	return nil
}

// Release undoes Claim after a failed summary so the client can retry.
func (s *Session) Release() {
	s.Closing = false
}

// Tally computes running statistics over every recorded result.
func (s *Session) Tally() Tally {
	t := Tally{Answered: len(s.Results), Remaining: s.Remaining()}
	for _, r := range s.Results {
		if r.Correct {
			t.Correct++
		}
	}
	t.Accuracy = Accuracy(t.Correct, t.Answered)
	return t
}

// Tally is the running score of a session.
type Tally struct {
	Answered  int
	Correct   int
	Accuracy  float64
	Remaining int
}

// Accuracy returns correct/total as a percentage rounded to two decimals,
// or 0 when nothing was answered.
func Accuracy(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(correct) / float64(total) * 100
	return math.Round(pct*100) / 100
}
