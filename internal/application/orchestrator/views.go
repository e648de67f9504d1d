package orchestrator

import "github.com/studyassist/flashcard-hub/internal/domain/study"

// FlashcardView is the flashcard as shown to the studying user.
type FlashcardView struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func newFlashcardView(f study.Flashcard) FlashcardView {
	return FlashcardView{ID: f.ID, Question: f.Question, Answer: f.Answer}
}

// SessionView is returned by Start and PeekNext. CurrentIndex is 1-based.
type SessionView struct {
	SessionID       string        `json:"session_id"`
	TopicID         int64         `json:"topic_id"`
	TopicName       string        `json:"topic_name"`
	TotalFlashcards int           `json:"total_flashcards"`
	CurrentIndex    int           `json:"current_index"`
	Flashcard       FlashcardView `json:"flashcard"`
}

// ProgressView is the running tally of a session.
type ProgressView struct {
	Answered  int     `json:"answered"`
	Correct   int     `json:"correct"`
	Accuracy  float64 `json:"accuracy"`
	Remaining int     `json:"remaining"`
}

func newProgressView(t study.Tally) ProgressView {
	return ProgressView{
		Answered:  t.Answered,
		Correct:   t.Correct,
		Accuracy:  t.Accuracy,
		Remaining: t.Remaining,
	}
}

// AnswerResult is returned by SubmitAnswer.
type AnswerResult struct {
	Correct       bool         `json:"correct"`
	CorrectAnswer string       `json:"correct_answer"`
	HasNext       bool         `json:"has_next"`
	Progress      ProgressView `json:"progress"`
}

// Summary is returned by Summarize.
type Summary struct {
	SessionID     string  `json:"session_id"`
	TopicName     string  `json:"topic_name"`
	TotalReviewed int     `json:"total_reviewed"`
	CorrectCount  int     `json:"correct_count"`
	Accuracy      float64 `json:"accuracy"`
	StreakDays    int     `json:"streak_days"`
}
