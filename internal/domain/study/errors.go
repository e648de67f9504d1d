package study

import "github.com/studyassist/flashcard-hub/internal/domain/shared"

// Study domain errors
var (
	ErrSessionNotFound       = shared.NewDomainError("study", "FindSession", shared.ErrNotFound, "session not found")
	ErrTopicNotFound         = shared.NewDomainError("study", "FindTopic", shared.ErrNotFound, "topic not found")
	ErrNoFlashcards          = shared.NewDomainError("study", "Start", shared.ErrNotFound, "no flashcards found for this topic")
	ErrFlashcardNotFound     = shared.NewDomainError("study", "FindFlashcard", shared.ErrNotFound, "flashcard not found")
	ErrFlashcardNotInSession = shared.NewDomainError("study", "SubmitAnswer", shared.ErrNotFound, "flashcard is not part of this session")
	ErrNotSessionOwner       = shared.NewDomainError("study", "CheckOwner", shared.ErrForbidden, "not your session")
	ErrSessionExhausted      = shared.NewDomainError("study", "Advance", shared.ErrInvalidState, "session complete, get summary")
	ErrSessionClosing        = shared.NewDomainError("study", "Advance", shared.ErrInvalidState, "session is being summarized")
	ErrTooManySessions       = shared.NewDomainError("study", "CreateSession", shared.ErrCapacityExceeded, "too many active sessions")
)
