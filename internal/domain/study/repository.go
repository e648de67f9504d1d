package study

import "context"

// SessionStore holds live sessions keyed by identifier. Implementations make
// every per-key operation atomic with respect to the others; operations on
// different sessions do not wait on each other beyond a map lookup.
type SessionStore interface {
	// Create stores a new session with a fresh identifier, cursor 0 and no
	// results. Returns ErrTooManySessions when a bound is configured and hit.
	Create(ctx context.Context, userID, topicID int64, flashcardIDs []int64) (*Session, error)

	// Get returns a copy of the session or ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Update applies fn to the current session atomically. When fn returns an
	// error nothing is written and that error is returned.
	Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error)

	// Remove deletes the session. Removing an absent session is a no-op.
	Remove(ctx context.Context, id string) error
}

// Catalog is the read-only lookup of topics and flashcards owned by the
// topic/flashcard CRUD collaborator.
type Catalog interface {
	// TopicForOwner returns the topic only if ownerID owns it; otherwise
	// ErrTopicNotFound.
	TopicForOwner(ctx context.Context, topicID, ownerID int64) (*Topic, error)

	// Topic returns the topic regardless of owner.
	Topic(ctx context.Context, topicID int64) (*Topic, error)

	// Flashcards returns every flashcard of the topic (possibly empty).
	Flashcards(ctx context.Context, topicID int64) ([]Flashcard, error)

	// Flashcard returns a single flashcard or ErrFlashcardNotFound.
	Flashcard(ctx context.Context, flashcardID int64) (*Flashcard, error)
}
