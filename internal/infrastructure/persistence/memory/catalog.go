package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/studyassist/flashcard-hub/internal/domain/study"
)

// Catalog is an in-memory study.Catalog. Identifiers are assigned on insert.
type Catalog struct {
	mu         sync.RWMutex
	topics     map[int64]study.Topic
	flashcards map[int64]study.Flashcard
	nextTopic  int64
	nextCard   int64
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		topics:     make(map[int64]study.Topic),
		flashcards: make(map[int64]study.Flashcard),
	}
}

// AddTopic stores a topic and returns it with its assigned ID.
func (c *Catalog) AddTopic(ownerID int64, name, description string) study.Topic {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextTopic++
	t := study.Topic{ID: c.nextTopic, OwnerID: ownerID, Name: name, Description: description}
	c.topics[t.ID] = t
	return t
}

// AddFlashcard stores a flashcard under topicID. An empty difficulty
// defaults to study.DefaultDifficulty.
func (c *Catalog) AddFlashcard(topicID int64, question, answer, difficulty string) study.Flashcard {
	c.mu.Lock()
	defer c.mu.Unlock()

	if difficulty == "" {
		difficulty = study.DefaultDifficulty
	}
	c.nextCard++
	f := study.Flashcard{ID: c.nextCard, TopicID: topicID, Question: question, Answer: answer, Difficulty: difficulty}
	c.flashcards[f.ID] = f
	return f
}

// TopicForOwner implements study.Catalog.
func (c *Catalog) TopicForOwner(ctx context.Context, topicID, ownerID int64) (*study.Topic, error) {
	t, err := c.Topic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != ownerID {
		return nil, study.ErrTopicNotFound
	}
	return t, nil
}

// Topic implements study.Catalog.
func (c *Catalog) Topic(ctx context.Context, topicID int64) (*study.Topic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.topics[topicID]
	if !ok {
		return nil, study.ErrTopicNotFound
	}
	return &t, nil
}

// Flashcards implements study.Catalog. Cards come back in insertion order.
func (c *Catalog) Flashcards(ctx context.Context, topicID int64) ([]study.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]study.Flashcard, 0)
	for _, f := range c.flashcards {
		if f.TopicID == topicID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Flashcard implements study.Catalog.
func (c *Catalog) Flashcard(ctx context.Context, flashcardID int64) (*study.Flashcard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.flashcards[flashcardID]
	if !ok {
		return nil, study.ErrFlashcardNotFound
	}
	return &f, nil
}

var _ study.Catalog = (*Catalog)(nil)
