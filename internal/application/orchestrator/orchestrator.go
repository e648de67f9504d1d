// Package orchestrator exposes the four study-session operations the request
// layer calls: start, answer, peek next and summarize. It holds no session
// state of its own; every mutation goes through the injected SessionStore.
package orchestrator

import (
	"context"
	"math/rand"
	"time"

	"github.com/studyassist/flashcard-hub/internal/domain/progress"
	"github.com/studyassist/flashcard-hub/internal/domain/shared"
	"github.com/studyassist/flashcard-hub/internal/domain/study"
	"github.com/studyassist/flashcard-hub/pkg/logger"
	"github.com/studyassist/flashcard-hub/pkg/timeutil"
)

// ProgressMerger commits finished session results to durable progress.
type ProgressMerger interface {
	Merge(ctx context.Context, userID, topicID int64, results []study.Result, now time.Time) (*progress.Record, error)
}

// Orchestrator coordinates the session store, the catalog and the merger.
type Orchestrator struct {
	sessions study.SessionStore
	catalog  study.Catalog
	merger   ProgressMerger

	shuffle func([]int64)
	now     func() time.Time
	log     *logger.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithShuffle replaces the permutation applied to a topic's flashcards.
func WithShuffle(fn func([]int64)) Option {
	return func(o *Orchestrator) { o.shuffle = fn }
}

// WithClock overrides the time source used for answers and merges.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// New creates an Orchestrator.
func New(sessions study.SessionStore, catalog study.Catalog, merger ProgressMerger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions: sessions,
		catalog:  catalog,
		merger:   merger,
		shuffle:  uniformShuffle,
		now:      timeutil.Now,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With(logger.Component("orchestrator"))
	return o
}

func uniformShuffle(ids []int64) {
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

// ══════════════════════════════════════════════════════════════════════════════
// START
// ══════════════════════════════════════════════════════════════════════════════

// Start opens a session over every flashcard of a topic the user owns, in a
// uniformly random order, and returns the first flashcard.
func (o *Orchestrator) Start(ctx context.Context, userID, topicID int64) (*SessionView, error) {
	topic, err := o.catalog.TopicForOwner(ctx, topicID, userID)
	if err != nil {
		return nil, upstream("Start", err)
	}

	cards, err := o.catalog.Flashcards(ctx, topic.ID)
	if err != nil {
		return nil, upstream("Start", err)
	}
	if len(cards) == 0 {
		return nil, study.ErrNoFlashcards
	}

	byID := make(map[int64]study.Flashcard, len(cards))
	ids := make([]int64, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
		byID[c.ID] = c
	}
	o.shuffle(ids)

	session, err := o.sessions.Create(ctx, userID, topic.ID, ids)
	if err != nil {
		return nil, upstream("Start", err)
	}

	o.log.Info("study session started",
		logger.SessionID(session.ID),
		logger.UserID(userID),
		logger.TopicID(topic.ID),
		logger.Int("total_flashcards", session.Total()),
	)

	return &SessionView{
		SessionID:       session.ID,
		TopicID:         topic.ID,
		TopicName:       topic.Name,
		TotalFlashcards: session.Total(),
		CurrentIndex:    1,
		Flashcard:       newFlashcardView(byID[session.FlashcardIDs[0]]),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT ANSWER
// ══════════════════════════════════════════════════════════════════════════════

// SubmitAnswer records the user's self-assessment for a flashcard and
// advances the session. A failed call leaves the session unchanged.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, userID int64, sessionID string, flashcardID int64, correct bool) (*AnswerResult, error) {
	if _, err := o.owned(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	card, err := o.catalog.Flashcard(ctx, flashcardID)
	if err != nil {
		return nil, upstream("SubmitAnswer", err)
	}

	now := o.now()
	updated, err := o.sessions.Update(ctx, sessionID, func(s *study.Session) error {
		if !s.OwnedBy(userID) {
			return study.ErrNotSessionOwner
		}
		return s.RecordAnswer(card.ID, correct, now)
	})
	if err != nil {
		return nil, upstream("SubmitAnswer", err)
	}

	return &AnswerResult{
		Correct:       correct,
		CorrectAnswer: card.Answer,
		HasNext:       updated.HasNext(),
		Progress:      newProgressView(updated.Tally()),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PEEK NEXT
// ══════════════════════════════════════════════════════════════════════════════

// PeekNext returns the flashcard at the cursor without changing anything.
func (o *Orchestrator) PeekNext(ctx context.Context, userID int64, sessionID string) (*SessionView, error) {
	session, err := o.owned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	flashcardID, position, err := session.Current()
	if err != nil {
		return nil, err
	}

	card, err := o.catalog.Flashcard(ctx, flashcardID)
	if err != nil {
		return nil, upstream("PeekNext", err)
	}
	topic, err := o.catalog.Topic(ctx, session.TopicID)
	if err != nil {
		return nil, upstream("PeekNext", err)
	}

	return &SessionView{
		SessionID:       session.ID,
		TopicID:         topic.ID,
		TopicName:       topic.Name,
		TotalFlashcards: session.Total(),
		CurrentIndex:    position,
		Flashcard:       newFlashcardView(*card),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARIZE
// ══════════════════════════════════════════════════════════════════════════════

// Summarize scores every recorded answer, merges the results into durable
// progress and removes the session. Only one caller can summarize a given
// session; later calls get ErrSessionNotFound. If the merge fails the session
// is left in place so the client can retry.
func (o *Orchestrator) Summarize(ctx context.Context, userID int64, sessionID string) (*Summary, error) {
	session, err := o.owned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	topic, err := o.catalog.Topic(ctx, session.TopicID)
	if err != nil {
		return nil, upstream("Summarize", err)
	}

	claimed, err := o.sessions.Update(ctx, sessionID, func(s *study.Session) error {
		if !s.OwnedBy(userID) {
			return study.ErrNotSessionOwner
		}
		return s.Claim()
	})
	if err != nil {
		return nil, upstream("Summarize", err)
	}

	tally := claimed.Tally()
	rec, err := o.merger.Merge(ctx, userID, claimed.TopicID, claimed.Results, o.now())
	if err != nil {
		o.release(ctx, sessionID, err)
		return nil, upstream("Summarize", err)
	}

	if err := o.sessions.Remove(ctx, sessionID); err != nil {
		// Progress is already committed; the claimed session can no longer
		// be summarized and expires with the store's TTL.
		o.log.Error("failed to remove summarized session",
			logger.SessionID(sessionID),
			logger.Err(err),
		)
	}

	o.log.Info("study session completed",
		logger.SessionID(sessionID),
		logger.UserID(userID),
		logger.TopicID(claimed.TopicID),
		logger.Int("total_reviewed", tally.Answered),
		logger.Float64("accuracy", tally.Accuracy),
		logger.Int("streak_days", rec.StreakDays),
	)

	return &Summary{
		SessionID:     sessionID,
		TopicName:     topic.Name,
		TotalReviewed: tally.Answered,
		CorrectCount:  tally.Correct,
		Accuracy:      tally.Accuracy,
		StreakDays:    rec.StreakDays,
	}, nil
}

func (o *Orchestrator) release(ctx context.Context, sessionID string, cause error) {
	_, err := o.sessions.Update(context.WithoutCancel(ctx), sessionID, func(s *study.Session) error {
		s.Release()
		return nil
	})
	if err != nil {
		o.log.Error("failed to release session after merge failure",
			logger.SessionID(sessionID),
			logger.Err(err),
			logger.String("cause", cause.Error()),
		)
	}
}

// owned loads a session and checks it belongs to userID.
func (o *Orchestrator) owned(ctx context.Context, sessionID string, userID int64) (*study.Session, error) {
	session, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, upstream("FindSession", err)
	}
	if !session.OwnedBy(userID) {
		return nil, study.ErrNotSessionOwner
	}
	return session, nil
}

func upstream(op string, err error) error {
	return shared.Upstream("study", op, err)
}
