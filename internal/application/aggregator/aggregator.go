// Package aggregator merges finished study results into the durable
// per-(user, topic) progress record.
package aggregator

import (
	"context"
	"time"

	"github.com/studyassist/flashcard-hub/internal/domain/progress"
	"github.com/studyassist/flashcard-hub/internal/domain/shared"
	"github.com/studyassist/flashcard-hub/internal/domain/study"
	"github.com/studyassist/flashcard-hub/pkg/logger"
	"github.com/studyassist/flashcard-hub/pkg/retry"
)

// Config contains configuration for the aggregator.
type Config struct {
	// MaxAttempts bounds how often a merge is retried after losing an
	// optimistic-lock race.
	MaxAttempts int

	// Location is the reference zone in which calendar days are counted.
	Location *time.Location
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Location:    time.UTC,
	}
}

// Aggregator is the progress merge service.
type Aggregator struct {
	repo    progress.Repository
	retrier *retry.Retrier
	loc     *time.Location
	log     *logger.Logger
}

// New creates an Aggregator.
func New(repo progress.Repository, cfg Config, log *logger.Logger) *Aggregator {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("aggregator"))

	return &Aggregator{
		repo: repo,
		retrier: retry.MergeRetrier(shared.IsRetryable,
			retry.WithMaxAttempts(cfg.MaxAttempts),
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				log.Warn("progress merge conflict, retrying",
					logger.Int("attempt", attempt),
					logger.Duration("delay", delay),
					logger.Err(err),
				)
			}),
		),
		loc: cfg.Location,
		log: log,
	}
}

// Merge folds results into the (userID, topicID) record, creating it on the
// first completed session. The streak is computed from the stored last study
// date and now, both read in the reference zone. Lost races are retried; if
// every attempt conflicts the ErrConflict kind is returned. Repository
// failures come back as ErrUpstreamUnavailable.
func (a *Aggregator) Merge(ctx context.Context, userID, topicID int64, results []study.Result, now time.Time) (*progress.Record, error) {
	now = now.In(a.loc)

	var merged *progress.Record
	err := a.retrier.Do(ctx, func(ctx context.Context) error {
		rec, err := a.load(ctx, userID, topicID)
		if err != nil {
			return err
		}

		rec.Apply(results, now)

		if err := a.repo.Save(ctx, rec); err != nil {
			return shared.Upstream("progress", "Save", err)
		}
		merged = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.log.Debug("progress merged",
		logger.UserID(userID),
		logger.TopicID(topicID),
		logger.Int("answers", len(results)),
		logger.Int("streak_days", merged.StreakDays),
	)
	return merged, nil
}

func (a *Aggregator) load(ctx context.Context, userID, topicID int64) (*progress.Record, error) {
	rec, err := a.repo.Get(ctx, userID, topicID)
	switch {
	case err == nil:
	case shared.IsNotFound(err):
		return progress.NewRecord(userID, topicID), nil
	default:
		return nil, shared.Upstream("progress", "Get", err)
	}

	if rec.LastStudyDate != nil {
		last := rec.LastStudyDate.In(a.loc)
		rec.LastStudyDate = &last
	}
	return rec, nil
}

// Location returns the reference zone.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}
