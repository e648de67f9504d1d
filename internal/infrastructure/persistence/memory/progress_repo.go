package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/studyassist/flashcard-hub/internal/domain/progress"
)

// ProgressRepository is an in-memory progress.Repository with the same
// optimistic version check as the Postgres implementation.
type ProgressRepository struct {
	mu      sync.RWMutex
	records map[progress.Key]*progress.Record
}

// NewProgressRepository creates an empty repository.
func NewProgressRepository() *ProgressRepository {
	return &ProgressRepository{records: make(map[progress.Key]*progress.Record)}
}

// Get implements progress.Repository.
func (r *ProgressRepository) Get(ctx context.Context, userID, topicID int64) (*progress.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[progress.Key{UserID: userID, TopicID: topicID}]
	if !ok {
		return nil, progress.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// Save implements progress.Repository.
func (r *ProgressRepository) Save(ctx context.Context, rec *progress.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.records[rec.Key()]
	switch {
	case rec.IsNew() && exists:
		return progress.ErrVersionConflict
	case !rec.IsNew() && (!exists || stored.Version != rec.Version):
		return progress.ErrVersionConflict
	}

	rec.Version++
	r.records[rec.Key()] = rec.Clone()
	return nil
}

// ListByUser implements progress.Repository.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID int64) ([]*progress.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*progress.Record, 0)
	for key, rec := range r.records {
		if key.UserID == userID {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TopicID < out[j].TopicID })
	return out, nil
}

var _ progress.Repository = (*ProgressRepository)(nil)
