package progress

import "context"

// Repository persists progress records. Save is the single commit point of a
// merge and must detect lost updates.
type Repository interface {
	// Get returns the record for (userID, topicID) or ErrRecordNotFound.
	Get(ctx context.Context, userID, topicID int64) (*Record, error)

	// Save inserts the record when r.Version is 0 and otherwise updates it
	// only if the stored version still equals r.Version. A lost race yields
	// ErrVersionConflict. On success r.Version is incremented.
	Save(ctx context.Context, r *Record) error

	// ListByUser returns every record of the user ordered by topic.
	ListByUser(ctx context.Context, userID int64) ([]*Record, error)
}
