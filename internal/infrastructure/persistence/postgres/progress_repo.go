package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/studyassist/flashcard-hub/internal/domain/progress"
)

// ProgressRepository implements progress.Repository on user_progress.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const progressColumns = `
	user_id, topic_id, flashcards_reviewed, correct_answers, total_answers,
	last_study_date, streak_days, version, created_at, updated_at`

// Get implements progress.Repository.
func (r *ProgressRepository) Get(ctx context.Context, userID, topicID int64) (*progress.Record, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1 AND topic_id = $2`

	rec, err := scanRecord(r.conn.QueryRow(ctx, query, userID, topicID))
	if err != nil {
		if IsNoRows(err) {
			return nil, progress.ErrRecordNotFound
		}
		return nil, fmt.Errorf("postgres: get progress: %w", err)
	}
	return rec, nil
}

// Save implements progress.Repository. A new record is inserted with
// ON CONFLICT DO NOTHING so a concurrent first insert surfaces as a version
// conflict instead of a unique violation.
func (r *ProgressRepository) Save(ctx context.Context, rec *progress.Record) error {
	if rec.IsNew() {
		return r.insert(ctx, rec)
	}
	return r.update(ctx, rec)
}

func (r *ProgressRepository) insert(ctx context.Context, rec *progress.Record) error {
	query := `
		INSERT INTO user_progress (
			user_id, topic_id, flashcards_reviewed, correct_answers, total_answers,
			last_study_date, streak_days, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9)
		ON CONFLICT (user_id, topic_id) DO NOTHING`

	tag, err := r.conn.Exec(ctx, query,
		rec.UserID, rec.TopicID, rec.FlashcardsReviewed, rec.CorrectAnswers, rec.TotalAnswers,
		rec.LastStudyDate, rec.StreakDays, timestamp(rec.CreatedAt), timestamp(rec.UpdatedAt),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return progress.ErrVersionConflict
		}
		return fmt.Errorf("postgres: insert progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return progress.ErrVersionConflict
	}

	rec.Version = 1
	return nil
}

func (r *ProgressRepository) update(ctx context.Context, rec *progress.Record) error {
	query := `
		UPDATE user_progress SET
			flashcards_reviewed = $3,
			correct_answers = $4,
			total_answers = $5,
			last_study_date = $6,
			streak_days = $7,
			updated_at = $8,
			version = version + 1
		WHERE user_id = $1 AND topic_id = $2 AND version = $9`

	tag, err := r.conn.Exec(ctx, query,
		rec.UserID, rec.TopicID, rec.FlashcardsReviewed, rec.CorrectAnswers, rec.TotalAnswers,
		rec.LastStudyDate, rec.StreakDays, timestamp(rec.UpdatedAt), rec.Version,
	)
	if err != nil {
		return fmt.Errorf("postgres: update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return progress.ErrVersionConflict
	}

	rec.Version++
	return nil
}

// ListByUser implements progress.Repository.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID int64) ([]*progress.Record, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1 ORDER BY topic_id`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list progress: %w", err)
	}
	defer rows.Close()

	out := make([]*progress.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan progress: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*progress.Record, error) {
	var rec progress.Record
	err := row.Scan(
		&rec.UserID,
		&rec.TopicID,
		&rec.FlashcardsReviewed,
		&rec.CorrectAnswers,
		&rec.TotalAnswers,
		&rec.LastStudyDate,
		&rec.StreakDays,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func timestamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

var _ progress.Repository = (*ProgressRepository)(nil)
