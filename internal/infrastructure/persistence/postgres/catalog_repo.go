package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/studyassist/flashcard-hub/internal/domain/study"
)

// CatalogRepository implements study.Catalog on the topics and flashcards
// tables.
type CatalogRepository struct {
	conn *Connection
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

// TopicForOwner implements study.Catalog.
func (r *CatalogRepository) TopicForOwner(ctx context.Context, topicID, ownerID int64) (*study.Topic, error) {
	query := `SELECT id, user_id, name, COALESCE(description, '') FROM topics WHERE id = $1 AND user_id = $2`
	return r.topic(ctx, query, topicID, ownerID)
}

// Topic implements study.Catalog.
func (r *CatalogRepository) Topic(ctx context.Context, topicID int64) (*study.Topic, error) {
	query := `SELECT id, user_id, name, COALESCE(description, '') FROM topics WHERE id = $1`
	return r.topic(ctx, query, topicID)
}

func (r *CatalogRepository) topic(ctx context.Context, query string, args ...any) (*study.Topic, error) {
	var t study.Topic
	err := r.conn.QueryRow(ctx, query, args...).Scan(&t.ID, &t.OwnerID, &t.Name, &t.Description)
	if err != nil {
		if IsNoRows(err) {
			return nil, study.ErrTopicNotFound
		}
		return nil, fmt.Errorf("postgres: get topic: %w", err)
	}
	return &t, nil
}

// Flashcards implements study.Catalog.
func (r *CatalogRepository) Flashcards(ctx context.Context, topicID int64) ([]study.Flashcard, error) {
	query := `
		SELECT id, topic_id, question, answer, difficulty
		FROM flashcards
		WHERE topic_id = $1
		ORDER BY id`

	rows, err := r.conn.Query(ctx, query, topicID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list flashcards: %w", err)
	}

	cards, err := pgx.CollectRows(rows, pgx.RowToStructByPos[study.Flashcard])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan flashcards: %w", err)
	}
	return cards, nil
}

// Flashcard implements study.Catalog.
func (r *CatalogRepository) Flashcard(ctx context.Context, flashcardID int64) (*study.Flashcard, error) {
	query := `SELECT id, topic_id, question, answer, difficulty FROM flashcards WHERE id = $1`

	var f study.Flashcard
	err := r.conn.QueryRow(ctx, query, flashcardID).Scan(&f.ID, &f.TopicID, &f.Question, &f.Answer, &f.Difficulty)
	if err != nil {
		if IsNoRows(err) {
			return nil, study.ErrFlashcardNotFound
		}
		return nil, fmt.Errorf("postgres: get flashcard: %w", err)
	}
	return &f, nil
}

var _ study.Catalog = (*CatalogRepository)(nil)
