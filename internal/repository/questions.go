package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"interview-service/internal/models"
)

// CreateQuestion stores q and fills in its ID and CreatedAt.
func (r *Repository) CreateQuestion(ctx context.Context, q *models.Question) error {
	q.CreatedAt = time.Now().UTC()

	id, err := r.insert(ctx,
		`INSERT INTO questions (genre, question, created_at) VALUES (?, ?, ?)`,
		q.Genre, q.Text, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save question: %w", err)
	}

	q.ID = id
	return nil
}

// GetQuestion returns ErrNotFound for unknown ids.
func (r *Repository) GetQuestion(ctx context.Context, id int64) (*models.Question, error) {
	var q models.Question
	err := r.db.GetContext(ctx, &q, r.db.Rebind(
		`SELECT id, genre, question, created_at FROM questions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return &q, nil
}
