package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"interview-service/internal/models"
)

// CreateUser returns ErrDuplicate when the email is taken.
func (r *Repository) CreateUser(ctx context.Context, u *models.User) error {
	u.CreatedAt = time.Now().UTC()

	id, err := r.insert(ctx,
		`INSERT INTO users (email, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.Email, u.Username, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to save user: %w", err)
	}

	u.ID = id
	return nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(
		`SELECT id, email, username, password_hash, created_at FROM users WHERE email = ?`), email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
