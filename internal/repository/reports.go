package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"interview-service/internal/models"
)

// CreateReport stores rep. A zero SubmitTime is set to now.
func (r *Repository) CreateReport(ctx context.Context, rep *models.Report) error {
	if rep.SubmitTime.IsZero() {
		rep.SubmitTime = time.Now()
	}
	rep.SubmitTime = rep.SubmitTime.UTC()

	id, err := r.insert(ctx, `
		INSERT INTO reports (
			user_id, question_id, rating, user_answer, feedback,
			strengths, model_answer, submit_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.UserID,
		rep.QuestionID,
		rep.Rating,
		rep.UserAnswer,
		rep.Feedback,
		rep.Strengths,
		rep.ModelAnswer,
		rep.SubmitTime,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	rep.ID = id
	return nil
}

// ListReportsByEmail returns the user's reports, newest first. Unknown users
// simply have no reports.
func (r *Repository) ListReportsByEmail(ctx context.Context, email string) ([]models.ReportView, error) {
	query := r.db.Rebind(`
		SELECT r.id, u.email, u.username, q.genre AS genre_name, q.question,
		       r.rating, r.user_answer, r.feedback, r.strengths, r.model_answer,
		       r.submit_time
		FROM reports r
		JOIN users u ON u.id = r.user_id
		JOIN questions q ON q.id = r.question_id
		WHERE u.email = ?
		ORDER BY r.submit_time DESC, r.id DESC`)

	views := []models.ReportView{}
	if err := r.db.SelectContext(ctx, &views, query, email); err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}

	r.logger.Debug("Listed reports", zap.String("email", email), zap.Int("count", len(views)))
	return views, nil
}

// DeleteReport returns ErrNotFound when no report has this id.
func (r *Repository) DeleteReport(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM reports WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
