package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"interview-service/internal/models"
	"interview-service/internal/repository"
)

var (
	ErrEmailMissing   = errors.New("email missing")
	ErrReportNotFound = errors.New("report not found")
)

// ReportStore persists reports and resolves their users and questions.
type ReportStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetQuestion(ctx context.Context, id int64) (*models.Question, error)
	CreateReport(ctx context.Context, rep *models.Report) error
	ListReportsByEmail(ctx context.Context, email string) ([]models.ReportView, error)
	DeleteReport(ctx context.Context, id int64) error
}

type ReportService struct {
	store  ReportStore
	logger *zap.Logger
}

func NewReportService(store ReportStore, logger *zap.Logger) *ReportService {
	return &ReportService{store: store, logger: logger}
}

// Save stores every item of req that references an existing question and
// carries a numeric rating. Bad items are logged and skipped. The ids of the
// stored reports are returned in input order.
func (s *ReportService) Save(ctx context.Context, req models.SaveReportRequest) ([]int64, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, ErrEmailMissing
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	created := make([]int64, 0, len(req.Reports))
	for i, item := range req.Reports {
		rep, err := s.buildReport(ctx, user.ID, item)
		if err == nil {
			err = s.store.CreateReport(ctx, rep)
		}
		if err != nil {
			s.logger.Warn("Failed saving report item",
				zap.Int("index", i),
				zap.String("question_id", string(item.QuestionID)),
				zap.Error(err))
			continue
		}
		created = append(created, rep.ID)
	}

	s.logger.Info("Reports saved",
		zap.String("email", email),
		zap.Int("received", len(req.Reports)),
		zap.Int("saved", len(created)))

	return created, nil
}

func (s *ReportService) buildReport(ctx context.Context, userID int64, item models.ReportItem) (*models.Report, error) {
	qid, err := strconv.ParseInt(strings.TrimSpace(string(item.QuestionID)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid question id: %w", err)
	}
	q, err := s.store.GetQuestion(ctx, qid)
	if err != nil {
		return nil, fmt.Errorf("question %d: %w", qid, err)
	}

	rating, err := parseRating(string(item.Rating))
	if err != nil {
		return nil, err
	}

	return &models.Report{
		UserID:      userID,
		QuestionID:  q.ID,
		Rating:      rating,
		UserAnswer:  item.UserAnswer,
		Feedback:    item.Feedback,
		Strengths:   item.Strengths,
		ModelAnswer: item.ModelAnswer,
	}, nil
}

const maxRating = 10

// parseRating treats an empty rating as 0. Ratings must be finite and
// within 0..maxRating.
func parseRating(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid rating %q", raw)
	}
	if v < 0 || v > maxRating {
		return 0, fmt.Errorf("rating %q out of range", raw)
	}
	return v, nil
}

// Profile lists a user's reports, newest first. Unknown emails give an empty list.
func (s *ReportService) Profile(ctx context.Context, email string) ([]models.ReportView, error) {
	return s.store.ListReportsByEmail(ctx, email)
}

func (s *ReportService) Delete(ctx context.Context, id int64) error {
	err := s.store.DeleteReport(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrReportNotFound
	}
	if err != nil {
		return err
	}
	s.logger.Info("Report deleted", zap.Int64("id", id))
	return nil
}
