package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"interview-service/internal/models"
	"interview-service/internal/repository"
	"interview-service/internal/scratch"
)

// ErrQuestionNotFound is returned for submissions against unknown question ids.
var ErrQuestionNotFound = errors.New("question not found")

// QuestionStore persists generated questions.
type QuestionStore interface {
	CreateQuestion(ctx context.Context, q *models.Question) error
	GetQuestion(ctx context.Context, id int64) (*models.Question, error)
}

// Transcriber turns a video file into answer text. *transcribe.Adapter implements it.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) models.Transcript
}

// Submission runs the upload, transcribe, cleanup, evaluate pipeline for one answer.
type Submission struct {
	questions   QuestionStore
	scratch     *scratch.Dir
	transcriber Transcriber
	evaluator   *Evaluator
	logger      *zap.Logger
}

func NewSubmission(
	questions QuestionStore,
	dir *scratch.Dir,
	transcriber Transcriber,
	evaluator *Evaluator,
	logger *zap.Logger,
) *Submission {
	return &Submission{
		questions:   questions,
		scratch:     dir,
		transcriber: transcriber,
		evaluator:   evaluator,
		logger:      logger,
	}
}

// Stage streams an uploaded video into a fresh scratch file. The caller
// passes the file to Process, which takes over releasing it.
func (s *Submission) Stage(r io.Reader, ext string) (*scratch.File, error) {
	if ext == "" {
		ext = ".webm"
	}
	f, err := s.scratch.Write(ext, r)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	return f, nil
}

// Process transcribes and evaluates a staged video. The video is released
// before evaluation starts and on every early return.
func (s *Submission) Process(ctx context.Context, questionID int64, video *scratch.File) (*models.SubmissionResult, error) {
	defer video.Release()

	q, err := s.lookup(ctx, questionID)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, q, video)
}

// Submit resolves the question, stages r and processes it.
func (s *Submission) Submit(ctx context.Context, questionID int64, r io.Reader) (*models.SubmissionResult, error) {
	q, err := s.lookup(ctx, questionID)
	if err != nil {
		return nil, err
	}

	video, err := s.Stage(r, ".webm")
	if err != nil {
		return nil, err
	}
	defer video.Release()

	return s.run(ctx, q, video)
}

func (s *Submission) lookup(ctx context.Context, id int64) (*models.Question, error) {
	q, err := s.questions.GetQuestion(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load question: %w", err)
	}
	return q, nil
}

func (s *Submission) run(ctx context.Context, q *models.Question, video *scratch.File) (*models.SubmissionResult, error) {
	transcript := s.transcriber.Transcribe(ctx, video.Path())
	if !transcript.OK() {
		s.logger.Warn("Answer was not transcribed",
			zap.Int64("question_id", q.ID),
			zap.String("status", string(transcript.Status)),
			zap.Error(transcript.Err))
	}

	// release failures are logged inside scratch and do not affect the answer
	_ = video.Release()

	eval, err := s.evaluator.Evaluate(ctx, q.Text, transcript.Text)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Submission evaluated",
		zap.Int64("question_id", q.ID),
		zap.Int64("video_bytes", video.Size()),
		zap.String("transcript_status", string(transcript.Status)))

	return &models.SubmissionResult{
		Evaluation: *eval,
		UserAnswer: transcript.Text,
	}, nil
}
