package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"interview-service/internal/models"
)

// ErrEvaluationFailed means the four completions could not all be collected.
var ErrEvaluationFailed = errors.New("evaluation failed")

// Completer sends one prompt to the language model. Failures come back as
// text, never as a panic.
type Completer interface {
	Complete(ctx context.Context, prompt string) models.Completion
}

// BuildPrompts returns the four evaluation prompts for a question and answer.
func BuildPrompts(question, answer string) models.EvaluationPrompts {
	return models.EvaluationPrompts{
		Rating:      fmt.Sprintf("Rate this answer out of 10. ONLY return the number. Q: %s A: %s", question, answer),
		Feedback:    fmt.Sprintf("Give a 100-word feedback for Q: %s. A: %s", question, answer),
		Strengths:   fmt.Sprintf("List strengths of this answer. Q: %s A: %s", question, answer),
		ModelAnswer: fmt.Sprintf("Give the ideal short answer for: %s", question),
	}
}

// Evaluator scores an answer with four concurrent completions.
type Evaluator struct {
	completer Completer
	logger    *zap.Logger
}

func NewEvaluator(completer Completer, logger *zap.Logger) *Evaluator {
	return &Evaluator{completer: completer, logger: logger}
}

// Evaluate returns all four fields or an error wrapping ErrEvaluationFailed.
// A completion that failed upstream still fills its field with the
// "Error generating: ..." text.
func (e *Evaluator) Evaluate(ctx context.Context, question, answer string) (*models.Evaluation, error) {
	prompts := BuildPrompts(question, answer)
	start := time.Now()

	var eval models.Evaluation
	tasks := []struct {
		name   string
		prompt string
		dst    *string
	}{
		{"rating", prompts.Rating, &eval.Rating},
		{"feedback", prompts.Feedback, &eval.Feedback},
		{"strengths", prompts.Strengths, &eval.Strengths},
		{"model_answer", prompts.ModelAnswer, &eval.ModelAnswer},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s completion panicked: %v", task.name, r)
				}
			}()

			res := e.completer.Complete(gctx, task.prompt)
			if res.Failed() {
				e.logger.Warn("Completion failed",
					zap.String("field", task.name),
					zap.Error(res.Err))
			}
			*task.dst = res.Text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.Error("Evaluation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrEvaluationFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvaluationFailed, err)
	}

	eval.Rating = strings.TrimSpace(eval.Rating)

	e.logger.Info("Answer evaluated",
		zap.String("rating", eval.Rating),
		zap.Duration("duration", time.Since(start)))

	return &eval, nil
}
