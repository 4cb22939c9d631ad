package models

import "time"

// Question is a generated interview question. Questions are never mutated once stored.
type Question struct {
	ID        int64     `json:"id" db:"id"`
	Genre     string    `json:"genre" db:"genre"`
	Text      string    `json:"question" db:"question"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// EvaluationPrompts holds the four prompts sent to the completion service for one answer.
type EvaluationPrompts struct {
	Rating      string
	Feedback    string
	Strengths   string
	ModelAnswer string
}

// Evaluation is the aggregated completion output for one question/answer pair.
type Evaluation struct {
	Rating      string `json:"rating"`
	Feedback    string `json:"feedback"`
	Strengths   string `json:"strengths"`
	ModelAnswer string `json:"model_answer"`
}

// SubmissionResult is returned to the caller after a video answer was evaluated.
type SubmissionResult struct {
	Evaluation
	UserAnswer string `json:"user_answer"`
}

// Completion is the outcome of a single completion call. Text always holds
// something usable downstream: the generated text or an error description.
type Completion struct {
	Text string
	Err  error
}

// Failed reports whether the completion degraded to an error text.
func (c Completion) Failed() bool {
	return c.Err != nil
}
