package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Report is one persisted interview attempt
type Report struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	QuestionID  int64     `json:"question_id" db:"question_id"`
	Rating      float64   `json:"rating" db:"rating"`
	UserAnswer  string    `json:"user_answer" db:"user_answer"`
	Feedback    string    `json:"feedback" db:"feedback"`
	Strengths   string    `json:"strengths" db:"strengths"`
	ModelAnswer string    `json:"model_answer" db:"model_answer"`
	SubmitTime  time.Time `json:"submit_time" db:"submit_time"`
}

// ReportView is a report joined with its user and question for profile listings.
type ReportView struct {
	ID          int64     `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	Username    string    `json:"username" db:"username"`
	GenreName   string    `json:"genre_name" db:"genre_name"`
	Question    string    `json:"question" db:"question"`
	Rating      float64   `json:"rating" db:"rating"`
	UserAnswer  string    `json:"user_answer" db:"user_answer"`
	Feedback    string    `json:"feedback" db:"feedback"`
	Strengths   string    `json:"strengths" db:"strengths"`
	ModelAnswer string    `json:"model_answer" db:"model_answer"`
	SubmitTime  time.Time `json:"submit_time" db:"submit_time"`
}

// SaveReportRequest is the batch payload sent after an interview session.
type SaveReportRequest struct {
	Email   string       `json:"email"`
	Reports []ReportItem `json:"reports"`
}

// ReportItem mirrors a SubmissionResult plus its question id. Rating arrives as
// the raw completion text.
type ReportItem struct {
	QuestionID  LooseString `json:"question_id"`
	Rating      LooseString `json:"rating"`
	UserAnswer  string      `json:"user_answer"`
	Feedback    string      `json:"feedback"`
	Strengths   string      `json:"strengths"`
	ModelAnswer string      `json:"model_answer"`
}

// LooseString accepts a JSON string, number or null. Browsers send ids and
// ratings either way depending on where they were read from.
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = LooseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = LooseString(num.String())
	return nil
}
