package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"interview-service/internal/models"
)

// topics maps the short topic keys used by the client to full subject names.
var topics = map[string]string{
	"dbms": "Database Management Systems",
	"os":   "Operating Systems",
	"cn":   "Computer Networks",
	"dsa":  "Data Structures",
	"oops": "Object Oriented Programming",
	"web":  "Web Development",
}

var topicPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _+#.-]{0,63}$`)

// ValidTopic accepts the known keys and any short free-form topic name.
func ValidTopic(topic string) bool {
	if _, ok := topics[topic]; ok {
		return true
	}
	return topicPattern.MatchString(topic)
}

// TopicName expands a topic key; unknown topics are used as given.
func TopicName(topic string) string {
	if name, ok := topics[topic]; ok {
		return name
	}
	return topic
}

// QuestionService generates and stores interview questions.
type QuestionService struct {
	completer Completer
	store     QuestionStore
	logger    *zap.Logger
}

func NewQuestionService(completer Completer, store QuestionStore, logger *zap.Logger) *QuestionService {
	return &QuestionService{completer: completer, store: store, logger: logger}
}

// Generate asks the model for one question on topic and persists it. The
// question is stored even when the model failed, with the error text as its
// body.
func (s *QuestionService) Generate(ctx context.Context, topic string) (*models.Question, error) {
	prompt := fmt.Sprintf("Generate exactly one technical interview question about %s. Output only the question.", TopicName(topic))

	res := s.completer.Complete(ctx, prompt)
	if res.Failed() {
		s.logger.Warn("Question generation failed", zap.String("topic", topic), zap.Error(res.Err))
	}

	q := &models.Question{
		Genre: topic,
		Text:  strings.TrimSpace(res.Text),
	}
	if err := s.store.CreateQuestion(ctx, q); err != nil {
		return nil, err
	}

	s.logger.Info("Question generated",
		zap.Int64("id", q.ID),
		zap.String("topic", topic))

	return q, nil
}
