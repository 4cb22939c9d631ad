package speech

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// WhisperConfig configures the OpenAI-compatible transcription endpoint.
type WhisperConfig struct {
	APIKey    string
	ModelName string
	BaseURL   string // empty means api.openai.com
	Language  string
}

// WhisperRecognizer uploads the audio to an OpenAI-compatible
// /audio/transcriptions endpoint.
type WhisperRecognizer struct {
	api      *openai.Client
	model    string
	language string
	logger   *zap.Logger
}

func NewWhisperRecognizer(cfg WhisperConfig, logger *zap.Logger) (*WhisperRecognizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("whisper API key is required")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = openai.Whisper1
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	logger.Info("Whisper recognizer initialized", zap.String("model", cfg.ModelName))

	return &WhisperRecognizer{
		api:      openai.NewClientWithConfig(apiCfg),
		model:    cfg.ModelName,
		language: cfg.Language,
		logger:   logger,
	}, nil
}

func (r *WhisperRecognizer) Name() string {
	return "whisper"
}

func (r *WhisperRecognizer) Recognize(ctx context.Context, wavPath string) (string, error) {
	resp, err := r.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.model,
		FilePath: wavPath,
		Language: r.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
