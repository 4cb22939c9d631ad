package speech

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// noSpeechMarker is what the model is told to answer for silent recordings.
const noSpeechMarker = "NO_SPEECH"

const transcribePrompt = `Transcribe the spoken words in this recording verbatim.
Output only the transcript, with no commentary, labels or timestamps.
If nobody speaks in the recording, output exactly ` + noSpeechMarker + `.`

// Inline request bodies are capped at 20MB after base64 encoding.
const maxInlineAudioBytes = 14 << 20

// audioGenerator is satisfied by *gemini.Client.
type audioGenerator interface {
	GenerateWithBlob(ctx context.Context, prompt, mimeType string, data []byte) (string, error)
	GenerateWithFile(ctx context.Context, prompt, mimeType, path string) (string, error)
}

// GeminiRecognizer sends short recordings inline to a Gemini model and
// uploads longer ones through the Files API.
type GeminiRecognizer struct {
	client      audioGenerator
	language    string
	inlineLimit int64
	logger      *zap.Logger
}

// NewGeminiRecognizer builds a recognizer on top of a Gemini client. language
// is a hint such as "en" and may be empty.
func NewGeminiRecognizer(client audioGenerator, language string, logger *zap.Logger) *GeminiRecognizer {
	return &GeminiRecognizer{
		client:      client,
		language:    language,
		inlineLimit: maxInlineAudioBytes,
		logger:      logger,
	}
}

func (r *GeminiRecognizer) Name() string {
	return "gemini"
}

func (r *GeminiRecognizer) Recognize(ctx context.Context, wavPath string) (string, error) {
	info, err := os.Stat(wavPath)
	if err != nil {
		return "", fmt.Errorf("failed to read audio: %w", err)
	}

	prompt := transcribePrompt
	if r.language != "" {
		prompt += "\nThe speaker is expected to use language code " + r.language + "."
	}

	var text string
	if info.Size() > r.inlineLimit {
		text, err = r.client.GenerateWithFile(ctx, prompt, "audio/wav", wavPath)
	} else {
		var data []byte
		if data, err = os.ReadFile(wavPath); err != nil {
			return "", fmt.Errorf("failed to read audio: %w", err)
		}
		text, err = r.client.GenerateWithBlob(ctx, prompt, "audio/wav", data)
	}
	if err != nil {
		return "", fmt.Errorf("gemini recognition failed: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(strings.Trim(text, ". "), noSpeechMarker) {
		return "", ErrNoSpeech
	}

	r.logger.Debug("Gemini recognition complete",
		zap.Int64("audio_bytes", info.Size()),
		zap.Int("text_len", len(text)))

	return text, nil
}
