// Package transcribe converts a recorded answer into text. It never fails:
// every problem is reported as a user-facing message in the transcript.
package transcribe

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"interview-service/internal/media"
	"interview-service/internal/models"
	"interview-service/internal/scratch"
	"interview-service/internal/speech"
)

// MediaTool inspects containers and extracts audio. *media.Toolkit implements it.
type MediaTool interface {
	Probe(ctx context.Context, path string) (media.Info, error)
	ExtractWAV(ctx context.Context, src, dst string) error
}

// LanguageDetector is implemented by *speech.LanguageDetector.
type LanguageDetector interface {
	Detect(text string) string
}

// Adapter runs probe, extract, silence check and recognition in order.
type Adapter struct {
	media            MediaTool
	recognizer       speech.Recognizer
	scratch          *scratch.Dir
	silenceThreshold int
	detector         LanguageDetector
	logger           *zap.Logger

	analyze func(path string) (media.WAVStats, error)
}

// Config tunes the adapter.
type Config struct {
	// SilenceThreshold is the highest peak amplitude still treated as silence.
	SilenceThreshold int
	// Detector is optional.
	Detector LanguageDetector
}

func NewAdapter(tool MediaTool, recognizer speech.Recognizer, dir *scratch.Dir, cfg Config, logger *zap.Logger) *Adapter {
	return &Adapter{
		media:            tool,
		recognizer:       recognizer,
		scratch:          dir,
		silenceThreshold: cfg.SilenceThreshold,
		detector:         cfg.Detector,
		logger:           logger,
		analyze:          media.AnalyzeWAV,
	}
}

// Transcribe returns the spoken text of the video at path, or a message
// describing why there is none.
func (a *Adapter) Transcribe(ctx context.Context, path string) (result models.Transcript) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			a.logger.Error("Transcription panicked",
				zap.String("path", path),
				zap.Any("panic", r))
			result = failed(err)
		}
	}()

	info, err := a.media.Probe(ctx, path)
	if err != nil {
		a.logger.Warn("Could not open video", zap.String("path", path), zap.Error(err))
		return models.Transcript{
			Text:   models.MsgOpenFailedPrefix + " " + err.Error(),
			Status: models.TranscriptOpenFailed,
			Err:    err,
		}
	}

	if !info.HasAudio {
		return models.Transcript{
			Text:   models.MsgNoAudio,
			Status: models.TranscriptNoAudio,
		}
	}

	wav, err := a.scratch.Create(".wav")
	if err != nil {
		return failed(err)
	}
	defer wav.Release()

	if err := a.media.ExtractWAV(ctx, path, wav.Path()); err != nil {
		return failed(err)
	}

	stats, err := a.analyze(wav.Path())
	if err != nil {
		return failed(err)
	}
	if stats.IsSilent(a.silenceThreshold) {
		a.logger.Info("Recording is silent",
			zap.Int("peak", stats.Peak),
			zap.Int64("samples", stats.Samples))
		return noSpeech()
	}

	text, err := a.recognizer.Recognize(ctx, wav.Path())
	switch {
	case errors.Is(err, speech.ErrNoSpeech), err == nil && text == "":
		return noSpeech()
	case err != nil:
		a.logger.Error("Speech recognizer unavailable",
			zap.String("recognizer", a.recognizer.Name()),
			zap.Error(err))
		return models.Transcript{
			Text:   models.MsgRecognizerUnavailable,
			Status: models.TranscriptRecognizerUnavailable,
			Err:    err,
		}
	}

	result = models.Transcript{Text: text, Status: models.TranscriptOK}
	if a.detector != nil {
		result.Language = a.detector.Detect(text)
	}

	a.logger.Info("Transcription complete",
		zap.String("recognizer", a.recognizer.Name()),
		zap.Duration("duration", info.Duration),
		zap.Int("text_len", len(text)),
		zap.String("language", result.Language))

	return result
}

func noSpeech() models.Transcript {
	return models.Transcript{Text: models.MsgNoSpeech, Status: models.TranscriptNoSpeech}
}

func failed(err error) models.Transcript {
	return models.Transcript{
		Text:   models.MsgProcessingFailedPrefix + " " + err.Error(),
		Status: models.TranscriptFailed,
		Err:    err,
	}
}
