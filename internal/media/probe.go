// Package media wraps ffprobe and ffmpeg for inspecting uploaded recordings
// and converting their audio track to PCM WAV.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUnreadable means the container could not be opened or parsed.
var ErrUnreadable = errors.New("media file is unreadable")

// Config points at the ffmpeg binaries.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	SampleRate  int
}

// Info describes what ffprobe found in a container.
type Info struct {
	Format     string
	Duration   time.Duration
	HasAudio   bool
	AudioCodec string
	Channels   int
	SampleRate int
}

// runFunc executes a command and returns stdout, with stderr folded into the error.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Toolkit runs ffprobe and ffmpeg.
type Toolkit struct {
	ffmpeg     string
	ffprobe    string
	sampleRate int
	run        runFunc
	logger     *zap.Logger
}

func NewToolkit(cfg Config, logger *zap.Logger) *Toolkit {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &Toolkit{
		ffmpeg:     cfg.FFmpegPath,
		ffprobe:    cfg.FFprobePath,
		sampleRate: cfg.SampleRate,
		run:        execCommand,
		logger:     logger,
	}
}

func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", err, msg)
	}
	return stdout.Bytes(), nil
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Channels   int    `json:"channels"`
		SampleRate string `json:"sample_rate"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Probe inspects the container at path.
func (t *Toolkit) Probe(ctx context.Context, path string) (Info, error) {
	out, err := t.run(ctx, t.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path)
	if err != nil {
		if ctx.Err() != nil {
			return Info{}, ctx.Err()
		}
		return Info{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return Info{}, fmt.Errorf("%w: bad ffprobe output: %v", ErrUnreadable, err)
	}

	info := Info{Format: parsed.Format.FormatName}
	if secs, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(secs * float64(time.Second))
	}

	for _, s := range parsed.Streams {
		if s.CodecType != "audio" {
			continue
		}
		info.HasAudio = true
		info.AudioCodec = s.CodecName
		info.Channels = s.Channels
		info.SampleRate, _ = strconv.Atoi(s.SampleRate)
		break
	}

	t.logger.Debug("Probed media",
		zap.String("path", path),
		zap.String("format", info.Format),
		zap.Duration("duration", info.Duration),
		zap.Bool("has_audio", info.HasAudio))

	return info, nil
}

// ExtractWAV writes the first audio track of src to dst as mono 16-bit PCM.
// dst is overwritten.
func (t *Toolkit) ExtractWAV(ctx context.Context, src, dst string) error {
	_, err := t.run(ctx, t.ffmpeg,
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", src,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(t.sampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		dst)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg audio extraction failed: %w", err)
	}
	return nil
}
