package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"interview-service/internal/models"
	"interview-service/internal/scratch"
	"interview-service/internal/service"
)

const (
	maxFieldBytes  = 64
	maxEventsBytes = 1 << 20
)

// VideoProcessor is implemented by *service.Submission.
type VideoProcessor interface {
	Stage(r io.Reader, ext string) (*scratch.File, error)
	Process(ctx context.Context, questionID int64, video *scratch.File) (*models.SubmissionResult, error)
}

// SubmitVideo reads the multipart upload as a stream. The browser sends the
// video part before question_id, so the video is staged to disk first and
// the question is resolved afterwards.
func (h *Handler) SubmitVideo(c *gin.Context) {
	if h.deps.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.deps.MaxUploadBytes)
	}

	mr, err := c.Request.MultipartReader()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No video received"})
		return
	}

	var (
		video    *scratch.File
		rawID    string
		rawEvent string
	)
	defer func() {
		if video != nil {
			video.Release()
		}
	}()

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.uploadError(c, err)
			return
		}

		switch part.FormName() {
		case "video":
			if video != nil {
				break
			}
			video, err = h.deps.Submissions.Stage(part, videoExt(part.FileName()))
			if err != nil {
				part.Close()
				h.uploadError(c, err)
				return
			}
		case "question_id":
			rawID, err = readField(part, maxFieldBytes)
		case "events":
			rawEvent, err = readField(part, maxEventsBytes)
		}
		part.Close()
		if err != nil {
			h.uploadError(c, err)
			return
		}
	}

	if video == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No video received"})
		return
	}

	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		c.JSON(http.StatusNotFound, gin.H{"message": "Invalid question ID"})
		return
	}
	questionID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid question ID"})
		return
	}

	if rawEvent != "" {
		h.logger.Info("Proctoring events received",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Int64("question_id", questionID),
			eventsField(rawEvent))
	}

	result, err := h.deps.Submissions.Process(c.Request.Context(), questionID, video)
	switch {
	case errors.Is(err, service.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Invalid question ID"})
		return
	case err != nil:
		h.logger.Error("Submission failed", zap.Int64("question_id", questionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "AI Error: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) uploadError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "Video too large"})
		return
	}
	h.logger.Warn("Malformed upload", zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"message": "Malformed upload"})
}

func readField(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func videoExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".webm", ".mp4", ".mkv", ".mov", ".ogg", ".wav", ".m4a":
		return ext
	}
	return ".webm"
}

// eventsField logs valid JSON as structured data and anything else as text.
func eventsField(raw string) zap.Field {
	if json.Valid([]byte(raw)) {
		return zap.Any("events", json.RawMessage(raw))
	}
	return zap.String("events", raw)
}

// LogEvent records one proctoring event sent as form field "event", with an
// optional "snapshot" image.
func (h *Handler) LogEvent(c *gin.Context) {
	event := c.PostForm("event")
	if event == "" {
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err == nil {
			raw, _ := json.Marshal(body)
			event = string(raw)
		}
	}

	fields := []zap.Field{
		zap.String("request_id", c.GetString(requestIDKey)),
		eventsField(event),
	}
	if snap, err := c.FormFile("snapshot"); err == nil {
		fields = append(fields,
			zap.String("snapshot", snap.Filename),
			zap.Int64("snapshot_bytes", snap.Size))
	}

	h.logger.Info("Proctoring event", fields...)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Heartbeat(c *gin.Context) {
	var body map[string]interface{}
	_ = c.ShouldBindJSON(&body)

	h.logger.Debug("Heartbeat", zap.Any("payload", body))
	c.JSON(http.StatusOK, gin.H{"alive": true})
}
