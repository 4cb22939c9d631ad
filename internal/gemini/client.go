package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"interview-service/internal/retry"
)

const (
	defaultModel     = "gemini-2.0-flash"
	filePollInterval = time.Second
)

// Client wraps the Gemini API client
type Client struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	logger     *zap.Logger
	modelName  string
	maxRetries int
	retryDelay time.Duration
}

// Config for Gemini client
type Config struct {
	APIKey     string
	ModelName  string // Default: "gemini-2.0-flash"
	MaxRetries int
	RetryDelay time.Duration
	// Temperature is left at the model default when nil
	Temperature *float32
}

// NewClient creates a new Gemini client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = defaultModel
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 1
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.ModelName)
	if cfg.Temperature != nil {
		model.SetTemperature(*cfg.Temperature)
	}

	logger.Info("Gemini client initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		client:     client,
		model:      model,
		logger:     logger,
		modelName:  cfg.ModelName,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Close closes the Gemini client
func (c *Client) Close() error {
	return c.client.Close()
}

// Generate sends a text prompt and returns the generated text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, genai.Text(prompt))
}

// GenerateWithBlob sends a prompt together with inline binary data such as a
// WAV recording.
func (c *Client) GenerateWithBlob(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	return c.generate(ctx, genai.Text(prompt), genai.Blob{MIMEType: mimeType, Data: data})
}

// GenerateWithFile uploads the file at path through the Files API and
// references it by URI instead of inlining it. The upload is deleted when the
// call returns.
func (c *Client) GenerateWithFile(ctx context.Context, prompt, mimeType, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	file, err := c.client.UploadFile(ctx, "", f, &genai.UploadFileOptions{MIMEType: mimeType})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to gemini: %w", err)
	}
	name := file.Name
	defer func() {
		if err := c.client.DeleteFile(context.WithoutCancel(ctx), name); err != nil {
			c.logger.Warn("Failed to delete uploaded gemini file", zap.String("name", name), zap.Error(err))
		}
	}()

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(filePollInterval):
		}
		if file, err = c.client.GetFile(ctx, name); err != nil {
			return "", fmt.Errorf("failed to poll gemini file %s: %w", name, err)
		}
	}
	if file.State != genai.FileStateActive {
		return "", fmt.Errorf("gemini file %s not usable (state %v)", name, file.State)
	}

	c.logger.Debug("Gemini file uploaded", zap.String("name", name), zap.Int64("size_bytes", file.SizeBytes))
	return c.generate(ctx, genai.Text(prompt), genai.FileData{MIMEType: file.MIMEType, URI: file.URI})
}

func (c *Client) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	var text string
	err := retry.Do(ctx, retry.Policy{Attempts: c.maxRetries, Delay: c.retryDelay}, c.logger, "Gemini",
		func(ctx context.Context) error {
			resp, err := c.model.GenerateContent(ctx, parts...)
			if err != nil {
				return fmt.Errorf("gemini API error: %w", err)
			}
			text, err = responseText(resp)
			return err
		})
	if err != nil {
		return "", err
	}

	c.logger.Debug("Gemini request succeeded", zap.Int("response_length", len(text)))
	return text, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in gemini response (finish reason: %s)", candidate.FinishReason.String())
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response type from gemini")
	}

	return sb.String(), nil
}

// GetModelInfo returns model information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":    "gemini",
		"model":       c.modelName,
		"max_retries": c.maxRetries,
		"retry_delay": c.retryDelay.String(),
	}
}
