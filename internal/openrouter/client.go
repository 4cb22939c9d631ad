package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"interview-service/internal/retry"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Client represents an OpenRouter API client. OpenRouter speaks the OpenAI
// chat completions protocol, so the go-openai client is pointed at it.
type Client struct {
	api        *openai.Client
	baseURL    string
	modelName  string
	httpClient *http.Client
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

// Config holds configuration for OpenRouter client.
type Config struct {
	APIKey     string
	ModelName  string // e.g., "meta-llama/llama-3.2-3b-instruct:free"
	BaseURL    string
	MaxRetries int
	RetryDelay time.Duration
}

// attributionTransport adds the headers OpenRouter uses to attribute traffic.
type attributionTransport struct {
	base http.RoundTripper
}

func (t attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("HTTP-Referer", "https://github.com/interview-service")
	req.Header.Set("X-Title", "Interview Service")
	return t.base.RoundTrip(req)
}

// NewClient creates a new OpenRouter client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "meta-llama/llama-3.2-3b-instruct:free"
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 1
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	httpClient := &http.Client{
		Timeout:   60 * time.Second,
		Transport: attributionTransport{base: http.DefaultTransport},
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = httpClient

	client := &Client{
		api:        openai.NewClientWithConfig(apiCfg),
		baseURL:    cfg.BaseURL,
		modelName:  cfg.ModelName,
		httpClient: httpClient,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}

	logger.Info("OpenRouter client initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return client, nil
}

// Generate sends a prompt to OpenRouter and returns the reply text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var text string
	err := retry.Do(ctx, retry.Policy{Attempts: c.maxRetries, Delay: c.retryDelay}, c.logger, "OpenRouter",
		func(ctx context.Context) error {
			var err error
			text, err = c.generateOnce(ctx, prompt)
			return err
		})
	return text, err
}

func (c *Client) generateOnce(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   800,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			err = fmt.Errorf("openrouter API returned status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
			if apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusBadRequest {
				return "", retry.Permanent(err)
			}
			return "", err
		}
		return "", fmt.Errorf("openrouter API request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in openrouter response")
	}

	return resp.Choices[0].Message.Content, nil
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// GetModelInfo returns information about the model being used.
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider": "openrouter",
		"model":    c.modelName,
		"base_url": c.baseURL,
	}
}
