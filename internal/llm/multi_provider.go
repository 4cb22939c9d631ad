package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"interview-service/internal/gemini"
	"interview-service/internal/groq"
	"interview-service/internal/openrouter"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
)

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderGemini     ProviderType = "gemini"
	ProviderGroq       ProviderType = "groq"
	ProviderOpenRouter ProviderType = "openrouter"
)

// ProviderConfig holds configuration for a single provider instance
type ProviderConfig struct {
	Type       ProviderType  `yaml:"type"`
	APIKey     string        `yaml:"api_key"`
	ModelName  string        `yaml:"model_name"`
	BaseURL    string        `yaml:"base_url"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	// Rate limiting per provider
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Provider is a text completion backend.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
	GetModelInfo() map[string]interface{}
}

// RateLimitedProvider wraps a provider with rate limiting
type RateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewRateLimitedProvider wraps a provider with a token bucket that refills
// requestsPerMinute tokens per minute. The bucket starts full so a burst of
// evaluation calls does not wait.
func NewRateLimitedProvider(provider Provider, requestsPerMinute int, logger *zap.Logger) *RateLimitedProvider {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 8
	}
	every := time.Minute / time.Duration(requestsPerMinute)
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Every(every), requestsPerMinute),
		logger:   logger,
	}
}

func (p *RateLimitedProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	return p.provider.Generate(ctx, prompt)
}

func (p *RateLimitedProvider) Close() error {
	return p.provider.Close()
}

func (p *RateLimitedProvider) GetModelInfo() map[string]interface{} {
	return p.provider.GetModelInfo()
}

// NewProvider builds the client for a single provider entry.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:     cfg.APIKey,
			ModelName:  cfg.ModelName,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}, logger)
	case ProviderGroq:
		return groq.NewClient(groq.Config{
			APIKey:     cfg.APIKey,
			ModelName:  cfg.ModelName,
			BaseURL:    cfg.BaseURL,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}, logger)
	case ProviderOpenRouter:
		return openrouter.NewClient(openrouter.Config{
			APIKey:     cfg.APIKey,
			ModelName:  cfg.ModelName,
			BaseURL:    cfg.BaseURL,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

// MultiProviderClient manages multiple LLM providers with fallback
type MultiProviderClient struct {
	providers    []Provider
	currentIndex int
	mu           sync.RWMutex
	logger       *zap.Logger
	failureCount map[int]int
	maxFailures  int
}

// MultiProviderConfig holds configuration for multiple providers
type MultiProviderConfig struct {
	Providers   []ProviderConfig
	MaxFailures int // Max consecutive failures before switching provider
}

// NewMultiProviderClient creates a new multi-provider client
func NewMultiProviderClient(cfg MultiProviderConfig, logger *zap.Logger) (*MultiProviderClient, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	providers := make([]Provider, 0, len(cfg.Providers))

	for i, providerCfg := range cfg.Providers {
		provider, err := NewProvider(providerCfg, logger)
		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", string(providerCfg.Type)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		rateLimit := providerCfg.RequestsPerMinute
		if rateLimit == 0 {
			rateLimit = 8 // Conservative default for free tier
		}

		providers = append(providers, NewRateLimitedProvider(provider, rateLimit, logger))

		logger.Info("Provider initialized",
			zap.String("type", string(providerCfg.Type)),
			zap.String("model", providerCfg.ModelName),
			zap.Int("rate_limit", rateLimit),
			zap.Int("index", i))
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers could be initialized")
	}

	return newMultiProvider(providers, cfg.MaxFailures, logger), nil
}

func newMultiProvider(providers []Provider, maxFailures int, logger *zap.Logger) *MultiProviderClient {
	if maxFailures == 0 {
		maxFailures = 3
	}
	return &MultiProviderClient{
		providers:    providers,
		logger:       logger,
		failureCount: make(map[int]int),
		maxFailures:  maxFailures,
	}
}

// getCurrentProvider returns the current provider and its index
func (c *MultiProviderClient) getCurrentProvider() (Provider, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.providers[c.currentIndex], c.currentIndex
}

// switchFrom moves to the next provider unless another goroutine already did.
func (c *MultiProviderClient) switchFrom(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentIndex != index {
		return
	}
	c.currentIndex = (c.currentIndex + 1) % len(c.providers)

	c.logger.Info("Switching provider",
		zap.Int("from_index", index),
		zap.Int("to_index", c.currentIndex),
		zap.Int("total_providers", len(c.providers)))
}

// recordFailure records a failure and reports whether the provider should be abandoned.
func (c *MultiProviderClient) recordFailure(providerIndex int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount[providerIndex]++

	if c.failureCount[providerIndex] >= c.maxFailures {
		c.logger.Warn("Provider reached max failures",
			zap.Int("provider_index", providerIndex),
			zap.Int("failures", c.failureCount[providerIndex]))
		c.failureCount[providerIndex] = 0
		return true
	}

	return false
}

func (c *MultiProviderClient) resetFailureCount(providerIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount[providerIndex] = 0
}

// Generate tries the current provider and falls back to the next ones on failure.
func (c *MultiProviderClient) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempts := 0; attempts < len(c.providers); attempts++ {
		provider, providerIndex := c.getCurrentProvider()

		c.logger.Debug("Attempting generation",
			zap.Int("provider_index", providerIndex),
			zap.Int("attempt", attempts+1))

		result, err := provider.Generate(ctx, prompt)
		if err == nil {
			c.resetFailureCount(providerIndex)
			return result, nil
		}
		lastErr = err

		c.logger.Error("Provider failed",
			zap.Int("provider_index", providerIndex),
			zap.Error(err))

		if ctx.Err() != nil {
			return "", err
		}

		if c.recordFailure(providerIndex) || isRateLimitError(err) {
			c.switchFrom(providerIndex)
		}
	}

	return "", fmt.Errorf("all providers failed: %w", lastErr)
}

// isRateLimitError reports quota and throttling errors from any provider.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusTooManyRequests
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "resource_exhausted") ||
		strings.Contains(errStr, "rate limit")
}

// Close closes all providers
func (c *MultiProviderClient) Close() error {
	var lastErr error
	for i, provider := range c.providers {
		if err := provider.Close(); err != nil {
			c.logger.Error("Failed to close provider",
				zap.Int("index", i),
				zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// GetModelInfo returns information about the current provider
func (c *MultiProviderClient) GetModelInfo() map[string]interface{} {
	provider, index := c.getCurrentProvider()
	info := provider.GetModelInfo()
	info["provider_index"] = index
	info["total_providers"] = len(c.providers)
	return info
}

// GetProvidersInfo returns information about all providers
func (c *MultiProviderClient) GetProvidersInfo() []map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := make([]map[string]interface{}, len(c.providers))
	for i, provider := range c.providers {
		providerInfo := provider.GetModelInfo()
		providerInfo["is_current"] = (i == c.currentIndex)
		providerInfo["failure_count"] = c.failureCount[i]
		info[i] = providerInfo
	}
	return info
}
